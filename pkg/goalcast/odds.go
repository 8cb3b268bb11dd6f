package goalcast

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/internal/metrics"
	"github.com/richard-senior/goalcast/pkg/transport"
)

// OddsEvent is one upcoming match as reported by the odds provider
type OddsEvent struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Bookmakers   []Bookmaker `json:"bookmakers"`
}

// Bookmaker holds one bookmaker's markets for an event
type Bookmaker struct {
	Key        string    `json:"key"`
	Title      string    `json:"title"`
	LastUpdate time.Time `json:"last_update"`
	Markets    []Market  `json:"markets"`
}

// Market holds the outcomes for one market type, h2h in our case
type Market struct {
	Key      string        `json:"key"`
	Outcomes []OddsOutcome `json:"outcomes"`
}

// OddsOutcome is a single priced outcome within a market
type OddsOutcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// MatchOdds is the {home, draw, away} decimal price triple fed to the model
type MatchOdds struct {
	Home float64
	Draw float64
	Away float64
}

const oddsCacheKey = "latest_odds"

// sportListing mirrors one entry of the odds provider's /sports response
type sportListing struct {
	Key    string `json:"key"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// OddsForLeagues fetches h2h odds for every supported league, keyed by league
// short code. A cache entry younger than the configured bound short-circuits
// the provider calls. Individual league failures are logged and skipped; the
// batch continues and whatever was obtained is cached and returned. If the
// provider cannot be reached at all, the cached odds are returned regardless
// of age, or an empty mapping with an error when no cache exists
func OddsForLeagues() (map[string][]OddsEvent, error) {
	store, err := DefaultStore()
	if err != nil {
		return map[string][]OddsEvent{}, fmt.Errorf("cannot open cache store: %w", err)
	}

	if store.IsValid(oddsCacheKey, GetOddsMaxAge()) {
		var cached map[string][]OddsEvent
		if store.Read(oddsCacheKey, &cached) {
			logger.Info("Using fresh cached odds")
			return cached, nil
		}
	}

	apiKey, err := RequireOddsApiKey()
	if err != nil {
		return map[string][]OddsEvent{}, err
	}

	logger.Info("Validating available sports")
	data, err := transport.Request(
		Config.OddsApiBaseUrl+"/sports",
		nil,
		map[string]string{"api_key": apiKey},
	)
	if err != nil {
		return staleOddsFallback(store, fmt.Errorf("failed to list available sports: %w", err))
	}

	var sports []sportListing
	if err := json.Unmarshal(data, &sports); err != nil {
		return staleOddsFallback(store, fmt.Errorf("cannot parse sports listing: %w", err))
	}
	available := make(map[string]struct{}, len(sports))
	for _, s := range sports {
		available[s.Key] = struct{}{}
	}

	valid := make([]League, 0, len(SupportedLeagues))
	for _, league := range SupportedLeagues {
		if _, ok := available[league.SportKey]; ok {
			valid = append(valid, league)
		}
	}
	logger.Info("Found valid leagues", len(valid), "of", len(SupportedLeagues))

	allOdds := make(map[string][]OddsEvent)
	var failed []string

	for i, league := range valid {
		if i > 0 {
			time.Sleep(GetInterCallDelay())
		}
		logger.Info("Fetching odds for", league.Key, league.SportKey)
		events, err := OddsForSport(league.SportKey)
		if err != nil {
			logger.Warn("Odds fetch failed for", league.Key, err)
			failed = append(failed, league.Key)
			continue
		}
		allOdds[league.Key] = events
	}

	if err := store.Write(oddsCacheKey, allOdds); err != nil {
		logger.Warn("Failed to cache odds", err)
	}
	if len(failed) > 0 {
		logger.Warn("Saved odds with failed leagues:", strings.Join(failed, ", "))
	} else {
		logger.Info("Saved odds for all leagues")
	}
	return allOdds, nil
}

// staleOddsFallback serves the cached odds regardless of age, or surfaces
// the fetch error with an empty mapping when no cache exists
func staleOddsFallback(store *Store, cause error) (map[string][]OddsEvent, error) {
	var cached map[string][]OddsEvent
	if store.Read(oddsCacheKey, &cached) {
		logger.Warn("Using cached odds of any age as fallback", cause)
		metrics.Default().RecordStaleFallback("odds")
		return cached, nil
	}
	logger.Error("No cached odds available", cause)
	return map[string][]OddsEvent{}, cause
}

// OddsForSport fetches h2h odds events for a single sport key
func OddsForSport(sportKey string) ([]OddsEvent, error) {
	apiKey, err := RequireOddsApiKey()
	if err != nil {
		return nil, err
	}

	data, err := transport.Request(
		fmt.Sprintf("%s/sports/%s/odds", Config.OddsApiBaseUrl, sportKey),
		nil,
		map[string]string{
			"api_key":    apiKey,
			"regions":    Config.OddsRegions,
			"markets":    Config.OddsMarkets,
			"oddsFormat": Config.OddsFormat,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch odds for %s: %w", sportKey, err)
	}

	var events []OddsEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("cannot parse odds for %s: %w", sportKey, err)
	}
	return events, nil
}

// LiveOdds scans events for a match where the given team names appear within
// the provider's team names, and extracts the first bookmaker's first market.
// Missing matches or missing prices fall back to neutral defaults, never an
// error. Matching is by raw substring, so a spelling drift between providers
// quietly degrades to neutral odds; that is logged at debug level
func LiveOdds(events []OddsEvent, homeTeam, awayTeam string) MatchOdds {
	odds := MatchOdds{
		Home: Config.NeutralHomeOdds,
		Draw: Config.NeutralDrawOdds,
		Away: Config.NeutralAwayOdds,
	}

	var match *OddsEvent
	for i := range events {
		if strings.Contains(events[i].HomeTeam, homeTeam) &&
			strings.Contains(events[i].AwayTeam, awayTeam) {
			match = &events[i]
			break
		}
	}

	if match == nil || len(match.Bookmakers) == 0 ||
		len(match.Bookmakers[0].Markets) == 0 {
		logger.Debug("No priced event for", homeTeam, "v", awayTeam, "- using neutral odds")
		return odds
	}

	for _, outcome := range match.Bookmakers[0].Markets[0].Outcomes {
		switch {
		case outcome.Name == homeTeam:
			odds.Home = outcome.Price
		case strings.EqualFold(outcome.Name, "draw"):
			odds.Draw = outcome.Price
		case outcome.Name == awayTeam:
			odds.Away = outcome.Price
		}
	}
	return odds
}
