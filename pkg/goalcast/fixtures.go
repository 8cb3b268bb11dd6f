package goalcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/pkg/transport"
)

// Fixture is one upcoming match as reported by the fixture provider. Team
// names keep the provider's spelling; reconciling them against the odds
// provider's spelling is the odds matcher's problem
type Fixture struct {
	ID       int       `json:"id"`
	LeagueID int       `json:"league_id"`
	Home     string    `json:"home"`
	Away     string    `json:"away"`
	Kickoff  time.Time `json:"kickoff"`
}

const fixtureCachePrefix = "fixtures_"

// fixtureListing mirrors the fixture API /fixtures response
type fixtureListing struct {
	Response []struct {
		Fixture struct {
			ID   int       `json:"id"`
			Date time.Time `json:"date"`
		} `json:"fixture"`
		League struct {
			ID int `json:"id"`
		} `json:"league"`
		Teams struct {
			Home struct {
				Name string `json:"name"`
			} `json:"home"`
			Away struct {
				Name string `json:"name"`
			} `json:"away"`
		} `json:"teams"`
	} `json:"response"`
}

// seasonListing mirrors the /leagues?id= response used for season detection
type seasonListing struct {
	Response []struct {
		Seasons []struct {
			Year int `json:"year"`
		} `json:"seasons"`
	} `json:"response"`
}

// latestSeason queries the league's season metadata and returns the greatest
// reported year
func latestSeason(apiKey string, leagueID int) (int, error) {
	data, err := transport.Request(
		Config.FixtureApiBaseUrl+"/leagues",
		map[string]string{"x-apisports-key": apiKey},
		map[string]string{"id": fmt.Sprintf("%d", leagueID)},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch season metadata for league %d: %w", leagueID, err)
	}

	var listing seasonListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return 0, fmt.Errorf("cannot parse season metadata for league %d: %w", leagueID, err)
	}

	latest := 0
	for _, entry := range listing.Response {
		for _, season := range entry.Seasons {
			if season.Year > latest {
				latest = season.Year
			}
		}
	}
	if latest == 0 {
		return 0, fmt.Errorf("no season data found for league %d", leagueID)
	}
	return latest, nil
}

// FixturesForWindow fetches fixtures kicking off today or tomorrow (UTC) for
// every currently active league. Each league's raw response is persisted to
// its own cache file before aggregation. Per-league failures are logged and
// skipped; the batch never aborts. Old fixture cache files are cleared at
// the start of each cycle so stale fixtures cannot leak into a new run
func FixturesForWindow() ([]Fixture, error) {
	apiKey, err := RequireFixtureApiKey()
	if err != nil {
		return nil, err
	}

	active := ActiveLeagues()
	if len(active) == 0 {
		logger.Warn("No active leagues found")
		return []Fixture{}, nil
	}

	store, err := DefaultStore()
	if err != nil {
		return nil, fmt.Errorf("cannot open cache store: %w", err)
	}
	if err := store.RemovePrefix(fixtureCachePrefix); err != nil {
		logger.Warn("Failed to clear fixture cache", err)
	}

	nowUTC := time.Now().UTC()
	today := nowUTC.Format("2006-01-02")
	tomorrow := nowUTC.AddDate(0, 0, 1).Format("2006-01-02")
	logger.Info("Date range for fixtures:", today, "to", tomorrow)

	var all []Fixture
	first := true

	for leagueID := range active {
		if !first {
			time.Sleep(GetInterCallDelay())
		}
		first = false

		fixtures, err := fetchLeagueFixtures(store, apiKey, leagueID, today, tomorrow)
		if err != nil {
			logger.Warn("Failed to fetch fixtures for league", leagueID, err)
			continue
		}
		if len(fixtures) == 0 {
			logger.Info("No fixtures in range for league", leagueID)
			continue
		}
		logger.Info("Retrieved fixtures for league", leagueID, len(fixtures))
		all = append(all, fixtures...)
	}

	if len(all) == 0 {
		logger.Warn("No fixtures found for today or tomorrow")
		return []Fixture{}, nil
	}
	logger.Info("Total retrieved fixtures", len(all))
	return all, nil
}

func fetchLeagueFixtures(store *Store, apiKey string, leagueID int, from, to string) ([]Fixture, error) {
	season, err := latestSeason(apiKey, leagueID)
	if err != nil {
		return nil, err
	}
	logger.Debug("Detected latest season for league", leagueID, season)

	data, err := transport.Request(
		Config.FixtureApiBaseUrl+"/fixtures",
		map[string]string{"x-apisports-key": apiKey},
		map[string]string{
			"league": fmt.Sprintf("%d", leagueID),
			"season": fmt.Sprintf("%d", season),
			"from":   from,
			"to":     to,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fixtures for league %d: %w", leagueID, err)
	}

	// Persist the raw provider response before aggregation so a later crash
	// cannot lose this league's data
	cacheKey := fmt.Sprintf("%s%d", fixtureCachePrefix, leagueID)
	if err := store.WriteRaw(cacheKey, data); err != nil {
		logger.Warn("Failed to cache fixtures for league", leagueID, err)
	}

	var listing fixtureListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, fmt.Errorf("cannot parse fixtures for league %d: %w", leagueID, err)
	}

	fixtures := make([]Fixture, 0, len(listing.Response))
	for _, entry := range listing.Response {
		fixtures = append(fixtures, Fixture{
			ID:       entry.Fixture.ID,
			LeagueID: entry.League.ID,
			Home:     entry.Teams.Home.Name,
			Away:     entry.Teams.Away.Name,
			Kickoff:  entry.Fixture.Date,
		})
	}
	return fixtures, nil
}
