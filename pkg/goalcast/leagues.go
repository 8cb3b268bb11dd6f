package goalcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/internal/metrics"
	"github.com/richard-senior/goalcast/pkg/transport"
)

// League ties together the identifiers a league carries across the three
// data providers: the fixture API numeric id, the odds API sport key and
// the historical CSV host's league code
type League struct {
	Key       string // short code used in user commands, e.g. "EPL"
	Name      string // human readable name
	FixtureID int    // API-Football league id
	SportKey  string // The Odds API sport key
	DataCode  string // football-data.co.uk CSV code
}

// SupportedLeagues is the full set of leagues the pipeline knows about,
// keyed by short code
var SupportedLeagues = map[string]League{
	// Top 5 major leagues
	"EPL":        {Key: "EPL", Name: "English Premier League", FixtureID: 39, SportKey: "soccer_epl", DataCode: "E0"},
	"LaLiga":     {Key: "LaLiga", Name: "Spanish La Liga", FixtureID: 140, SportKey: "soccer_spain_la_liga", DataCode: "SP1"},
	"SerieA":     {Key: "SerieA", Name: "Italian Serie A", FixtureID: 135, SportKey: "soccer_italy_serie_a", DataCode: "I1"},
	"Bundesliga": {Key: "Bundesliga", Name: "German Bundesliga", FixtureID: 78, SportKey: "soccer_germany_bundesliga", DataCode: "D1"},
	"Ligue1":     {Key: "Ligue1", Name: "French Ligue 1", FixtureID: 61, SportKey: "soccer_france_ligue_one", DataCode: "F1"},

	// Other top-tier European leagues
	"PrimeiraLiga":    {Key: "PrimeiraLiga", Name: "Portuguese Primeira Liga", FixtureID: 94, SportKey: "soccer_portugal_primeira_liga", DataCode: "P1"},
	"Eredivisie":      {Key: "Eredivisie", Name: "Dutch Eredivisie", FixtureID: 88, SportKey: "soccer_netherlands_eredivisie", DataCode: "N1"},
	"ProLeague":       {Key: "ProLeague", Name: "Belgian Pro League", FixtureID: 144, SportKey: "soccer_belgium_first_division_a", DataCode: "B1"},
	"SPL":             {Key: "SPL", Name: "Scottish Premiership", FixtureID: 179, SportKey: "soccer_scotland_premiership", DataCode: "SC0"},
	"SuperLig":        {Key: "SuperLig", Name: "Turkish Super Lig", FixtureID: 203, SportKey: "soccer_turkey_super_lig", DataCode: "T1"},
	"BundesligaAT":    {Key: "BundesligaAT", Name: "Austrian Bundesliga", FixtureID: 218, SportKey: "soccer_austria_bundesliga", DataCode: "A1"},
	"SuperLeagueCH":   {Key: "SuperLeagueCH", Name: "Swiss Super League", FixtureID: 222, SportKey: "soccer_switzerland_superleague", DataCode: "SW1"},
	"Superliga":       {Key: "Superliga", Name: "Danish Superliga", FixtureID: 197, SportKey: "soccer_denmark_superliga", DataCode: "DK1"},
	"Eliteserien":     {Key: "Eliteserien", Name: "Norwegian Eliteserien", FixtureID: 106, SportKey: "soccer_norway_eliteserien", DataCode: "NW1"},
	"Allsvenskan":     {Key: "Allsvenskan", Name: "Swedish Allsvenskan", FixtureID: 121, SportKey: "soccer_sweden_allsvenskan", DataCode: "S1"},
	"UPL":             {Key: "UPL", Name: "Ukrainian Premier League", FixtureID: 332, SportKey: "soccer_ukraine_premier_league", DataCode: "UKR1"},
	"SuperLeagueGR":   {Key: "SuperLeagueGR", Name: "Greek Super League", FixtureID: 200, SportKey: "soccer_greece_super_league", DataCode: "G1"},
	"FortunaLiga":     {Key: "FortunaLiga", Name: "Czech Fortuna Liga", FixtureID: 233, SportKey: "soccer_czech_republic_first_league", DataCode: "CZ1"},
	"HNL":             {Key: "HNL", Name: "Croatian Prva HNL", FixtureID: 241, SportKey: "soccer_croatia_1_hnl", DataCode: "HR1"},
	"SuperLigaRS":     {Key: "SuperLigaRS", Name: "Serbian SuperLiga", FixtureID: 237, SportKey: "soccer_serbia_super_liga", DataCode: "SRB1"},
	"Ekstraklasa":     {Key: "Ekstraklasa", Name: "Polish Ekstraklasa", FixtureID: 205, SportKey: "soccer_poland_ekstraklasa", DataCode: "PL1"},
	"NBI":             {Key: "NBI", Name: "Hungarian NB I", FixtureID: 271, SportKey: "soccer_hungary_nb_i", DataCode: "HU1"},
	"Liga1":           {Key: "Liga1", Name: "Romanian Liga I", FixtureID: 283, SportKey: "soccer_romania_liga_1", DataCode: "RO1"},
	"FirstDivisionCY": {Key: "FirstDivisionCY", Name: "Cyprus First Division", FixtureID: 318, SportKey: "soccer_cyprus_1st_division", DataCode: "CY1"},
	"PremierLeagueIL": {Key: "PremierLeagueIL", Name: "Israeli Premier League", FixtureID: 383, SportKey: "soccer_israel_ligat_haal", DataCode: "ISR1"},
}

// LeagueByKey resolves a user-supplied short code
func LeagueByKey(key string) (League, bool) {
	l, ok := SupportedLeagues[key]
	return l, ok
}

// LeagueByFixtureID resolves a fixture API league id
func LeagueByFixtureID(id int) (League, bool) {
	for _, l := range SupportedLeagues {
		if l.FixtureID == id {
			return l, true
		}
	}
	return League{}, false
}

// SupportedFixtureIDs returns the set of fixture API ids we track
func SupportedFixtureIDs() map[int]struct{} {
	ids := make(map[int]struct{}, len(SupportedLeagues))
	for _, l := range SupportedLeagues {
		ids[l.FixtureID] = struct{}{}
	}
	return ids
}

const activeLeaguesKey = "active_leagues"

// activeLeaguesCache is the on-disk shape of the active-league list. It
// keeps its own shape rather than the generic envelope for compatibility
// with existing cache files
type activeLeaguesCache struct {
	Timestamp time.Time `json:"timestamp"`
	LeagueIDs []int     `json:"league_ids"`
}

// leagueListing mirrors the fixture API /leagues response
type leagueListing struct {
	Response []struct {
		League struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"league"`
		Seasons []struct {
			Year     int `json:"year"`
			Coverage struct {
				Fixtures struct {
					Events bool `json:"events"`
				} `json:"fixtures"`
			} `json:"coverage"`
		} `json:"seasons"`
	} `json:"response"`
}

func readCachedActiveLeagues(store *Store, maxAge time.Duration) (map[int]struct{}, bool) {
	data, ok := store.ReadRaw(activeLeaguesKey)
	if !ok {
		return nil, false
	}
	var cached activeLeaguesCache
	if err := json.Unmarshal(data, &cached); err != nil {
		logger.Warn("Discarding unreadable active-league cache", err)
		return nil, false
	}
	if maxAge > 0 && time.Since(cached.Timestamp) > maxAge {
		return nil, false
	}
	ids := make(map[int]struct{}, len(cached.LeagueIDs))
	for _, id := range cached.LeagueIDs {
		ids[id] = struct{}{}
	}
	return ids, true
}

func writeActiveLeagues(store *Store, ids map[int]struct{}) error {
	cached := activeLeaguesCache{
		Timestamp: time.Now().UTC(),
		LeagueIDs: make([]int, 0, len(ids)),
	}
	for id := range ids {
		cached.LeagueIDs = append(cached.LeagueIDs, id)
	}
	data, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal active-league cache: %w", err)
	}
	return store.WriteRaw(activeLeaguesKey, data)
}

// intersectSupported narrows a set of fixture API ids to the leagues we track
func intersectSupported(ids map[int]struct{}) map[int]struct{} {
	supported := SupportedFixtureIDs()
	targeted := make(map[int]struct{})
	for id := range ids {
		if _, ok := supported[id]; ok {
			targeted[id] = struct{}{}
		}
	}
	return targeted
}

// ActiveLeagues returns the set of supported fixture API league ids that are
// currently in season with fixture event coverage. A cache entry younger
// than the configured bound short-circuits the provider call; on provider
// failure the cached set is used regardless of age, and with no cache at
// all the result is an empty set rather than an error
func ActiveLeagues() map[int]struct{} {
	store, err := DefaultStore()
	if err != nil {
		logger.Error("Cannot open cache store", err)
		return map[int]struct{}{}
	}

	if cached, ok := readCachedActiveLeagues(store, GetLeagueMaxAge()); ok {
		logger.Info("Using cached active leagues")
		return intersectSupported(cached)
	}

	apiKey, err := RequireFixtureApiKey()
	if err != nil {
		logger.Error("Cannot resolve active leagues", err)
		return map[int]struct{}{}
	}

	logger.Info("Fetching active leagues from fixture provider")
	data, err := transport.Request(
		Config.FixtureApiBaseUrl+"/leagues",
		map[string]string{"x-apisports-key": apiKey},
		nil,
	)
	if err != nil {
		logger.Warn("Active league fetch failed", err)
		if cached, ok := readCachedActiveLeagues(store, 0); ok {
			logger.Warn("Using stale cached active leagues as fallback")
			metrics.Default().RecordStaleFallback("active_leagues")
			return intersectSupported(cached)
		}
		logger.Error("No cached active leagues available")
		return map[int]struct{}{}
	}

	var listing leagueListing
	if err := json.Unmarshal(data, &listing); err != nil {
		logger.Error("Cannot parse league listing", err)
		if cached, ok := readCachedActiveLeagues(store, 0); ok {
			metrics.Default().RecordStaleFallback("active_leagues")
			return intersectSupported(cached)
		}
		return map[int]struct{}{}
	}

	currentYear := time.Now().UTC().Year()
	active := make(map[int]struct{})
	for _, info := range listing.Response {
		for _, season := range info.Seasons {
			if (season.Year == currentYear || season.Year == currentYear-1) &&
				season.Coverage.Fixtures.Events {
				active[info.League.ID] = struct{}{}
				break
			}
		}
	}
	logger.Info("Found active leagues", len(active))

	if err := writeActiveLeagues(store, active); err != nil {
		logger.Warn("Failed to cache active leagues", err)
	}

	targeted := intersectSupported(active)
	logger.Info("Targeting supported leagues", len(targeted), "of", len(active), "active")
	return targeted
}
