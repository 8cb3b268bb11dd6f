package goalcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/richard-senior/goalcast/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastTransport(t *testing.T) {
	t.Helper()
	oldDelay := transport.RetryDelay
	transport.RetryDelay = time.Millisecond
	transport.SetRateLimit(time.Millisecond, 1000)
	t.Cleanup(func() {
		transport.RetryDelay = oldDelay
		transport.SetRateLimit(6*time.Second, 1)
	})
}

func pricedEvent(home, away string, h, d, a float64) OddsEvent {
	return OddsEvent{
		HomeTeam: home,
		AwayTeam: away,
		Bookmakers: []Bookmaker{{
			Key: "bet365",
			Markets: []Market{{
				Key: "h2h",
				Outcomes: []OddsOutcome{
					{Name: home, Price: h},
					{Name: "Draw", Price: d},
					{Name: away, Price: a},
				},
			}},
		}},
	}
}

func TestLiveOddsMatchesBySubstring(t *testing.T) {
	useTestConfig(t)
	events := []OddsEvent{
		pricedEvent("Manchester United", "Liverpool FC", 2.4, 3.3, 2.9),
	}

	// Fixture feed spellings are substrings of the odds feed spellings
	odds := LiveOdds(events, "Manchester United", "Liverpool")
	assert.Equal(t, 2.4, odds.Home)
	assert.Equal(t, 3.3, odds.Draw)
	// Away outcome name is "Liverpool FC", not the queried "Liverpool",
	// so the away price quietly degrades to neutral
	assert.Equal(t, Config.NeutralAwayOdds, odds.Away)
}

func TestLiveOddsNeutralDefaultsWhenUnmatched(t *testing.T) {
	useTestConfig(t)
	events := []OddsEvent{
		pricedEvent("Arsenal", "Chelsea", 1.8, 3.5, 4.2),
	}

	odds := LiveOdds(events, "Spurs", "West Ham")
	assert.Equal(t, MatchOdds{Home: 2.5, Draw: 3.2, Away: 2.8}, odds)

	// No events at all behaves the same
	odds = LiveOdds(nil, "Arsenal", "Chelsea")
	assert.Equal(t, MatchOdds{Home: 2.5, Draw: 3.2, Away: 2.8}, odds)
}

func TestLiveOddsNeutralDefaultsWithoutBookmakers(t *testing.T) {
	useTestConfig(t)
	events := []OddsEvent{{HomeTeam: "Arsenal", AwayTeam: "Chelsea"}}

	odds := LiveOdds(events, "Arsenal", "Chelsea")
	assert.Equal(t, MatchOdds{Home: 2.5, Draw: 3.2, Away: 2.8}, odds)
}

// oddsTestServer serves the sports listing for the given sport keys and the
// per-sport odds endpoints, with one sport optionally broken
func oddsTestServer(t *testing.T, sportKeys []string, brokenKey string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sports" {
			var listing []sportListing
			for _, key := range sportKeys {
				listing = append(listing, sportListing{Key: key, Active: true})
			}
			json.NewEncoder(w).Encode(listing)
			return
		}
		for _, key := range sportKeys {
			if r.URL.Path == "/sports/"+key+"/odds" {
				if key == brokenKey {
					w.Write([]byte("{ not valid json"))
					return
				}
				json.NewEncoder(w).Encode([]OddsEvent{
					pricedEvent("Home "+key, "Away "+key, 2.0, 3.0, 4.0),
				})
				return
			}
		}
		http.NotFound(w, r)
	}))
}

func TestOddsForLeaguesPartialFailureIsolation(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	server := oddsTestServer(t,
		[]string{"soccer_epl", "soccer_spain_la_liga", "soccer_italy_serie_a"},
		"soccer_spain_la_liga")
	defer server.Close()

	Config.OddsApiBaseUrl = server.URL
	Config.OddsApiKey = "test-key"

	odds, err := OddsForLeagues()
	require.NoError(t, err, "one failing league must not fail the batch")

	assert.Len(t, odds, 2)
	assert.Contains(t, odds, "EPL")
	assert.Contains(t, odds, "SerieA")
	assert.NotContains(t, odds, "LaLiga")

	// Whatever was obtained is cached
	store, err := DefaultStore()
	require.NoError(t, err)
	var cached map[string][]OddsEvent
	require.True(t, store.Read(oddsCacheKey, &cached))
	assert.Len(t, cached, 2)
}

func TestOddsForLeaguesFreshCacheShortCircuits(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	// Unreachable provider: anything served must come from the cache
	Config.OddsApiBaseUrl = "http://127.0.0.1:1"
	Config.OddsApiKey = "test-key"

	store, err := DefaultStore()
	require.NoError(t, err)
	want := map[string][]OddsEvent{"EPL": {pricedEvent("Arsenal", "Chelsea", 1.8, 3.5, 4.2)}}
	require.NoError(t, store.Write(oddsCacheKey, want))

	odds, err := OddsForLeagues()
	require.NoError(t, err)
	assert.Len(t, odds["EPL"], 1)
}

func TestOddsForLeaguesTotalFailureFallsBackToAnyAge(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	Config.OddsApiBaseUrl = "http://127.0.0.1:1"
	Config.OddsApiKey = "test-key"

	store, err := DefaultStore()
	require.NoError(t, err)
	stale := map[string][]OddsEvent{"EPL": {pricedEvent("Arsenal", "Chelsea", 1.8, 3.5, 4.2)}}
	writeAgedEntry(t, store, oddsCacheKey, 100*time.Hour, stale)

	odds, err := OddsForLeagues()
	require.NoError(t, err, "stale odds are better than no odds when the provider is down")
	assert.Len(t, odds["EPL"], 1)
}

func TestOddsForLeaguesTotalFailureWithoutCache(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	Config.OddsApiBaseUrl = "http://127.0.0.1:1"
	Config.OddsApiKey = "test-key"

	odds, err := OddsForLeagues()
	require.Error(t, err)
	assert.Empty(t, odds, "total failure with no cache yields an empty mapping, not nil chaos")
	assert.True(t, strings.Contains(err.Error(), "sports"))
}
