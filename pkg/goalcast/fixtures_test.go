package goalcast

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureTestServer fakes the fixture provider for a set of active league
// ids. Season metadata for brokenLeague is served as garbage so that
// league's fetch fails after the batch has started
func fixtureTestServer(t *testing.T, leagueIDs []int, brokenLeague int) *httptest.Server {
	t.Helper()
	year := time.Now().UTC().Year()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/leagues":
			id := r.URL.Query().Get("id")
			if id == "" {
				// Active league listing
				fmt.Fprint(w, `{"response": [`)
				for i, leagueID := range leagueIDs {
					if i > 0 {
						fmt.Fprint(w, ",")
					}
					fmt.Fprintf(w, `{"league": {"id": %d, "name": "League %d"},
						"seasons": [{"year": %d, "coverage": {"fixtures": {"events": true}}}]}`,
						leagueID, leagueID, year)
				}
				fmt.Fprint(w, `]}`)
				return
			}
			// Per-league season metadata
			if id == fmt.Sprintf("%d", brokenLeague) {
				w.Write([]byte("{ broken"))
				return
			}
			fmt.Fprintf(w, `{"response": [{"seasons": [{"year": %d}, {"year": %d}]}]}`, year-1, year)
		case "/fixtures":
			league := r.URL.Query().Get("league")
			assert.Equal(t, fmt.Sprintf("%d", year), r.URL.Query().Get("season"),
				"fixtures must be requested for the latest reported season")
			kickoff := time.Now().UTC().Add(6 * time.Hour).Format(time.RFC3339)
			fmt.Fprintf(w, `{"response": [{
				"fixture": {"id": 1%s, "date": %q},
				"league": {"id": %s},
				"teams": {"home": {"name": "Home %s"}, "away": {"name": "Away %s"}}
			}]}`, league, kickoff, league, league, league)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestFixturesForWindowPartialFailureIsolation(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	server := fixtureTestServer(t, []int{39, 140, 135}, 140)
	defer server.Close()

	Config.FixtureApiBaseUrl = server.URL
	Config.FixtureApiKey = "test-key"

	fixtures, err := FixturesForWindow()
	require.NoError(t, err, "one failing league must not fail the batch")

	got := map[int]bool{}
	for _, fx := range fixtures {
		got[fx.LeagueID] = true
	}
	assert.True(t, got[39])
	assert.True(t, got[135])
	assert.False(t, got[140], "the broken league is skipped, not retried into the results")
}

func TestFixturesForWindowCachesPerLeagueAndClearsOldFiles(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	store, err := DefaultStore()
	require.NoError(t, err)
	// A leftover file from an earlier cycle for a league that is no
	// longer active
	require.NoError(t, store.WriteRaw("fixtures_9999", []byte(`{"response": []}`)))

	server := fixtureTestServer(t, []int{39}, 0)
	defer server.Close()

	Config.FixtureApiBaseUrl = server.URL
	Config.FixtureApiKey = "test-key"

	fixtures, err := FixturesForWindow()
	require.NoError(t, err)
	require.Len(t, fixtures, 1)
	assert.Equal(t, "Home 39", fixtures[0].Home)

	_, ok := store.ReadRaw("fixtures_39")
	assert.True(t, ok, "each league's raw response is persisted")
	_, ok = store.ReadRaw("fixtures_9999")
	assert.False(t, ok, "stale fixture files are cleared at cycle start")
}

func TestFixturesForWindowNoActiveLeagues(t *testing.T) {
	useTestConfig(t)
	fastTransport(t)

	server := fixtureTestServer(t, nil, 0)
	defer server.Close()

	Config.FixtureApiBaseUrl = server.URL
	Config.FixtureApiKey = "test-key"

	fixtures, err := FixturesForWindow()
	require.NoError(t, err)
	assert.Empty(t, fixtures)
}
