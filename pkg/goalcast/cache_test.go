package goalcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// useTestConfig points the global config at throwaway directories
func useTestConfig(t *testing.T) {
	t.Helper()
	old := Config
	dir := t.TempDir()
	cfg := DefaultGoalcastConfig()
	cfg.AssetsPath = dir
	cfg.CachePath = dir + "/cache"
	cfg.RawDataPath = dir + "/raw"
	cfg.LedgerPath = dir + "/cleaned_data.csv"
	cfg.ModelsPath = dir + "/models"
	cfg.HistoryDb = dir + "/history.db"
	cfg.InterCallDelaySeconds = 0
	Config = cfg
	t.Cleanup(func() { Config = old })
}

// writeAgedEntry plants a cache entry whose embedded timestamp lies age in
// the past
func writeAgedEntry(t *testing.T, store *Store, key string, age time.Duration, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	env := envelope{
		Timestamp: time.Now().UTC().Add(-age),
		Data:      raw,
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	require.NoError(t, store.WriteRaw(key, data))
}

func TestStoreRoundTrip(t *testing.T) {
	useTestConfig(t)
	store, err := DefaultStore()
	require.NoError(t, err)

	payload := map[string]int{"EPL": 39}
	require.NoError(t, store.Write("leagues", payload))

	var got map[string]int
	require.True(t, store.Read("leagues", &got))
	assert.Equal(t, payload, got)
}

func TestStoreStalenessFromEmbeddedTimestamp(t *testing.T) {
	useTestConfig(t)
	store, err := DefaultStore()
	require.NoError(t, err)

	writeAgedEntry(t, store, "odds_fresh", time.Hour, []int{1})
	writeAgedEntry(t, store, "odds_stale", 13*time.Hour, []int{1})

	bound := 12 * time.Hour
	assert.True(t, store.IsValid("odds_fresh", bound), "1h old entry must be valid against a 12h bound")
	assert.False(t, store.IsValid("odds_stale", bound), "13h old entry must be stale against a 12h bound")
	assert.False(t, store.IsValid("odds_missing", bound))
}

func TestStoreReadIgnoresAge(t *testing.T) {
	useTestConfig(t)
	store, err := DefaultStore()
	require.NoError(t, err)

	writeAgedEntry(t, store, "ancient", 1000*time.Hour, "still here")

	var got string
	require.True(t, store.Read("ancient", &got), "Read must serve entries of any age")
	assert.Equal(t, "still here", got)
}

func TestStoreRemovePrefix(t *testing.T) {
	useTestConfig(t)
	store, err := DefaultStore()
	require.NoError(t, err)

	require.NoError(t, store.Write("fixtures_39", []int{1}))
	require.NoError(t, store.Write("fixtures_140", []int{2}))
	require.NoError(t, store.Write("latest_odds", []int{3}))

	require.NoError(t, store.RemovePrefix("fixtures_"))

	var out []int
	assert.False(t, store.Read("fixtures_39", &out))
	assert.False(t, store.Read("fixtures_140", &out))
	assert.True(t, store.Read("latest_odds", &out), "unrelated keys must survive a prefix clear")
}

func TestStoreRejectsCorruptEnvelope(t *testing.T) {
	useTestConfig(t)
	store, err := DefaultStore()
	require.NoError(t, err)

	require.NoError(t, store.WriteRaw("broken", []byte("not json")))

	var out string
	assert.False(t, store.Read("broken", &out))
	assert.False(t, store.IsValid("broken", time.Hour))
}
