package goalcast

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestH2HKeyIsOrderInsensitive(t *testing.T) {
	assert.Equal(t, H2HKey("Arsenal", "Chelsea"), H2HKey("Chelsea", "Arsenal"))
	assert.Equal(t, "Arsenal|Chelsea", H2HKey("Chelsea", "Arsenal"))
}

func TestLedgerSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")

	ledger := &Ledger{Records: []MatchRecord{
		{
			Date:     time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			HomeTeam: "Arsenal", AwayTeam: "Chelsea",
			HomeGoals: 2, AwayGoals: 1,
			HomeOdds: 1.8, DrawOdds: 3.5, AwayOdds: 4.2,
			FTR:      "H",
			HomeForm: 0.6, AwayForm: 0.4,
			H2HKey: H2HKey("Arsenal", "Chelsea"), H2HRate: 0.75,
		},
	}}
	require.NoError(t, ledger.Save(path))

	// Dates are stored ISO style, not in the raw feed's day-first form
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(ledgerHeader, ","), lines[0])
	assert.Contains(t, lines[1], "2024-01-10")

	loaded, err := LoadLedger(path)
	require.NoError(t, err)
	require.Len(t, loaded.Records, 1)
	assert.Equal(t, ledger.Records[0], loaded.Records[0])
}

func TestMatchRecordWinner(t *testing.T) {
	home := MatchRecord{HomeTeam: "A", AwayTeam: "B", HomeGoals: 2, AwayGoals: 0}
	away := MatchRecord{HomeTeam: "A", AwayTeam: "B", HomeGoals: 0, AwayGoals: 1}
	draw := MatchRecord{HomeTeam: "A", AwayTeam: "B", HomeGoals: 1, AwayGoals: 1}

	assert.Equal(t, "A", home.Winner())
	assert.Equal(t, "B", away.Winner())
	assert.Equal(t, "", draw.Winner())
}
