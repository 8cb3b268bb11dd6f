package goalcast

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRawCSV(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(Config.RawDataPath, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(Config.RawDataPath, name), []byte(content), 0644))
}

const sampleCSV = `Div,Date,HomeTeam,AwayTeam,FTHG,FTAG,FTR,B365H,B365D,B365A
E0,10/01/2024,Arsenal,Chelsea,2,1,H,1.8,3.5,4.2
E0,11/01/24,Chelsea,Arsenal,0,0,D,2.1,3.2,3.4
E0,garbage,Spurs,Arsenal,1,1,D,2.0,3.0,3.0
E0,12/01/2024,Arsenal,Spurs,0,2,A,1.9,3.4,4.0
`

func TestRebuildLedgerRenamesAndParses(t *testing.T) {
	useTestConfig(t)
	writeRawCSV(t, "E0_2324.csv", sampleCSV)

	require.NoError(t, RebuildLedger())

	ledger, err := LoadLedger(Config.LedgerPath)
	require.NoError(t, err)

	// The row with the unparseable date is dropped, the rest survive
	require.Len(t, ledger.Records, 3)

	// Rows come out date sorted; both day-first layouts parse
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), ledger.Records[0].Date)
	assert.Equal(t, time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), ledger.Records[1].Date)
	assert.Equal(t, time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC), ledger.Records[2].Date)

	first := ledger.Records[0]
	assert.Equal(t, "Arsenal", first.HomeTeam)
	assert.Equal(t, "Chelsea", first.AwayTeam)
	assert.Equal(t, 2, first.HomeGoals)
	assert.Equal(t, 1, first.AwayGoals)
	assert.Equal(t, "H", first.FTR)
	assert.Equal(t, 1.8, first.HomeOdds)
	assert.Equal(t, 3.5, first.DrawOdds)
	assert.Equal(t, 4.2, first.AwayOdds)
	assert.Equal(t, H2HKey("Arsenal", "Chelsea"), first.H2HKey)
}

func TestRebuildLedgerFormHasNoLookahead(t *testing.T) {
	useTestConfig(t)
	writeRawCSV(t, "E0_2324.csv", sampleCSV)

	require.NoError(t, RebuildLedger())
	ledger, err := LoadLedger(Config.LedgerPath)
	require.NoError(t, err)

	// First appearance in a role carries the neutral value, not the
	// outcome of the row itself
	assert.Equal(t, 0.5, ledger.Records[0].HomeForm, "Arsenal's first home match must not see its own result")
	assert.Equal(t, 0.5, ledger.Records[0].AwayForm)

	// Arsenal's second home match sees only the earlier home win
	assert.Equal(t, 1.0, ledger.Records[2].HomeForm)
}

func TestRebuildLedgerH2HPerspective(t *testing.T) {
	useTestConfig(t)
	writeRawCSV(t, "E0_2324.csv", sampleCSV)

	require.NoError(t, RebuildLedger())
	ledger, err := LoadLedger(Config.LedgerPath)
	require.NoError(t, err)

	// Arsenal|Chelsea: perspective team Arsenal hosted once and won
	for _, rec := range ledger.Records {
		if rec.H2HKey == H2HKey("Arsenal", "Chelsea") {
			assert.Equal(t, 1.0, rec.H2HRate)
		}
	}
}

func TestRebuildLedgerSkipsBadFiles(t *testing.T) {
	useTestConfig(t)
	writeRawCSV(t, "good.csv", sampleCSV)
	writeRawCSV(t, "bad.csv", "this is not even close to a match CSV")

	require.NoError(t, RebuildLedger(), "one unusable file must not fail the rebuild")

	ledger, err := LoadLedger(Config.LedgerPath)
	require.NoError(t, err)
	assert.Len(t, ledger.Records, 3)
}

func TestRebuildLedgerFailsWhenNothingUsable(t *testing.T) {
	useTestConfig(t)
	writeRawCSV(t, "bad.csv", "still not a match CSV")

	assert.Error(t, RebuildLedger())
}

func TestRebuildLedgerFailsOnEmptyDir(t *testing.T) {
	useTestConfig(t)
	require.NoError(t, os.MkdirAll(Config.RawDataPath, 0755))

	assert.Error(t, RebuildLedger())
}
