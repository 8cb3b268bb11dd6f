package goalcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyFixture(home, away string, kickoff time.Time) Fixture {
	return Fixture{Home: home, Away: away, Kickoff: kickoff}
}

func TestHistoryReconcileAndEvaluate(t *testing.T) {
	useTestConfig(t)
	Config.RecentFraction = 1.0

	history, err := OpenHistory(Config.HistoryDb)
	require.NoError(t, err)
	defer history.Close()

	features := []float64{2.5, 2.8, 3.2, 0.5, 0.5, 0.5}
	base := day(2024, 1, 10)

	// Four predictions: two will turn out right, two wrong
	served := []struct {
		home, away string
		predicted  int
		result     string
	}{
		{"Arsenal", "Chelsea", 0, "H"}, // right
		{"Spurs", "West Ham", 1, "D"},  // right
		{"Everton", "Fulham", 0, "A"},  // wrong
		{"Wolves", "Brighton", 2, "H"}, // wrong
	}
	ledger := &Ledger{}
	for i, s := range served {
		kickoff := base.AddDate(0, 0, i)
		require.NoError(t, history.Record("EPL", historyFixture(s.home, s.away, kickoff), features, s.predicted))
		rec := record(kickoff, s.home, s.away, 0, 0)
		rec.FTR = s.result
		ledger.Records = append(ledger.Records, rec)
	}
	// One prediction whose match never settled
	require.NoError(t, history.Record("EPL", historyFixture("Luton", "Burnley", base.AddDate(0, 0, 30)), features, 0))

	reconciled, err := history.Reconcile(ledger)
	require.NoError(t, err)
	assert.Equal(t, 4, reconciled)

	// Re-running must not re-reconcile settled predictions
	again, err := history.Reconcile(ledger)
	require.NoError(t, err)
	assert.Equal(t, 0, again)

	accuracy, retrain, err := history.EvaluateRecent()
	require.NoError(t, err)
	assert.InDelta(t, 0.5, accuracy, 1e-9)
	assert.True(t, retrain, "accuracy 0.50 is below the 0.60 threshold")
}

func TestHistoryEvaluateAboveThreshold(t *testing.T) {
	useTestConfig(t)
	Config.RecentFraction = 1.0

	history, err := OpenHistory(Config.HistoryDb)
	require.NoError(t, err)
	defer history.Close()

	features := []float64{2.5, 2.8, 3.2, 0.5, 0.5, 0.5}
	ledger := &Ledger{}
	for i := 0; i < 4; i++ {
		kickoff := day(2024, 1, 10).AddDate(0, 0, i)
		home := "Home" + string(rune('A'+i))
		away := "Away" + string(rune('A'+i))
		require.NoError(t, history.Record("EPL", historyFixture(home, away, kickoff), features, 0))
		rec := record(kickoff, home, away, 1, 0) // home win, matching the prediction
		if i == 3 {
			rec = record(kickoff, home, away, 0, 1) // one miss
		}
		ledger.Records = append(ledger.Records, rec)
	}

	_, err = history.Reconcile(ledger)
	require.NoError(t, err)

	accuracy, retrain, err := history.EvaluateRecent()
	require.NoError(t, err)
	assert.InDelta(t, 0.75, accuracy, 1e-9)
	assert.False(t, retrain)
}

func TestHistoryEvaluateWithNothingReconciled(t *testing.T) {
	useTestConfig(t)

	history, err := OpenHistory(Config.HistoryDb)
	require.NoError(t, err)
	defer history.Close()

	accuracy, retrain, err := history.EvaluateRecent()
	require.NoError(t, err)
	assert.Zero(t, accuracy)
	assert.False(t, retrain, "no settled evidence means no retraining signal")
}

func TestEvaluateLedgerReplay(t *testing.T) {
	useTestConfig(t)
	Config.RecentFraction = 1.0

	path := writeModel(t, "model.json", stumpDump())
	classifier, err := LoadClassifier(path)
	require.NoError(t, err)

	// The stump model calls home wins at short home odds and away wins at
	// long home odds; build a ledger it scores 3 of 4 on
	mk := func(d time.Time, homeOdds float64, ftr string) MatchRecord {
		rec := record(d, "H"+ftr, "A"+ftr, 0, 0)
		rec.FTR = ftr
		rec.HomeOdds = homeOdds
		rec.AwayOdds = 3.0
		rec.DrawOdds = 3.2
		return rec
	}
	ledger := &Ledger{Records: []MatchRecord{
		mk(day(2024, 1, 1), 1.5, "H"), // predicted H, right
		mk(day(2024, 1, 2), 1.6, "H"), // predicted H, right
		mk(day(2024, 1, 3), 3.5, "A"), // predicted A, right
		mk(day(2024, 1, 4), 1.5, "A"), // predicted H, wrong
	}}

	accuracy, retrain, err := EvaluateLedger(classifier, ledger)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, accuracy, 1e-9)
	assert.False(t, retrain)
}
