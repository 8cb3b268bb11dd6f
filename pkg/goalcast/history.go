package goalcast

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/internal/metrics"
	_ "modernc.org/sqlite"
)

// ftrToClass maps a full-time result letter to the model's class index
func ftrToClass(ftr string) (int, bool) {
	switch ftr {
	case "H":
		return 0, true
	case "D":
		return 1, true
	case "A":
		return 2, true
	default:
		return 0, false
	}
}

// History records every served prediction so the model monitor can later
// reconcile it against the final result and measure drift
type History struct {
	db *sql.DB
}

const historySchema = `
CREATE TABLE IF NOT EXISTS predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL,
	league TEXT NOT NULL,
	home TEXT NOT NULL,
	away TEXT NOT NULL,
	kickoff TEXT NOT NULL,
	features TEXT NOT NULL,
	predicted INTEGER NOT NULL,
	actual INTEGER
);
CREATE INDEX IF NOT EXISTS idx_predictions_kickoff ON predictions(kickoff);
`

// OpenHistory opens (and if needed creates) the prediction history database
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history db %s: %w", path, err)
	}
	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}
	return &History{db: db}, nil
}

// Close releases the underlying database handle
func (h *History) Close() error {
	return h.db.Close()
}

// Record stores one served prediction alongside the features it was made from
func (h *History) Record(league string, fixture Fixture, features []float64, predicted int) error {
	encoded, err := json.Marshal(features)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}
	_, err = h.db.Exec(
		`INSERT INTO predictions (created_at, league, home, away, kickoff, features, predicted)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		league,
		fixture.Home,
		fixture.Away,
		fixture.Kickoff.UTC().Format(time.RFC3339),
		string(encoded),
		predicted,
	)
	if err != nil {
		return fmt.Errorf("failed to record prediction: %w", err)
	}
	return nil
}

// Reconcile fills in actual outcomes for past predictions by matching them
// against ledger rows on teams and calendar date. Predictions whose match
// has not appeared in the ledger yet stay open
func (h *History) Reconcile(ledger *Ledger) (int, error) {
	rows, err := h.db.Query(
		`SELECT id, home, away, kickoff FROM predictions WHERE actual IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to query open predictions: %w", err)
	}
	defer rows.Close()

	type open struct {
		id         int64
		home, away string
		kickoff    time.Time
	}
	var opens []open
	for rows.Next() {
		var o open
		var kickoff string
		if err := rows.Scan(&o.id, &o.home, &o.away, &kickoff); err != nil {
			return 0, fmt.Errorf("failed to scan open prediction: %w", err)
		}
		o.kickoff, err = time.Parse(time.RFC3339, kickoff)
		if err != nil {
			logger.Warn("Skipping prediction with bad kickoff", kickoff, err)
			continue
		}
		opens = append(opens, o)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate open predictions: %w", err)
	}

	reconciled := 0
	for _, o := range opens {
		day := o.kickoff.UTC().Format(ledgerDateLayout)
		for _, rec := range ledger.Records {
			if rec.HomeTeam != o.home || rec.AwayTeam != o.away {
				continue
			}
			if rec.Date.Format(ledgerDateLayout) != day {
				continue
			}
			class, ok := ftrToClass(rec.FTR)
			if !ok {
				logger.Warn("Ledger row with unknown result", rec.FTR, o.home, o.away)
				break
			}
			if _, err := h.db.Exec(
				`UPDATE predictions SET actual = ? WHERE id = ?`, class, o.id); err != nil {
				return reconciled, fmt.Errorf("failed to reconcile prediction %d: %w", o.id, err)
			}
			reconciled++
			break
		}
	}
	if reconciled > 0 {
		logger.Info("Reconciled predictions", reconciled)
	}
	return reconciled, nil
}

// EvaluateRecent computes accuracy over the most recent reconciled slice of
// served predictions (the configured fraction, by kickoff) and reports
// whether it has fallen below the retraining threshold. With nothing
// reconciled yet there is no evidence of drift, so no retraining
func (h *History) EvaluateRecent() (float64, bool, error) {
	rows, err := h.db.Query(
		`SELECT predicted, actual FROM predictions
		 WHERE actual IS NOT NULL ORDER BY kickoff DESC`)
	if err != nil {
		return 0, false, fmt.Errorf("failed to query reconciled predictions: %w", err)
	}
	defer rows.Close()

	type outcome struct{ predicted, actual int }
	var outcomes []outcome
	for rows.Next() {
		var o outcome
		if err := rows.Scan(&o.predicted, &o.actual); err != nil {
			return 0, false, fmt.Errorf("failed to scan reconciled prediction: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	if err := rows.Err(); err != nil {
		return 0, false, fmt.Errorf("failed to iterate reconciled predictions: %w", err)
	}

	if len(outcomes) == 0 {
		logger.Warn("No reconciled predictions to evaluate")
		return 0, false, nil
	}

	n := int(float64(len(outcomes)) * Config.RecentFraction)
	if n < 1 {
		n = 1
	}
	recent := outcomes[:n]

	correct := 0
	for _, o := range recent {
		if o.predicted == o.actual {
			correct++
		}
	}
	accuracy := float64(correct) / float64(len(recent))
	retrain := accuracy < Config.AccuracyThreshold

	logger.Info("Recent model accuracy", accuracy, "over", len(recent), "predictions")
	if retrain {
		logger.Warn("Model accuracy below threshold", accuracy, Config.AccuracyThreshold)
	}
	metrics.Default().UpdateMonitor(accuracy, retrain)
	return accuracy, retrain, nil
}

// EvaluateLedger measures the classifier against the most recent slice of
// the enriched ledger itself, replaying each row's stored features. This
// catches drift even before any served predictions have settled
func EvaluateLedger(classifier *Classifier, ledger *Ledger) (float64, bool, error) {
	if len(ledger.Records) == 0 {
		return 0, false, fmt.Errorf("ledger is empty")
	}

	records := make([]MatchRecord, len(ledger.Records))
	copy(records, ledger.Records)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.After(records[j].Date)
	})

	n := int(float64(len(records)) * Config.RecentFraction)
	if n < 1 {
		n = 1
	}
	recent := records[:n]

	correct, evaluated := 0, 0
	for _, rec := range recent {
		actual, ok := ftrToClass(rec.FTR)
		if !ok {
			continue
		}
		features := []float64{
			rec.HomeOdds,
			rec.AwayOdds,
			rec.DrawOdds,
			rec.HomeForm,
			rec.AwayForm,
			rec.H2HRate,
		}
		predicted, err := classifier.Predict(features)
		if err != nil {
			return 0, false, err
		}
		evaluated++
		if predicted == actual {
			correct++
		}
	}
	if evaluated == 0 {
		return 0, false, fmt.Errorf("no evaluable rows in recent ledger slice")
	}

	accuracy := float64(correct) / float64(evaluated)
	retrain := accuracy < Config.AccuracyThreshold
	logger.Info("Ledger replay accuracy", accuracy, "over", evaluated, "matches")
	metrics.Default().UpdateMonitor(accuracy, retrain)
	return accuracy, retrain, nil
}
