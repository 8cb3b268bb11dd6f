package goalcast

import (
	"fmt"
	"strings"
	"time"

	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/internal/metrics"
)

// Prediction is one served match outcome prediction
type Prediction struct {
	Home    string
	Away    string
	Kickoff time.Time
	Class   int
	Outcome string
}

// PredictLeague predicts the outcome of every fixture in the given league
// kicking off on the requested day (today, or tomorrow when tomorrow is
// true, both UTC). The message return is set when there is nothing to
// predict or the prediction path cannot start at all: no such league, no
// model, no fixtures. Individual fixtures that cannot be built or scored
// are logged and skipped rather than failing the whole league
func PredictLeague(leagueKey string, tomorrow bool) ([]Prediction, string) {
	league, ok := LeagueByKey(leagueKey)
	if !ok {
		return nil, fmt.Sprintf("Unknown league %q. Use the leagues command to list supported leagues.", leagueKey)
	}

	modelPath, err := FindModelFile()
	if err != nil {
		logger.Error("Cannot locate model", err)
		return nil, "No trained model available."
	}
	classifier, err := LoadClassifier(modelPath)
	if err != nil {
		logger.Error("Cannot load model", err)
		return nil, "No trained model available."
	}

	ledger, err := LoadLedger(Config.LedgerPath)
	if err != nil {
		logger.Error("Cannot load match ledger", err)
		return nil, "Historical match data is unavailable."
	}
	builder := NewFeatureBuilder(ledger)

	fixtures, err := FixturesForWindow()
	if err != nil {
		logger.Error("Cannot fetch fixtures", err)
		return nil, "Fixture data is unavailable."
	}

	day := time.Now().UTC()
	dayWord := "today"
	if tomorrow {
		day = day.AddDate(0, 0, 1)
		dayWord = "tomorrow"
	}
	wanted := day.Format("2006-01-02")

	var targeted []Fixture
	for _, fx := range fixtures {
		if fx.LeagueID != league.FixtureID {
			continue
		}
		if fx.Kickoff.UTC().Format("2006-01-02") != wanted {
			continue
		}
		targeted = append(targeted, fx)
	}
	if len(targeted) == 0 {
		return nil, fmt.Sprintf("No fixtures found for %s.", dayWord)
	}

	allOdds, err := OddsForLeagues()
	if err != nil {
		// Neutral odds still produce a usable vector; keep going
		logger.Warn("Odds unavailable, predictions will use neutral odds", err)
	}
	events := allOdds[league.Key]

	history, err := OpenHistory(Config.HistoryDb)
	if err != nil {
		logger.Warn("Prediction history unavailable", err)
		history = nil
	} else {
		defer history.Close()
	}

	var predictions []Prediction
	for _, fx := range targeted {
		features, err := builder.BuildFeatures(fx, events)
		if err != nil {
			logger.Warn("Skipping fixture", fx.Home, "v", fx.Away, err)
			metrics.Default().RecordSkippedFixture("bad_features")
			continue
		}

		class, err := classifier.Predict(features)
		if err != nil {
			logger.Warn("Skipping fixture", fx.Home, "v", fx.Away, err)
			metrics.Default().RecordSkippedFixture("predict_error")
			continue
		}

		prediction := Prediction{
			Home:    fx.Home,
			Away:    fx.Away,
			Kickoff: fx.Kickoff,
			Class:   class,
			Outcome: OutcomeLabel(class),
		}
		predictions = append(predictions, prediction)
		metrics.Default().RecordPrediction(league.Key, prediction.Outcome)

		if history != nil {
			if err := history.Record(league.Key, fx, features, class); err != nil {
				logger.Warn("Failed to record prediction", err)
			}
		}
	}

	if len(predictions) == 0 {
		return nil, fmt.Sprintf("No fixtures could be predicted for %s.", dayWord)
	}
	return predictions, ""
}

// FormatPredictions renders predictions as the plain lines shown to users
func FormatPredictions(predictions []Prediction) string {
	lines := make([]string, 0, len(predictions))
	for _, p := range predictions {
		lines = append(lines, fmt.Sprintf("%s vs %s: %s", p.Home, p.Away, p.Outcome))
	}
	return strings.Join(lines, "\n")
}
