package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/pkg/goalcast"
)

func main() {
	// Configure logging
	logger.SetShowDateTime(true)

	configPath := flag.String("config", "", "path to a YAML config file overlaying the defaults")
	fetchLeagues := flag.Bool("leagues", false, "refresh the active leagues cache")
	fetchOdds := flag.Bool("odds", false, "fetch betting odds for all supported leagues")
	fetchFixtures := flag.Bool("fixtures", false, "fetch fixtures for today and tomorrow")
	download := flag.String("download", "", "download historical CSVs for a season, e.g. 2324")
	rebuild := flag.Bool("rebuild", false, "rebuild the enriched match ledger from raw CSVs")
	predict := flag.String("predict", "", "predict fixtures for a league, e.g. EPL")
	tomorrow := flag.Bool("tomorrow", false, "predict tomorrow's fixtures instead of today's")
	monitor := flag.Bool("monitor", false, "evaluate recent model accuracy")
	flag.Parse()

	if *configPath != "" {
		if err := goalcast.LoadConfig(*configPath); err != nil {
			logger.Error("Config error:", err)
			os.Exit(1)
		}
	}

	logger.Info("Starting github.com/richard-senior/goalcast")

	ran := false

	if *fetchLeagues {
		ran = true
		active := goalcast.ActiveLeagues()
		logger.Info("Active supported leagues:", len(active))
	}

	if *fetchOdds {
		ran = true
		odds, err := goalcast.OddsForLeagues()
		if err != nil {
			logger.Error("Odds fetch failed:", err)
			os.Exit(1)
		}
		logger.Info("Fetched odds for leagues:", len(odds))
	}

	if *fetchFixtures {
		ran = true
		fixtures, err := goalcast.FixturesForWindow()
		if err != nil {
			logger.Error("Fixture fetch failed:", err)
			os.Exit(1)
		}
		logger.Info("Fetched fixtures:", len(fixtures))
	}

	if *download != "" {
		ran = true
		codes := make([]string, 0, len(goalcast.SupportedLeagues))
		for _, league := range goalcast.SupportedLeagues {
			codes = append(codes, league.DataCode)
		}
		if err := goalcast.DownloadHistoricalData(codes, *download); err != nil {
			logger.Error("Historical download failed:", err)
			os.Exit(1)
		}
	}

	if *rebuild {
		ran = true
		logger.Info("Rebuilding match ledger...")
		if err := goalcast.RebuildLedger(); err != nil {
			logger.Error("Ledger rebuild failed:", err)
			os.Exit(1)
		}
		logger.Info("Ledger rebuild completed successfully")
	}

	if *predict != "" {
		ran = true
		predictions, msg := goalcast.PredictLeague(*predict, *tomorrow)
		if msg != "" {
			fmt.Println(msg)
		} else {
			fmt.Println(goalcast.FormatPredictions(predictions))
		}
	}

	if *monitor {
		ran = true
		if err := runMonitor(); err != nil {
			logger.Error("Model evaluation failed:", err)
			os.Exit(1)
		}
	}

	if !ran {
		flag.Usage()
		os.Exit(2)
	}
}

func runMonitor() error {
	ledger, err := goalcast.LoadLedger(goalcast.Config.LedgerPath)
	if err != nil {
		return err
	}

	history, err := goalcast.OpenHistory(goalcast.Config.HistoryDb)
	if err != nil {
		return err
	}
	defer history.Close()

	if _, err := history.Reconcile(ledger); err != nil {
		return err
	}
	accuracy, retrain, err := history.EvaluateRecent()
	if err != nil {
		return err
	}

	fmt.Printf("Recent accuracy: %.2f%%\n", accuracy*100)
	if retrain {
		fmt.Println("Model accuracy below threshold: retraining recommended")
	}
	return nil
}
