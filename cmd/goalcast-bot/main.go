package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richard-senior/goalcast/internal/bot"
	"github.com/richard-senior/goalcast/internal/logger"
	"github.com/richard-senior/goalcast/internal/metrics"
	"github.com/richard-senior/goalcast/pkg/goalcast"
)

func main() {
	logger.SetShowDateTime(true)

	configPath := flag.String("config", "", "path to a YAML config file overlaying the defaults")
	metricsAddr := flag.String("metrics-addr", ":9090", "listen address for the metrics endpoint")
	flag.Parse()

	if *configPath != "" {
		if err := goalcast.LoadConfig(*configPath); err != nil {
			logger.Error("Config error:", err)
			os.Exit(1)
		}
	}

	b, err := bot.NewBot(bot.Config{
		Token:             goalcast.Config.DiscordToken,
		AnnounceChannelID: goalcast.Config.DiscordChannel,
	})
	if err != nil {
		logger.Error("Bot setup failed:", err)
		os.Exit(1)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(
			metrics.Default().Registry(),
			promhttp.HandlerOpts{},
		))
		logger.Info("Serving metrics on", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			logger.Warn("Metrics server stopped:", err)
		}
	}()

	if err := b.Start(); err != nil {
		logger.Error("Bot start failed:", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	if err := b.Stop(); err != nil {
		logger.Warn("Bot shutdown error:", err)
	}
}
