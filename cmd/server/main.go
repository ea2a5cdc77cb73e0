package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/autopilot-remediation/internal/config"
	"github.com/invisible-tech/autopilot-remediation/internal/remediation"
	"github.com/invisible-tech/autopilot-remediation/internal/server"
	"github.com/invisible-tech/autopilot-remediation/internal/version"
	"github.com/invisible-tech/autopilot-remediation/internal/watch"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.DefaultServerConfig()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.WithField("version", version.Version).Info("Starting remediation server")

	thresholds, err := remediation.LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		log.WithError(err).Fatal("Invalid thresholds")
	}
	rs, err := remediation.BuildRuleSet(thresholds)
	if err != nil {
		log.WithError(err).Fatal("Failed to build rule set")
	}
	engine := remediation.NewEngine(rs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WatchThresholds && cfg.ThresholdsPath != "" {
		tw, err := watch.New(cfg.ThresholdsPath, engine, log)
		if err != nil {
			log.WithError(err).Warn("Threshold hot reload disabled")
		} else {
			go tw.Start(ctx)
		}
	}

	srv := server.New(cfg, engine, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Remediation server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down remediation server")
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
}
