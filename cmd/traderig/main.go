// CLAUDE:SUMMARY CLI entry point for traderig — runs the scripted trading scenario against the AQX platform.
// Command traderig runs one scripted trading session: login, select the
// configured instrument, place a buy and a sell order, close all open
// positions. Exit code 0 means every step was verified.
//
// Usage:
//
//	traderig -config traderig.yaml
//	traderig -headless=false -viewer :9190
//
// Credentials come from the ACCOUNT_ID and PASSWORD environment
// variables; a .env file in the working directory is loaded when present.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hazyhaar/traderig/trader"
)

func main() {
	configPath := flag.String("config", "", "path to traderig.yaml config file")
	instrument := flag.String("instrument", "", "override the instrument to trade")
	headless := flag.Bool("headless", true, "run Chrome without a window")
	viewer := flag.String("viewer", "", "listen address for the diagnostics viewer (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Only flags the user actually passed may override the config file.
	var headlessSet *bool
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "headless" {
			headlessSet = headless
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *instrument, headlessSet, *viewer); err != nil {
		logger.Error("traderig: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, instrument string, headless *bool, viewer string) error {
	if err := godotenv.Load(); err != nil {
		logger.Debug("traderig: no .env file", "error", err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if instrument != "" {
		cfg.Instrument = instrument
	}
	if headless != nil {
		cfg.Browser.Headless = headless
	}
	if viewer != "" {
		cfg.Diag.Viewer = viewer
	}

	creds := trader.Credentials{
		AccountID: os.Getenv("ACCOUNT_ID"),
		Password:  os.Getenv("PASSWORD"),
	}

	t, err := trader.New(cfg, creds, logger)
	if err != nil {
		return err
	}
	defer t.Close()

	if err := t.Start(ctx); err != nil {
		return err
	}

	viewerCtx, stopViewer := context.WithCancel(ctx)
	defer stopViewer()
	go func() {
		if err := t.ServeViewer(viewerCtx); err != nil {
			logger.Error("traderig: viewer stopped", "error", err)
		}
	}()

	report := t.Run(ctx)
	logReport(logger, report)

	if !report.Passed() {
		return fmt.Errorf("run %s failed, see step results above", report.RunID)
	}
	logger.Info("traderig: run passed", "run_id", report.RunID)
	return nil
}

func loadConfig(path string) (*trader.Config, error) {
	if path == "" {
		return trader.DefaultConfig(), nil
	}
	return trader.LoadConfigFile(path)
}

func logReport(logger *slog.Logger, report *trader.Report) {
	for _, step := range report.Steps {
		attrs := []any{
			"step", step.Name,
			"succeeded", step.Succeeded,
			"attempts", step.Attempts,
		}
		if step.Err != nil {
			attrs = append(attrs, "failure", step.Failure, "error", step.Err)
			logger.Error("traderig: step result", attrs...)
			continue
		}
		logger.Info("traderig: step result", attrs...)
	}
	logger.Info("traderig: report",
		"run_id", report.RunID,
		"started_at", report.StartedAt,
		"finished_at", report.FinishedAt,
		"duration", report.FinishedAt.Sub(report.StartedAt),
		"passed", report.Passed(),
	)
}
