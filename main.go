package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"orderflow/src/batch"
	"orderflow/src/config"
	"orderflow/src/engine"
	"orderflow/src/export"
	"orderflow/src/store"
)

func main() {
	// .env is optional; environment overrides still apply without it.
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("configuration failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})))

	if err := run(cfg); err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	intents, err := batch.ReadIntents(cfg.Input.OrdersFile)
	if err != nil {
		return err
	}
	slog.Info("orders loaded",
		slog.String("file", cfg.Input.OrdersFile),
		slog.Int("intents", len(intents)))

	var journal *store.RunStore
	if cfg.Journal.Path != "" {
		journal, err = store.NewRunStore(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	eng := engine.NewMatchingEngine()
	runner := batch.NewRunner(eng)

	runID := uuid.New().String()
	startedAt := time.Now()
	if journal != nil {
		if err := journal.BeginRun(ctx, runID, startedAt); err != nil {
			return err
		}
	}

	stats := runner.Run(intents)

	trades := eng.SnapshotTrades()
	books := eng.SnapshotBooks()

	if journal != nil {
		if err := journal.SaveTrades(ctx, runID, trades); err != nil {
			return err
		}
		if err := journal.FinishRun(ctx, runID, stats, time.Now()); err != nil {
			return err
		}
	}

	writer := export.NewWriter(cfg.Output.Dir)
	if err := writer.WriteBooks(books); err != nil {
		return err
	}
	if err := writer.WriteTrades(trades); err != nil {
		return err
	}

	for pair, snap := range books {
		slog.Info("book state",
			slog.String("pair", pair),
			slog.Int("bids", len(snap.Bids)),
			slog.Int("asks", len(snap.Asks)))
	}
	slog.Info("processing complete",
		slog.String("run_id", runID),
		slog.Int("trades", len(trades)),
		slog.Duration("elapsed", time.Since(startedAt)))
	return nil
}
