package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"commodity-price-portal/internal/app"
	"commodity-price-portal/internal/config"
	"commodity-price-portal/internal/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Runs the daily ingestion path once and prints the result as JSON.
// Exits non-zero when the ingestion run failed.
func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to $CONFIG_PATH)")
	skipAggregate := flag.Bool("ingest-only", false, "run ingestion without aggregation or publication")
	flag.Parse()

	_ = godotenv.Load()

	path := *configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config from %s: %v", path, err)
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	zl, err := logger.New(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	a, err := app.New(cfg, zl)
	if err != nil {
		zl.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Scheduler.GetJobTimeout())
	defer cancel()

	var out interface{}
	succeeded := false
	if *skipAggregate {
		run := a.Coordinator.Run(ctx)
		out, succeeded = run, run.Succeeded()
	} else {
		if a.Search != nil {
			if err := a.Search.InitIndex(); err != nil {
				zl.Warn("Failed to initialize search index", zap.Error(err))
			}
		}
		res, err := a.Scheduler.TriggerIngestionNow(ctx)
		if err != nil {
			zl.Fatal("Ingestion did not run", zap.Error(err))
		}
		out, succeeded = res, res.Run.Succeeded()
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		zl.Error("Failed to encode result", zap.Error(err))
	}

	if !succeeded {
		a.Close()
		zl.Sync()
		os.Exit(1)
	}
}
