package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"loan-eda/cache"
	"loan-eda/catalog"
	"loan-eda/config"
	"loan-eda/models"
	"loan-eda/server"
	"loan-eda/services"
	"loan-eda/storage"
	"loan-eda/utils"
)

func main() {
	mode := flag.String("mode", "build", "build: write the analysis table and print insights; serve: run the dashboard API")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	logger := utils.NewLoggerWith(os.Stdout, cfg.LogLevel, cfg.LogFormat)

	cat, err := catalog.Load()
	if err != nil {
		logger.Error("Failed to load data dictionary: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	var code int
	switch *mode {
	case "build":
		code = runBuild(ctx, cfg, cat, logger)
	case "serve":
		code = runServe(ctx, cfg, cat, logger)
	default:
		logger.Error("Unknown mode %q (want build or serve)", *mode)
		code = 2
	}
	stop()
	logger.Close()
	os.Exit(code)
}

func newPipeline(cfg *config.Config, logger *utils.Logger, observe func(string, time.Duration, int)) *services.Pipeline {
	return services.NewPipeline(logger, services.PipelineOptions{
		MissingThreshold: cfg.MissingCutoff,
		OutlierWorkers:   cfg.OutlierWorkers,
		Observe:          observe,
	})
}

// runBuild builds the table once, writes every configured sink and prints
// the insights report. Only a load or CSV failure is fatal.
func runBuild(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, logger *utils.Logger) int {
	logger.Info("=== Loan EDA pipeline starting ===")
	logger.Info("Config: source %s | missing threshold %.2f | outlier workers %d",
		cfg.SourcePath, cfg.MissingCutoff, cfg.OutlierWorkers)

	table, err := newPipeline(cfg, logger, nil).Run(ctx, cfg.SourcePath)
	if err != nil {
		logger.Error("Pipeline failed: %v", err)
		return 1
	}

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
		return 1
	}
	if err := csvWriter.Write(ctx, table, nil); err != nil {
		logger.Error("CSV write failed: %v", err)
		return 1
	}
	logger.Info("Analysis table saved to %s", cfg.CSVOutputPath)

	if cfg.XLSXOutputPath != "" {
		writeXLSX(ctx, cfg.XLSXOutputPath, table, cat, logger)
	}
	if cfg.PostgresEnabled {
		writePostgres(ctx, cfg, table, logger)
	}

	insights := services.NewInsightService(logger, cat)
	view, err := services.NewView(table, services.Filter{}, cfg.SampleSeed)
	if err != nil {
		logger.Error("Failed to build report view: %v", err)
		return 1
	}
	insights.Print(os.Stdout, insights.Report(view))

	fmt.Printf("  Done. Analysis table → %s | run %s\n\n", cfg.CSVOutputPath, table.RunID())
	return 0
}

func writeXLSX(ctx context.Context, path string, table *models.Table, cat *catalog.Catalog, logger *utils.Logger) {
	w, err := storage.NewXLSXWriter(path, cat)
	if err == nil {
		err = w.Write(ctx, table, nil)
	}
	if err != nil {
		logger.Error("XLSX write failed: %v", err)
		return
	}
	logger.Info("Workbook saved to %s", path)
}

func writePostgres(ctx context.Context, cfg *config.Config, table *models.Table, logger *utils.Logger) {
	retry := &utils.RetryConfig{MaxAttempts: cfg.MaxRetries, BaseDelay: 2 * time.Second, Logger: logger}
	pg, err := storage.NewPostgresWriter(ctx, cfg.DSN(), retry, logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		return
	}
	defer pg.Close()

	if err := pg.Write(ctx, table, nil); err != nil {
		logger.Error("PostgreSQL write failed: %v", err)
		return
	}
	n, err := pg.Count(ctx)
	if err != nil {
		logger.Warn("PostgreSQL row count failed: %v", err)
		return
	}
	logger.Info("Analysis table stored in PostgreSQL (table: %s, %d rows)", storage.AnalysisTable, n)
}

// runServe builds the first table, then serves the dashboard API until
// interrupted, rebuilding on the configured schedule.
func runServe(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, logger *utils.Logger) int {
	logger.Info("=== Loan EDA dashboard API starting ===")

	metrics := server.NewMetrics()
	pipeline := newPipeline(cfg, logger, metrics.ObserveStage)
	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
		return 1
	}

	store := server.NewTableStore(func(ctx context.Context) (*models.Table, error) {
		table, err := pipeline.Run(ctx, cfg.SourcePath)
		if err != nil {
			return nil, err
		}
		if err := csvWriter.Write(ctx, table, nil); err != nil {
			logger.Error("CSV write failed: %v", err)
		}
		return table, nil
	}, metrics, logger)

	if err := store.Refresh(ctx); err != nil {
		logger.Error("Initial table build failed: %v", err)
		return 1
	}

	var summaries *cache.RedisCache
	if cfg.RedisAddr != "" {
		summaries = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPass, cfg.CacheTTL, logger)
	}
	defer summaries.Close()

	scheduler, err := server.StartScheduler(cfg.RefreshCron, store, logger)
	if err != nil {
		logger.Error("Failed to schedule rebuilds: %v", err)
		return 1
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	srv := server.New(server.Options{
		Store:    store,
		Insights: services.NewInsightService(logger, cat),
		Catalog:  cat,
		Cache:    summaries,
		Metrics:  metrics,
		Logger:   logger,
		Seed:     cfg.SampleSeed,
	})
	if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		logger.Error("Server stopped: %v", err)
		return 1
	}
	return 0
}
