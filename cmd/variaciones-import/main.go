package main

import (
	"context"
	"flag"
	"os"
	"time"

	"variaciones/internal/amqp"
	"variaciones/internal/cli"
	"variaciones/internal/ledger"
	"variaciones/internal/ledger/xlsx"
	applog "variaciones/internal/log"
	"variaciones/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat).WithComponent(applog.ComponentImport)

	file := flag.String("file", cfg.SourceURL, "workbook path or http(s) URL (default SOURCE_URL)")
	timeout := flag.Duration("timeout", cfg.FetchTimeout, "maximum time to fetch and store the workbook")
	flag.Parse()

	if *file == "" {
		logger.Error("No workbook given: pass -file or set SOURCE_URL")
		os.Exit(2)
	}

	src, err := xlsx.New(xlsx.Config{
		Location:    *file,
		RealSheet:   cfg.RealSheetName,
		BudgetSheet: cfg.BudgetSheetName,
		Columns: ledger.Columns{
			Period:     cfg.ColumnPeriod,
			Category:   cfg.ColumnCategory,
			CostCenter: cfg.ColumnCostCenter,
			Amount:     cfg.ColumnAmount,
		},
	})
	if err != nil {
		logger.Error("Invalid workbook location", "error", err, "file", *file)
		os.Exit(2)
	}

	repo := cli.InitSQLite(cfg.SQLiteDBPath)
	defer repo.Close()

	var publisher services.InvalidationPublisher
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingKey)
		if err != nil {
			// Stored ledgers still show up once running servers' TTL expires.
			logger.Warn("AMQP unavailable, import will not notify servers", "error", err)
		} else {
			publisher = client
		}
	}

	importer := services.NewImportService(repo, publisher)
	defer importer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	batch, err := importer.Import(ctx, src, *file)
	if err != nil {
		logger.Error("Import failed", "error", err, "file", *file)
		os.Exit(1)
	}

	logger.Info("Import complete",
		"batch_id", batch.ID,
		"real_rows", batch.RealRows,
		"budget_rows", batch.BudgetRows,
		"db", cfg.SQLiteDBPath,
		"duration", time.Since(start))
}
