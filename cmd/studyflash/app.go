package main

import (
	"context"
	"time"

	"github.com/vytor/studyflash/internal/config"
	"github.com/vytor/studyflash/internal/db"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/repository/sqlite"
	"github.com/vytor/studyflash/internal/services"
	"github.com/vytor/studyflash/internal/worker"
)

// app holds the wired store and services shared by every command.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *db.DB
	importPool *worker.Pool
	scheduler  services.ReviewScheduler
	importer   services.ImportService
	stats      services.StatsService
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	log, err := setup(*cfg)
	if err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		return nil, err
	}

	cards := sqlite.NewCardRepository(database.DB)
	statsRepo := sqlite.NewStatsRepository(database.DB)

	importPool := worker.NewPool(cfg.ImportWorkerCount, cfg.ImportQueueSize)
	importPool.Start(ctx)

	return &app{
		cfg:        cfg,
		log:        log,
		db:         database,
		importPool: importPool,
		scheduler: services.NewReviewScheduler(cards,
			services.WithRetry(cfg.ReviewMaxRetries, cfg.ReviewRetryBackoff),
		),
		importer: services.NewImportService(cards, importPool, time.Now),
		stats:    services.NewStatsService(statsRepo, cards),
	}, nil
}

func (a *app) Close() {
	a.log.Debug("stopping import pool")
	a.importPool.Stop()
	a.log.Debug("closing database connection")
	if err := a.db.Close(); err != nil {
		a.log.Error("failed to close database: %v", err)
	}
}
