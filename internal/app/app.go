// Package app builds the shared runtime both binaries start from.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chronobank/internal/config"
	"chronobank/internal/jobs"
	"chronobank/internal/logger"
	"chronobank/internal/metrics"
	"chronobank/internal/notify"
	"chronobank/internal/repository"
	"chronobank/internal/repository/memory"
	"chronobank/internal/repository/postgres"
	"chronobank/internal/service"
)

type Runtime struct {
	Config  *config.Config
	Store   repository.Store
	Metrics *metrics.Collector
	Bank    *service.BankService
	Relay   *notify.Relay
	Jobs    *jobs.JobRunner

	db   *sql.DB
	sink notify.Sink
}

// New opens the configured store and wires the banking services, the
// notification relay and the job runner on top of it.
func New(ctx context.Context, cfg *config.Config) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Metrics: metrics.NewCollector()}

	switch cfg.Database.Type {
	case "memory":
		logger.Warn("Using in-memory store; data is lost on exit")
		store := memory.NewStore()
		if err := memory.SeedAccountTypes(ctx, store); err != nil {
			return nil, fmt.Errorf("seed account types: %w", err)
		}
		rt.Store = store
	default:
		logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port,
			"database", cfg.Database.Database, "user", cfg.Database.User)
		db, err := postgres.Open(ctx, cfg.GetDatabaseConnectionString(),
			cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.ConnMaxLifetime())
		if err != nil {
			return nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		rt.db = db
		rt.Store = postgres.NewStore(db)
	}

	rt.sink = NewSink(cfg.Notifications)
	rt.Bank = service.NewBankService(rt.Store, cfg, rt.Metrics, nil)
	rt.Relay = notify.NewRelay(rt.Store.Repos().Notifications, rt.sink, cfg.Notifications.RelayBatch, nil).
		WithMetrics(rt.Metrics)
	rt.Jobs = jobs.NewJobRunner(&jobs.Services{
		Loans:       rt.Bank.Loans(),
		Investments: rt.Bank.Investments(),
		Relay:       rt.Relay,
	}, cfg)
	return rt, nil
}

// NewSink picks the notification sink named in the config.
func NewSink(cfg config.NotificationsConfig) notify.Sink {
	if cfg.Sink == "kafka" {
		logger.Info("Relaying notifications to Kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		return notify.NewKafkaSink(notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), cfg.KafkaTopic)
	}
	return notify.LogSink{}
}

// Ping reports whether the store is reachable.
func (rt *Runtime) Ping(ctx context.Context) error {
	if rt.db == nil {
		return nil
	}
	return rt.db.PingContext(ctx)
}

func (rt *Runtime) Close() error {
	var errs []error
	if err := rt.sink.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close notification sink: %w", err))
	}
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
