// Package app wires the ledger's infrastructure for the server and the scheduler.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/segyhp/fee-ledger/internal/catalog"
	"github.com/segyhp/fee-ledger/internal/config"
	"github.com/segyhp/fee-ledger/internal/directory"
	"github.com/segyhp/fee-ledger/internal/jobs"
	"github.com/segyhp/fee-ledger/internal/notify"
	"github.com/segyhp/fee-ledger/internal/repository"
	"github.com/segyhp/fee-ledger/internal/service"
)

type App struct {
	DB         *sqlx.DB
	Redis      *redis.Client
	Service    *service.BillingService
	Dispatcher *notify.Dispatcher
	log        *logrus.Logger
}

// New opens the database and redis and builds the billing service on top of them
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*App, error) {
	db, err := initDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.WithField("driver", cfg.Database.Driver).Info("database schema applied")
	}

	redisClient, err := initRedis(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	store := repository.NewStore(db,
		repository.WithRetries(cfg.Ledger.TxMaxRetries),
		repository.WithTxTimeout(cfg.Ledger.TxTimeout),
		repository.WithLogger(log),
	)

	var charges catalog.Resolver = catalog.NewSQLCatalog(db)
	if cfg.Ledger.CatalogCacheTTL > 0 {
		charges = catalog.NewCached(charges, redisClient, cfg.Ledger.CatalogCacheTTL, log)
	}

	dir := directory.NewSQLDirectory(db)

	var sender notify.Sender = notify.NewLogSender(log)
	if cfg.SMTPEnabled() {
		sender = notify.NewEmailSender(cfg.SMTP, log)
	}
	dispatcher := notify.NewDispatcher(sender, dir, cfg.Ledger.NotifyTimeout, log)

	svc := service.NewBillingService(
		store,
		charges,
		dir,
		dispatcher,
		jobs.NewRedisStore(redisClient, cfg.Ledger.JobTTL),
		cfg,
		log,
	)

	return &App{
		DB:         db,
		Redis:      redisClient,
		Service:    svc,
		Dispatcher: dispatcher,
		log:        log,
	}, nil
}

// Close waits for background work, then releases connections
func (a *App) Close() {
	a.Service.Wait()
	a.Dispatcher.Wait()

	if err := a.Redis.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close redis")
	}
	if err := a.DB.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}), nil
}
