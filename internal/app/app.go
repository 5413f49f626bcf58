// Package app wires configuration into the database, repositories and the
// import service shared by the server and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/rpattn/memberdesk/internal/config"
	"github.com/rpattn/memberdesk/internal/db"
	"github.com/rpattn/memberdesk/internal/ingestion"
	"github.com/rpattn/memberdesk/internal/progress"
	"github.com/rpattn/memberdesk/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// App holds the long-lived dependencies of a running process.
type App struct {
	Config  config.Config
	Logger  *logrus.Logger
	Conn    *db.Connection
	Members repository.MemberRepository
	Trips   repository.TripRepository
	Logs    repository.ImportLogRepository
	Tracker progress.Tracker
	Imports *ingestion.Service

	redis *redis.Client
}

// New connects to the database, optionally applies migrations, and builds
// the import service.
func New(ctx context.Context, cfg config.Config, logger *logrus.Logger, migrate bool) (*App, error) {
	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if migrate {
		if err := db.RunMigrations(conn.Pool, logger); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Conn:    conn,
		Members: repository.NewMemberRepository(conn.Pool),
		Trips:   repository.NewTripRepository(conn.Pool),
		Logs:    repository.NewImportLogRepository(conn.Pool),
	}

	tracker, err := a.newTracker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Tracker = tracker

	a.Imports = ingestion.NewService(a.Members, a.Trips, a.Logs,
		ingestion.WithLogger(logger),
		ingestion.WithTracker(tracker),
		ingestion.WithAllocationAttempts(cfg.Import.AllocationAttempts),
		ingestion.WithMemberDefaults(ingestion.MemberDefaults{
			Country:  cfg.Import.DefaultCountry,
			PhotoURL: cfg.Import.PlaceholderPhotoURL,
		}),
	)
	return a, nil
}

func (a *App) newTracker(ctx context.Context) (progress.Tracker, error) {
	if a.Config.Import.Tracker != "redis" {
		return progress.NewMemoryTracker(a.Config.Import.TrackerTTL, a.Config.Import.TrackerSize), nil
	}

	a.redis = redis.NewClient(&redis.Options{
		Addr:     a.Config.Redis.Addr,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	})
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to reach redis at %s: %w", a.Config.Redis.Addr, err)
	}
	a.Logger.WithField("addr", a.Config.Redis.Addr).Info("import progress tracked in redis")
	return progress.NewRedisTracker(a.redis, a.Config.Import.TrackerTTL), nil
}

// Close waits for background imports and releases connections.
func (a *App) Close() {
	if a.Imports != nil {
		a.Imports.Wait()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.WithError(err).Warn("failed to close redis client")
		}
	}
	a.Conn.Close()
}
