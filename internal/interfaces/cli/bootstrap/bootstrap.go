// Package bootstrap loads configuration, logging and the database for the
// CLI commands.
package bootstrap

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/rackgrid/rackgrid/internal/infrastructure/config"
	"github.com/rackgrid/rackgrid/internal/infrastructure/database"
	"github.com/rackgrid/rackgrid/internal/infrastructure/migration"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

// Runtime is what every command needs before it does its own work.
type Runtime struct {
	Config *config.Config
	Logger logger.Interface
	DB     *gorm.DB
}

// Init loads configPath (empty searches the default locations), installs
// the global logger and opens the database.
func Init(configPath string) (*Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logger, cfg.Logger.Level == "debug"); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.NewLogger()

	db, err := database.Init(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Runtime{Config: cfg, Logger: log, DB: db}, nil
}

// Migrate applies the schema with the strategy the database config selects.
func (r *Runtime) Migrate(ctx context.Context) error {
	strategy := migration.StrategyFor(r.Config.Database, r.Logger)
	r.Logger.Infow("running migrations", "strategy", strategy.Name())
	if err := strategy.Migrate(ctx, r.DB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Close releases the database.
func (r *Runtime) Close() {
	if err := database.Close(); err != nil {
		r.Logger.Errorw("failed to close database", "error", err)
	}
}
