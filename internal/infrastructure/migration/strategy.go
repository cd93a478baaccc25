// Package migration brings the database schema up to date, either with
// versioned goose scripts or with gorm automigration.
package migration

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/rackgrid/rackgrid/internal/infrastructure/persistence/models"
	"github.com/rackgrid/rackgrid/internal/shared/config"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

//go:embed scripts/*.sql
var scripts embed.FS

type Strategy interface {
	Migrate(ctx context.Context, db *gorm.DB) error
	Name() string
}

// StrategyFor picks automigration for sqlite or when it is switched on, and
// the goose scripts otherwise.
func StrategyFor(cfg config.DatabaseConfig, log logger.Interface) Strategy {
	if cfg.Driver == "sqlite" || cfg.AutoMigrate {
		return NewAutoMigrateStrategy(log)
	}
	return NewGooseStrategy(goose.DialectMySQL, log)
}

type GooseStrategy struct {
	dialect goose.Dialect
	logger  logger.Interface
}

func NewGooseStrategy(dialect goose.Dialect, log logger.Interface) *GooseStrategy {
	return &GooseStrategy{
		dialect: dialect,
		logger:  log.With("component", "migration.goose"),
	}
}

func (s *GooseStrategy) Name() string {
	return "goose"
}

func (s *GooseStrategy) provider(db *gorm.DB) (*goose.Provider, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	fsys, err := fs.Sub(scripts, "scripts")
	if err != nil {
		return nil, fmt.Errorf("failed to open migration scripts: %w", err)
	}
	p, err := goose.NewProvider(s.dialect, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to create goose provider: %w", err)
	}
	return p, nil
}

func (s *GooseStrategy) Migrate(ctx context.Context, db *gorm.DB) error {
	p, err := s.provider(db)
	if err != nil {
		return err
	}

	current, err := p.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	s.logger.Infow("starting goose migration", "version", current)

	results, err := p.Up(ctx)
	if err != nil {
		s.logger.Errorw("migration failed", "error", err)
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Infow("applied migration", "version", r.Source.Version, "path", r.Source.Path, "duration", r.Duration)
	}
	return nil
}

// Down rolls back the most recent migration.
func (s *GooseStrategy) Down(ctx context.Context, db *gorm.DB) error {
	p, err := s.provider(db)
	if err != nil {
		return err
	}
	r, err := p.Down(ctx)
	if err != nil {
		return fmt.Errorf("failed to run down migration: %w", err)
	}
	s.logger.Infow("rolled back migration", "version", r.Source.Version, "path", r.Source.Path)
	return nil
}

func (s *GooseStrategy) Status(ctx context.Context, db *gorm.DB) ([]*goose.MigrationStatus, error) {
	p, err := s.provider(db)
	if err != nil {
		return nil, err
	}
	status, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return status, nil
}

// AutoMigrateStrategy derives the schema from the gorm models. Used for
// sqlite and local development.
type AutoMigrateStrategy struct {
	logger logger.Interface
}

func NewAutoMigrateStrategy(log logger.Interface) *AutoMigrateStrategy {
	return &AutoMigrateStrategy{logger: log.With("component", "migration.automigrate")}
}

func (s *AutoMigrateStrategy) Name() string {
	return "gorm_auto_migrate"
}

func (s *AutoMigrateStrategy) Migrate(ctx context.Context, db *gorm.DB) error {
	all := models.All()
	if err := db.WithContext(ctx).AutoMigrate(all...); err != nil {
		return fmt.Errorf("failed to automigrate: %w", err)
	}
	s.logger.Infow("automigration completed", "models", len(all))
	return nil
}
