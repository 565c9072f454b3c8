package base

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"gorm.io/gorm"

	"github.com/wcpos/siteconnect/internal/config"
	"github.com/wcpos/siteconnect/pkg/database"
)

// LoadConfig parses the config file at path, or the defaults when path is
// empty, and applies its log level.
func (c *Command) LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewConfig(afero.NewOsFs(), path)
	if err != nil {
		return nil, err
	}
	c.Log.SetLevel(cfg.Level())
	return cfg, nil
}

// OpenDatabase connects to the configured profile database.
func (c *Command) OpenDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Connect(ctx, cfg.DatabaseConfig(), c.Log)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	return db, nil
}
