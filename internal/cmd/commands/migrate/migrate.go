package migrate

import (
	"context"
	"database/sql"
	"flag"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver for golang-migrate

	"github.com/wcpos/siteconnect/internal/cmd/base"
	"github.com/wcpos/siteconnect/internal/migrate"
	"github.com/wcpos/siteconnect/pkg/database"
)

type Command struct {
	*base.Command

	flagConfig   string
	flagRollback int
	flagStatus   bool
}

func (c *Command) Synopsis() string {
	return "Apply database schema migrations"
}

func (c *Command) Help() string {
	return `Usage: siteconnect migrate [options]

  Bring the profile database schema up to date. PostgreSQL databases use the
  embedded SQL migrations; SQLite databases are migrated in place and need no
  separate step.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("migrate", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "", "Path to the config file",
	)
	f.IntVar(
		&c.flagRollback, "rollback", 0,
		"Revert this many migrations instead of applying (PostgreSQL only)",
	)
	f.BoolVar(
		&c.flagStatus, "status", false,
		"Print the current migration version and exit (PostgreSQL only)",
	)

	return f
}

func (c *Command) Run(args []string) int {
	logger, ui := c.Log, c.UI

	f := c.Flags()
	if err := f.Parse(args); err != nil {
		ui.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	if c.flagRollback < 0 {
		ui.Error("rollback must not be negative")
		return 1
	}

	cfg, err := c.LoadConfig(c.flagConfig)
	if err != nil {
		ui.Error(fmt.Sprintf("error parsing config: %v", err))
		return 1
	}
	dbCfg := cfg.DatabaseConfig()

	if dbCfg.Driver == database.DriverSQLite {
		if c.flagRollback > 0 || c.flagStatus {
			ui.Error("-rollback and -status are only supported for postgres")
			return 1
		}
		db, err := c.OpenDatabase(context.Background(), cfg)
		if err != nil {
			ui.Error(err.Error())
			return 1
		}
		if err := database.Close(db); err != nil {
			logger.Warn("error closing database", "error", err)
		}
		ui.Info(fmt.Sprintf("SQLite database %s is up to date", dbCfg.Path))
		return 0
	}

	sqlDB, err := sql.Open("postgres", dbCfg.DSN())
	if err != nil {
		ui.Error(fmt.Sprintf("error opening database: %v", err))
		return 1
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		ui.Error(fmt.Sprintf("error connecting to database: %v", err))
		return 1
	}

	switch {
	case c.flagStatus:
		version, dirty, err := migrate.GetMigrationVersion(sqlDB)
		if err != nil {
			ui.Error(fmt.Sprintf("error reading migration version: %v", err))
			return 1
		}
		ui.Output(fmt.Sprintf("version: %d, dirty: %t", version, dirty))

	case c.flagRollback > 0:
		if err := migrate.RollbackMigrations(sqlDB, c.flagRollback, logger); err != nil {
			ui.Error(err.Error())
			return 1
		}
		ui.Info(fmt.Sprintf("Rolled back %d migration(s)", c.flagRollback))

	default:
		if err := migrate.RunMigrations(sqlDB, logger); err != nil {
			ui.Error(err.Error())
			return 1
		}
		ui.Info("All migrations completed successfully")
	}

	return 0
}
