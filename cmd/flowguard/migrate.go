package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/BaSui01/flowguard/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

func printMigrateUsage(w io.Writer) {
	fmt.Fprintln(w, `Database Migration Commands

Usage:
  flowguard migrate <subcommand> [options] [arg]

Subcommands:
  up          Apply all pending migrations
  down        Rollback the last migration
  down-all    Rollback all migrations
  steps <n>   Apply (n > 0) or roll back (n < 0) n migrations
  goto <v>    Migrate to a specific version
  force <v>   Force set migration version (use with caution)
  version     Show current migration version
  status      Show migration status
  info        Show migration summary

Options:
  --config <path>     Path to configuration file (YAML)
  --db-type <type>    Database type: postgres, mysql, sqlite (default: from config)
  --db-url <url>      Database connection URL (default: from config)

Examples:
  flowguard migrate up
  flowguard migrate status --config /etc/flowguard/config.yaml
  flowguard migrate goto 1
  flowguard migrate up --db-type sqlite --db-url "file:flowguard.db?mode=rwc"`)
}

// runMigrate 解析 migrate 子命令并交给 migration.CLI 执行
func runMigrate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printMigrateUsage(stdout)
		if len(args) < 1 {
			return exitErrored
		}
		return exitOK
	}
	sub := args[0]

	fs := flag.NewFlagSet("migrate "+sub, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	dbType := fs.String("db-type", "", "Database type: postgres, mysql, sqlite")
	dbURL := fs.String("db-url", "", "Database connection URL")
	if err := fs.Parse(args[1:]); err != nil {
		return exitErrored
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return exitErrored
	}
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	var migrator *migration.DefaultMigrator
	if *dbURL != "" {
		t := *dbType
		if t == "" {
			t = cfg.Database.Driver
		}
		migrator, err = migration.NewMigratorFromURL(t, *dbURL, logger)
	} else {
		db := cfg.Database
		if *dbType != "" {
			db.Driver = *dbType
		}
		migrator, err = migration.NewMigratorFromDatabaseConfig(db, logger)
	}
	if err != nil {
		logger.Error("failed to create migrator", zap.Error(err))
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return exitErrored
	}
	defer migrator.Close()

	cli := migration.NewCLI(migrator)
	cli.SetOutput(stdout)
	if err := cli.Run(ctx, sub, fs.Args()); err != nil {
		fmt.Fprintf(stderr, "migrate %s: %v\n", sub, err)
		return exitErrored
	}
	return exitOK
}
