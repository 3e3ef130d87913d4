package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/maxmove/maxmove-backend/pkg/config"
	"github.com/maxmove/maxmove-backend/pkg/db"
	"github.com/maxmove/maxmove-backend/pkg/logger"
	"github.com/maxmove/maxmove-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|create|validate")
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name (for create)")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fail(logg, "load config", err)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
		"dir": *dir,
	})

	// create and validate work straight off the filesystem.
	switch *cmd {
	case "create":
		if *name == "" {
			fail(logg, "create", fmt.Errorf("missing -name"))
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			fail(logg, "create migration", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			fail(logg, "validate migrations", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		fail(logg, "connect database", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		fail(logg, "unwrap sql database", err)
	}

	switch *cmd {
	case "up", "down", "status":
		if err := migrate.Run(ctx, sqlDB, *dir, *cmd); err != nil {
			fail(logg, "goose "+*cmd, err)
		}
	case "version":
		if *version == "" {
			fail(logg, "version", fmt.Errorf("missing -version"))
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, *dir, *version); err != nil {
			fail(logg, "goose migrate to version", err)
		}
	default:
		fail(logg, "parse flags", fmt.Errorf("unknown -cmd value %q", *cmd))
	}
}

func fail(logg *logger.Logger, step string, err error) {
	logg.Error(context.Background(), "migrate: "+step, err)
	os.Exit(1)
}
