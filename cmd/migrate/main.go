// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command migrate applies or rolls back the users schema.
//
// Usage:
//
//	migrate up          apply every pending migration
//	migrate down [N]    roll back N migrations (default 1)
//	migrate version     print the applied version
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/taibuivan/marketplace-auth/internal/platform/config"
	"github.com/taibuivan/marketplace-auth/internal/platform/constants"
	"github.com/taibuivan/marketplace-auth/internal/platform/migration"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With(slog.String("app", constants.AppName+"-migrate"))

	if err := run(os.Args[1:], log); err != nil {
		log.Error("migration_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(args []string, log *slog.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: migrate up | down [N] | version")
	}

	cfg, err := config.LoadMigrate()
	if err != nil {
		return err
	}

	switch args[0] {
	case "up":
		return migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log)

	case "down":
		steps := 1
		if len(args) > 1 {
			if steps, err = strconv.Atoi(args[1]); err != nil {
				return fmt.Errorf("down: invalid step count %q", args[1])
			}
		}
		return migration.RunDown(cfg.DatabaseURL, cfg.MigrationPath, steps, log)

	case "version":
		version, dirty, err := migration.Version(cfg.DatabaseURL, cfg.MigrationPath, log)
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%t\n", version, dirty)
		return nil

	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}
