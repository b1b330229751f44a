// Command migrate applies, inspects and rolls back the ledger schema.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"patronage/internal/config"
	"patronage/internal/database"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

const help = `usage: migrate <command> [version]

commands:
  up              apply pending SQL migrations for the ledger schema
  auto            run GORM AutoMigrate over users, posts, donations and the aggregate tables
  status          show the schema policy, pending migrations and ledger table row counts
  down <version>  revert one applied migration`

func usage() error {
	return errors.New(help)
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0)))
	switch cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("ledger schema migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("ledger models auto-migrated")
	case "status":
		status, err := database.GetSchemaStatus(ctx, db, cfg)
		if err != nil {
			return fmt.Errorf("schema status failed: %w", err)
		}
		log.Printf("schema mode=%s env=%s run_sql=%t run_auto=%t applied=%d pending=%d",
			status.Mode, status.Environment, status.WillRunSQL, status.WillRunAutoMigrate,
			len(status.AppliedVersions), len(status.PendingMigrations))
		for _, m := range status.PendingMigrations {
			log.Printf("pending migration %s", m.String())
		}
		for _, ts := range status.Tables {
			if !ts.Exists {
				log.Printf("table %-16s missing", ts.Name)
				continue
			}
			log.Printf("table %-16s rows=%d", ts.Name, ts.Rows)
		}
	case "down":
		if flag.NArg() < 2 {
			return usage()
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback of %d failed: %w", version, err)
		}
		log.Printf("reverted ledger schema migration %d", version)
	default:
		return usage()
	}

	return nil
}
