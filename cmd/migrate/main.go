package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"sefaria/internal/config"
	"sefaria/internal/kvstore"
)

func main() {
	var (
		command    = flag.String("command", "up", "Migration command: up, down, status")
		configPath = flag.String("config", "", "Path to a config file")
		dsnFlag    = flag.String("dsn", "", "Storage DSN, overrides storage.dsn")
	)
	flag.Parse()

	loadEnvFiles()

	dsn := *dsnFlag
	if dsn == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		dsn = cfg.Storage.DSN
	}

	dialect, err := dialectFor(dsn)
	if errors.Is(err, errNoSchema) {
		fmt.Printf("Nothing to migrate for %s\n", kvstore.RedactDSN(dsn))
		return
	}
	if err != nil {
		log.Fatalf("Failed to pick dialect: %v", err)
	}

	db, closeDB, err := openDB(context.Background(), dsn, dialect)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer closeDB()

	switch *command {
	case "up":
		if err := kvstore.Migrate(db, dialect); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		fmt.Println("Migrations applied successfully")
	case "down":
		if err := kvstore.Rollback(db, dialect); err != nil {
			log.Fatalf("Failed to rollback migrations: %v", err)
		}
		fmt.Println("Migrations rolled back successfully")
	case "status":
		if err := kvstore.Status(db, dialect); err != nil {
			log.Fatalf("Failed to check migration status: %v", err)
		}
	default:
		log.Fatalf("Unknown command: %s. Use: up, down, status", *command)
	}
}
