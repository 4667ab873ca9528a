package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"sefaria/internal/kvstore"
)

var errNoSchema = errors.New("backend has no schema to migrate")

func loadEnvFiles() {
	// Do not override environment provided by the runtime (e.g. Docker).
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
}

// dialectFor maps a storage dsn to the goose dialect of its backend.
func dialectFor(dsn string) (string, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite3", nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", nil
	case dsn == "", strings.HasPrefix(dsn, "memory://"),
		strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "", errNoSchema
	default:
		return "", fmt.Errorf("%w: %s", kvstore.ErrUnsupportedDSN, kvstore.RedactDSN(dsn))
	}
}

// openDB returns a database/sql handle for dsn. The returned close func
// releases the pool behind it as well.
func openDB(ctx context.Context, dsn, dialect string) (*sql.DB, func(), error) {
	if dialect == "sqlite3" {
		db, err := sql.Open("sqlite", strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, nil, fmt.Errorf("opening database: %w", err)
		}
		return db, func() { db.Close() }, nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to database: %w", err)
	}
	db := stdlib.OpenDBFromPool(pool)
	return db, func() {
		db.Close()
		pool.Close()
	}, nil
}
