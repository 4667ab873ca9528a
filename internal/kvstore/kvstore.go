// Package kvstore persists small JSON documents (queues, timestamps, history)
// under string keys.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Logical keys shared by the download manager and the sync engine.
const (
	KeyLastDownload       = "lastDownload"
	KeyAvailableDownloads = "availableDownloads"
	KeyDownloadQueue      = "downloadQueue"
	KeyDownloadInProgress = "downloadInProgress"
	KeyPackagesClicked    = "packagesClicked"
	KeyLastSyncItems      = "lastSyncItems"
	KeyLastSyncTime       = "lastSyncTime"
	KeyLastPlace          = "lastPlace"
	KeySavedItems         = "savedItems"
	KeyHistory            = "history"
	KeySettings           = "settings"
)

var ErrUnsupportedDSN = errors.New("unsupported storage dsn")

// Store is a JSON key-value store. Get reports false when the key is absent.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Open picks a backend from the dsn scheme.
func Open(ctx context.Context, dsn string) (Store, error) {
	const timeout = 5 * time.Second
	var (
		store Store
		err   error
	)
	switch {
	case dsn == "" || strings.HasPrefix(dsn, "memory://"):
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		store, err = OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		store, err = OpenPostgres(ctx, dsn, timeout)
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		store, err = OpenRedis(ctx, dsn, timeout)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDSN, RedactDSN(dsn))
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

// RedactDSN hides credentials between the scheme and the host.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
