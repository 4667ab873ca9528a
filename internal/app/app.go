// Package app wires the caching and sync services together for the server
// and the command line.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"sefaria/internal/config"
	"sefaria/internal/content"
	"sefaria/internal/download"
	"sefaria/internal/history"
	"sefaria/internal/kvstore"
	"sefaria/internal/library"
	"sefaria/internal/links"
	"sefaria/internal/platform/sefariaapi"
)

// Options carries the decisions the UI makes on failures. Nil values pause
// downloads and decline content retries.
type Options struct {
	Prompter content.Prompter
	Failure  download.FailureHandler
}

type Core struct {
	Config    *config.Config
	Store     kvstore.Store
	Client    *sefariaapi.Client
	Library   *library.Library
	Content   *content.Service
	Downloads *download.Service
	History   *history.Service
	Links     *links.Aggregator
}

// New opens the store, loads the table of contents and restores the persisted
// download and history state.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Core, error) {
	client := sefariaapi.NewClient(sefariaapi.Options{
		BaseURL:     cfg.API.BaseURL,
		DownloadURL: cfg.API.DownloadURL,
		UserAgent:   cfg.API.UserAgent,
		Token:       cfg.API.Token,
		RPS:         cfg.API.RPS,
		MaxRetries:  cfg.API.MaxRetries,
		Timeout:     cfg.API.Timeout,
	})

	lib := library.New()
	if err := loadTOC(ctx, lib, client, cfg.Library.TOCFile); err != nil {
		return nil, err
	}

	packages := download.DefaultPackages(lib.TOC())
	if cfg.Library.PackagesFile != "" {
		pkgs, err := download.LoadPackages(cfg.Library.PackagesFile)
		if err != nil {
			return nil, fmt.Errorf("load packages: %w", err)
		}
		packages = pkgs
	}

	if err := ensureStoreDir(cfg.Storage.DSN); err != nil {
		return nil, err
	}
	store, err := kvstore.Open(ctx, cfg.Storage.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store (%s): %w", kvstore.RedactDSN(cfg.Storage.DSN), err)
	}

	downloads := download.NewService(store, client, lib, packages, opts.Failure, download.Config{
		LibraryDir: cfg.Library.Dir,
		SourceDir:  cfg.Library.SourceDir,
	})
	cache := content.NewService(lib, client, downloads, opts.Prompter, content.Config{
		LibraryDir:           cfg.Library.Dir,
		SourceDir:            cfg.Library.SourceDir,
		DisableLocalArchives: cfg.Library.DisableLocalArchives,
	})
	hist := history.NewService(store, client, lib)

	core := &Core{
		Config:    cfg,
		Store:     store,
		Client:    client,
		Library:   lib,
		Content:   cache,
		Downloads: downloads,
		History:   hist,
		Links:     links.NewAggregator(cache, lib),
	}

	if err := downloads.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("load download state: %w", err)
	}
	if err := hist.Load(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("load history: %w", err)
	}
	log.Printf("app ready titles=%d packages=%d store=%s", len(lib.Titles()), len(packages), kvstore.RedactDSN(cfg.Storage.DSN))
	return core, nil
}

func loadTOC(ctx context.Context, lib *library.Library, client *sefariaapi.Client, path string) error {
	if path != "" {
		if err := lib.LoadFile(path); err != nil {
			return fmt.Errorf("load toc %s: %w", path, err)
		}
		return nil
	}
	toc, err := client.GetTOC(ctx)
	if err != nil {
		return fmt.Errorf("fetch toc: %w", err)
	}
	lib.Load(toc)
	return nil
}

func ensureStoreDir(dsn string) error {
	const scheme = "sqlite://"
	if len(dsn) <= len(scheme) || dsn[:len(scheme)] != scheme {
		return nil
	}
	dir := filepath.Dir(dsn[len(scheme):])
	return os.MkdirAll(dir, 0o755)
}

// Start runs the background work until ctx is done: the library directory
// watch, the periodic history sync and any download left unfinished by the
// previous run.
func (c *Core) Start(ctx context.Context) error {
	if err := c.Downloads.Watch(ctx); err != nil {
		return fmt.Errorf("watch library: %w", err)
	}
	if len(c.Downloads.Queue()) > 0 || len(c.Downloads.InProgress()) > 0 {
		go func() {
			if err := c.Downloads.ResumeDownload(ctx); err != nil {
				log.Printf("app resume_failed err=%v", err)
			}
		}()
	}
	if c.Config.History.SyncInterval > 0 {
		go c.History.Run(ctx, c.Config.History.SyncInterval, c.History.Settings)
	}
	return nil
}

func (c *Core) Close() error {
	return c.Store.Close()
}
