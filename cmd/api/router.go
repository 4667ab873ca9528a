package main

import (
	"context"
	"net/http"
	"time"

	"sefaria/internal/app"
	"sefaria/internal/content"
	"sefaria/internal/download"
	"sefaria/internal/history"
	"sefaria/internal/httpx"
	"sefaria/internal/links"
	"sefaria/internal/metrics"
)

// newRouter registers the /v1 API on a ServeMux and wraps it in the
// middleware chain. ctx bounds background downloads and the rate limiter.
func newRouter(ctx context.Context, core *app.Core) http.Handler {
	textHandler := content.NewHTTPHandler(core.Content)
	linkHandler := links.NewHTTPHandler(core.Links)
	downloadHandler := download.NewHTTPHandler(ctx, core.Downloads)
	historyHandler := history.NewHTTPHandler(core.History)

	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		var probe string
		if _, err := core.Store.Get(ctx, "readyz", &probe); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	router.Handle("GET /metrics", metrics.Handler())

	router.HandleFunc("GET /v1/texts/{ref...}", textHandler.GetText)
	router.HandleFunc("GET /v1/refs/{ref...}", textHandler.Resolve)
	router.HandleFunc("GET /v1/cache/stats", textHandler.Stats)
	router.HandleFunc("GET /v1/links/{ref...}", linkHandler.Summary)

	router.HandleFunc("GET /v1/packages", downloadHandler.ListPackages)
	router.HandleFunc("POST /v1/packages/check", downloadHandler.CheckForUpdates)
	router.HandleFunc("POST /v1/packages/{name}/download", downloadHandler.DownloadPackage)
	router.HandleFunc("GET /v1/downloads", downloadHandler.Queue)
	router.HandleFunc("GET /v1/downloads/progress", downloadHandler.Progress)
	router.HandleFunc("POST /v1/downloads/resume", downloadHandler.Resume)
	router.HandleFunc("POST /v1/downloads/pause", downloadHandler.Pause)
	router.HandleFunc("POST /v1/titles/{title}/prioritize", downloadHandler.Prioritize)
	router.HandleFunc("DELETE /v1/library", downloadHandler.DeleteLibrary)

	router.HandleFunc("POST /v1/history", historyHandler.Record)
	router.HandleFunc("GET /v1/history", historyHandler.List)
	router.HandleFunc("GET /v1/history/saved", historyHandler.Saved)
	router.HandleFunc("GET /v1/history/last-place", historyHandler.LastPlace)
	router.HandleFunc("POST /v1/history/sync", historyHandler.Sync)

	srv := core.Config.Server
	limiter := httpx.NewRateLimitMiddleware(ctx, srv.RateLimitRPS, srv.RateLimitBurst)
	return httpx.Chain(router,
		httpx.RequestIDMiddleware,
		httpx.RecoveryMiddleware,
		httpx.AccessLogMiddleware,
		httpx.CORSMiddleware(srv.AllowedOrigins),
		httpx.SecurityHeadersMiddleware(srv.EnableHSTS),
		limiter.Middleware,
		httpx.RequestSizeLimitMiddleware(srv.MaxBodyBytes),
	)
}
