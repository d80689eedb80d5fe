package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/peterbourgon/ff/v3"

	"github.com/abgoyal/smartreader/api"
	"github.com/abgoyal/smartreader/hn"
	"github.com/abgoyal/smartreader/render"
	"github.com/abgoyal/smartreader/store"
	"github.com/abgoyal/smartreader/worker"
)

func main() {
	flagSet := flag.NewFlagSet("smartreader", flag.ExitOnError)

	var (
		addr               string
		port               int
		public             bool
		dbPath             string
		reset              bool
		workers            int
		migrateCompress    bool
		vacuum             bool
		cfAccountID        string
		cfAPIToken         string
		cfBrowserTimeoutMs int
		hnUser             string
		hnPassword         string
		fetchIntervalMin   int
		frontPageIntervalMin int
		dismissedHours     int
		storyDays          int
		urlCacheDays       int
	)

	flagSet.StringVar(&addr, "addr", "127.0.0.1", "address to listen on when --public is not set")
	flagSet.IntVar(&port, "port", 8080, "port to listen on")
	flagSet.BoolVar(&public, "public", false, "bind 0.0.0.0 instead of 127.0.0.1")
	flagSet.StringVar(&dbPath, "db-path", "./.hn_data/hn.db", "path to the SQLite database file")
	flagSet.BoolVar(&reset, "reset", false, "wipe stories, read-later, URL cache, usage log and summaries, dismissed, and history, then exit")
	flagSet.IntVar(&workers, "workers", 3, "number of extraction workers")
	flagSet.BoolVar(&migrateCompress, "migrate-compress", false, "compress all legacy-plaintext story content, then exit")
	flagSet.BoolVar(&vacuum, "vacuum", false, "run VACUUM unconditionally, then exit")
	flagSet.StringVar(&cfAccountID, "cf-account-id", "", "Cloudflare account id for browser rendering (env CF_ACCOUNT_ID)")
	flagSet.StringVar(&cfAPIToken, "cf-api-token", "", "Cloudflare API token for browser rendering (env CF_API_TOKEN)")
	flagSet.IntVar(&cfBrowserTimeoutMs, "cf-browser-timeout-ms", 2000, "renderer navigation timeout in ms, capped at 60000 (env CF_BROWSER_TIMEOUT_MS)")
	flagSet.StringVar(&hnUser, "hn-user", "", "basic-auth username; empty disables auth (env HN_USER)")
	flagSet.StringVar(&hnPassword, "hn-password", "", "basic-auth password (env HN_PASSWORD)")
	flagSet.IntVar(&fetchIntervalMin, "fetch-interval-minutes", 60, "ingestion interval in minutes (env FETCH_INTERVAL_MINUTES)")
	flagSet.IntVar(&frontPageIntervalMin, "front-page-interval-minutes", 5, "front-page poll interval in minutes")
	flagSet.IntVar(&dismissedHours, "dismissed-cleanup-hours", int(store.DefaultCleanupHorizons.DismissedHours), "dismissed-story cleanup horizon in hours")
	flagSet.IntVar(&storyDays, "story-cleanup-days", int(store.DefaultCleanupHorizons.StoryDays), "story cleanup horizon in days")
	flagSet.IntVar(&urlCacheDays, "url-cache-cleanup-days", int(store.DefaultCleanupHorizons.URLCacheDays), "URL cache cleanup horizon in days")

	if err := ff.Parse(flagSet, os.Args[1:], ff.WithEnvVars()); err != nil {
		slog.Error("failed to parse flags", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		slog.Error("failed to create db directory", "error", err)
		os.Exit(1)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if reset {
		if err := store.Reset(db); err != nil {
			slog.Error("reset failed", "error", err)
			os.Exit(1)
		}
		slog.Info("reset complete")
		return
	}

	storyStore := store.NewStoryStore(db)

	if migrateCompress {
		migrated, errored, err := store.MigrateCompress(context.Background(), db)
		if err != nil {
			slog.Error("compression migration failed", "error", err)
			os.Exit(1)
		}
		slog.Info("compression migration complete", "migrated", migrated, "errored", errored)
		if errored > 0 {
			os.Exit(1)
		}
		return
	}

	if vacuum {
		if err := storyStore.Vacuum(context.Background()); err != nil {
			slog.Error("vacuum failed", "error", err)
			os.Exit(1)
		}
		slog.Info("vacuum complete")
		return
	}

	cacheStore := store.NewCacheStore(db)
	usageStore := store.NewUsageStore(db)
	rulesStore := store.NewRulesStore(db)
	userStateStore := store.NewUserStateStore(db)
	horizons := store.CleanupHorizons{
		DismissedHours: dismissedHours,
		StoryDays:      storyDays,
		URLCacheDays:   urlCacheDays,
	}
	retentionStore := store.NewRetentionStore(db, horizons)
	backupStore := store.NewBackupStore(db, filepath.Join(filepath.Dir(dbPath), "backups"))

	algoliaClient := hn.NewAlgoliaClient()
	firebaseClient := hn.NewFirebaseClient()
	renderClient := render.NewClient(cfAccountID, cfAPIToken, cfBrowserTimeoutMs)

	ingestor := worker.NewIngestor(storyStore, algoliaClient, firebaseClient, fetchIntervalMin)
	frontPageTracker := worker.NewFrontPageTracker(storyStore, firebaseClient, frontPageIntervalMin)
	pool := worker.NewPool(storyStore, cacheStore, usageStore, renderClient, workers)
	maintenance := worker.NewMaintenance(retentionStore, backupStore, storyStore)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	go ingestor.Run(workerCtx)
	go frontPageTracker.Run(workerCtx)
	go maintenance.Run(workerCtx)
	go func() {
		if err := pool.Run(workerCtx); err != nil {
			slog.Error("extraction pool exited", "error", err)
		}
	}()

	storiesHandler := api.NewStoriesHandler(storyStore, userStateStore)
	actionsHandler := api.NewActionsHandler(userStateStore, rulesStore)
	rulesHandler := api.NewRulesHandler(rulesStore)
	statsHandler := api.NewStatsHandler(storyStore, usageStore)
	healthHandler := api.NewHealthHandler(db, storyStore)
	fetchHandler := api.NewFetchHandler(ingestor)

	requireAuth := func(h http.Handler) http.Handler {
		return api.RequireBasicAuth(hnUser, hnPassword, h)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/stories", requireAuth(http.HandlerFunc(storiesHandler.List)))
	mux.Handle("GET /api/story/{id}", requireAuth(http.HandlerFunc(storiesHandler.Get)))
	mux.Handle("GET /api/story/{id}/content", requireAuth(http.HandlerFunc(storiesHandler.GetContent)))
	mux.Handle("POST /api/story/{id}/opened", requireAuth(http.HandlerFunc(storiesHandler.MarkOpened)))

	mux.Handle("POST /api/dismiss/{id}", requireAuth(http.HandlerFunc(actionsHandler.Dismiss)))
	mux.Handle("DELETE /api/dismiss/{id}", requireAuth(http.HandlerFunc(actionsHandler.Dismiss)))
	mux.Handle("DELETE /api/dismiss", requireAuth(http.HandlerFunc(actionsHandler.ClearDismissed)))
	mux.Handle("POST /api/readlater/{id}", requireAuth(http.HandlerFunc(actionsHandler.ReadLater)))
	mux.Handle("DELETE /api/readlater/{id}", requireAuth(http.HandlerFunc(actionsHandler.ReadLater)))
	mux.Handle("GET /api/readlater", requireAuth(http.HandlerFunc(actionsHandler.ListReadLater)))
	mux.Handle("POST /api/batch", requireAuth(http.HandlerFunc(actionsHandler.Batch)))

	mux.Handle("GET /api/blocked/words", requireAuth(http.HandlerFunc(rulesHandler.BlockedWords)))
	mux.Handle("POST /api/blocked/words/{word}", requireAuth(http.HandlerFunc(rulesHandler.BlockedWords)))
	mux.Handle("DELETE /api/blocked/words/{word}", requireAuth(http.HandlerFunc(rulesHandler.BlockedWords)))
	mux.Handle("GET /api/blocked/domains", requireAuth(http.HandlerFunc(rulesHandler.BlockedDomains)))
	mux.Handle("POST /api/blocked/domains/{domain}", requireAuth(http.HandlerFunc(rulesHandler.BlockedDomains)))
	mux.Handle("DELETE /api/blocked/domains/{domain}", requireAuth(http.HandlerFunc(rulesHandler.BlockedDomains)))
	mux.Handle("POST /api/merit/words/{word}", requireAuth(http.HandlerFunc(rulesHandler.MeritWords)))
	mux.Handle("DELETE /api/merit/words/{word}", requireAuth(http.HandlerFunc(rulesHandler.MeritWords)))
	mux.Handle("POST /api/demerit/words/{word}", requireAuth(http.HandlerFunc(rulesHandler.DemeritWords)))
	mux.Handle("DELETE /api/demerit/words/{word}", requireAuth(http.HandlerFunc(rulesHandler.DemeritWords)))
	mux.Handle("POST /api/merit/domains/{domain}", requireAuth(http.HandlerFunc(rulesHandler.MeritDomains)))
	mux.Handle("DELETE /api/merit/domains/{domain}", requireAuth(http.HandlerFunc(rulesHandler.MeritDomains)))
	mux.Handle("POST /api/demerit/domains/{domain}", requireAuth(http.HandlerFunc(rulesHandler.DemeritDomains)))
	mux.Handle("DELETE /api/demerit/domains/{domain}", requireAuth(http.HandlerFunc(rulesHandler.DemeritDomains)))

	mux.Handle("GET /api/stats", requireAuth(http.HandlerFunc(statsHandler.Stats)))
	mux.Handle("GET /api/usage", requireAuth(http.HandlerFunc(statsHandler.Usage)))
	mux.Handle("GET /api/status", requireAuth(http.HandlerFunc(statsHandler.Status)))
	mux.Handle("POST /api/fetch", requireAuth(http.HandlerFunc(fetchHandler.Trigger)))
	mux.Handle("GET /api/health", requireAuth(healthHandler))

	listenAddr := fmt.Sprintf("%s:%d", addr, port)
	if public {
		listenAddr = fmt.Sprintf("0.0.0.0:%d", port)
	}

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: mux,
	}

	go func() {
		slog.Info("server starting", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received signal, shutting down", "signal", sig)

	workerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
