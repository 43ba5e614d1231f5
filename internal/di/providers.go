// Package di is the composition root: it wires config, logger, storage,
// the external-source adapter chains, and the watcher/scanner/processor
// pipeline into a single do/v2 injector, mirroring the teacher's
// provider-per-concern container shape.
package di

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/shelfwatch/ingestd/internal/config"
	"github.com/shelfwatch/ingestd/internal/enrich"
	"github.com/shelfwatch/ingestd/internal/events"
	"github.com/shelfwatch/ingestd/internal/logger"
	"github.com/shelfwatch/ingestd/internal/media/covers"
	"github.com/shelfwatch/ingestd/internal/orchestrator"
	"github.com/shelfwatch/ingestd/internal/processor"
	"github.com/shelfwatch/ingestd/internal/quarantine"
	"github.com/shelfwatch/ingestd/internal/scanner"
	"github.com/shelfwatch/ingestd/internal/settlecache"
	"github.com/shelfwatch/ingestd/internal/store"
	"github.com/shelfwatch/ingestd/internal/store/sqlite"
	"github.com/shelfwatch/ingestd/internal/watcher"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Environment: cfg.App.Environment,
		AddSource:   cfg.App.Environment == "development",
	})

	log.Info("starting shelfwatchd",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Data.BasePath,
		"watch_dir", cfg.Watch.Dir,
	)

	return log, nil
}

// ProvideSlogLogger exposes the underlying *slog.Logger for packages that
// take it directly rather than the teacher's Logger wrapper.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}

// EventsHandle wraps the event Manager with its lifecycle context.
type EventsHandle struct {
	*events.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *EventsHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideEvents provides the event bus and starts its broadcast loop.
func ProvideEvents(i do.Injector) (*EventsHandle, error) {
	slogger := do.MustInvoke[*slog.Logger](i)
	mgr := events.NewManager(slogger)

	ctx, cancel := context.WithCancel(context.Background())
	go mgr.Start(ctx)

	return &EventsHandle{Manager: mgr, cancel: cancel}, nil
}

// StoreHandle wraps the reference SQLite BookStore with shutdown capability.
type StoreHandle struct {
	store.BookStore
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.close()
}

// ProvideStore provides the BookStore backed by the embedded SQLite schema.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	slogger := do.MustInvoke[*slog.Logger](i)

	if err := os.MkdirAll(cfg.Data.BasePath, 0o755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(cfg.Data.BasePath, "library.db")
	db, err := sqlite.Open(dbPath, slogger)
	if err != nil {
		return nil, err
	}

	slogger.Info("book store opened", "path", dbPath)
	return &StoreHandle{BookStore: db, close: db.Close}, nil
}

// ProvideCoverStorage provides the on-disk cover art directory.
func ProvideCoverStorage(i do.Injector) (*covers.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return covers.NewStorage(cfg.Data.BasePath)
}

// ProvideCoverDownloader provides the cover art downloader.
func ProvideCoverDownloader(i do.Injector) (*covers.Downloader, error) {
	storage := do.MustInvoke[*covers.Storage](i)
	slogger := do.MustInvoke[*slog.Logger](i)
	return covers.NewDownloader(storage, slogger), nil
}

// SettleCacheHandle wraps the settle cache with shutdown capability.
type SettleCacheHandle struct {
	*settlecache.Cache
}

// Shutdown implements do.Shutdownable.
func (h *SettleCacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideSettleCache provides the badger-backed settle/dedupe cache.
func ProvideSettleCache(i do.Injector) (*SettleCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	slogger := do.MustInvoke[*slog.Logger](i)

	dir := filepath.Join(cfg.Data.BasePath, "settlecache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	cache, err := settlecache.Open(dir, slogger)
	if err != nil {
		return nil, err
	}
	return &SettleCacheHandle{Cache: cache}, nil
}

// AdapterChains holds the per-content-type fallback chains and the set of
// adapters unavailable for lack of a required credential.
type AdapterChains struct {
	Ebook       []enrich.Adapter
	Manga       []enrich.Adapter
	Unavailable map[string]bool
}

// Shutdown closes every adapter's underlying HTTP client resources.
func (a *AdapterChains) Shutdown() error {
	for _, adapter := range append(append([]enrich.Adapter{}, a.Ebook...), a.Manga...) {
		adapter.Close()
	}
	return nil
}

// ProvideAdapterChains provides the ebook and manga fallback chains.
// Google Books and MyAnimeList require API credentials; when absent their
// adapter is still constructed (so the chain has a stable slug to report)
// but marked unavailable, distinguishing "skipped for lack of config"
// from "attempted and failed" in the orchestrator's quarantine decision.
func ProvideAdapterChains(i do.Injector) (*AdapterChains, error) {
	cfg := do.MustInvoke[*config.Config](i)
	slogger := do.MustInvoke[*slog.Logger](i)

	openLibrary := enrich.NewOpenLibraryAdapter(cfg.OpenLibrary, slogger)
	googleBooks := enrich.NewGoogleBooksAdapter(cfg.GoogleBooks, slogger)
	aniList := enrich.NewAniListAdapter(cfg.AniList, slogger)
	myAnimeList := enrich.NewMyAnimeListAdapter(cfg.MyAnimeList, slogger)
	mangaDex := enrich.NewMangaDexAdapter(cfg.MangaDex, slogger)

	unavailable := map[string]bool{}
	if cfg.GoogleBooks.APIKey == "" {
		unavailable[googleBooks.Slug()] = true
	}
	if cfg.MyAnimeList.APIKey == "" {
		unavailable[myAnimeList.Slug()] = true
	}

	return &AdapterChains{
		Ebook:       []enrich.Adapter{openLibrary, googleBooks},
		Manga:       []enrich.Adapter{aniList, myAnimeList, mangaDex},
		Unavailable: unavailable,
	}, nil
}

// ProvideEnrichEngine provides the per-source enrichment engine.
func ProvideEnrichEngine(i do.Injector) (*enrich.Engine, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	downloader := do.MustInvoke[*covers.Downloader](i)
	eventsHandle := do.MustInvoke[*EventsHandle](i)
	slogger := do.MustInvoke[*slog.Logger](i)

	return enrich.New(storeHandle.BookStore, downloader, cfg.Data.BasePath, eventsHandle.Manager, slogger), nil
}

// ProvideQuarantine provides the quarantine service.
func ProvideQuarantine(i do.Injector) (*quarantine.Service, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	eventsHandle := do.MustInvoke[*EventsHandle](i)
	slogger := do.MustInvoke[*slog.Logger](i)

	return quarantine.New(storeHandle.BookStore, eventsHandle.Manager, slogger), nil
}

// ProvideOrchestrator provides the enrichment orchestrator (processor.Enricher).
func ProvideOrchestrator(i do.Injector) (*orchestrator.Orchestrator, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	engine := do.MustInvoke[*enrich.Engine](i)
	quarantineSvc := do.MustInvoke[*quarantine.Service](i)
	eventsHandle := do.MustInvoke[*EventsHandle](i)
	coverStorage := do.MustInvoke[*covers.Storage](i)
	chains := do.MustInvoke[*AdapterChains](i)
	slogger := do.MustInvoke[*slog.Logger](i)

	return orchestrator.New(
		storeHandle.BookStore,
		engine,
		quarantineSvc,
		eventsHandle.Manager,
		coverStorage,
		chains.Ebook,
		chains.Manga,
		chains.Unavailable,
		slogger,
	), nil
}

// ProvideProcessor provides the detection-to-row processor.
func ProvideProcessor(i do.Injector) (*processor.Processor, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	orch := do.MustInvoke[*orchestrator.Orchestrator](i)
	eventsHandle := do.MustInvoke[*EventsHandle](i)
	slogger := do.MustInvoke[*slog.Logger](i)

	return processor.New(storeHandle.BookStore, orch, eventsHandle.Manager, slogger), nil
}

// ProvideScanner provides the directory scanner.
func ProvideScanner(i do.Injector) (*scanner.Scanner, error) {
	cfg := do.MustInvoke[*config.Config](i)
	proc := do.MustInvoke[*processor.Processor](i)
	eventsHandle := do.MustInvoke[*EventsHandle](i)
	slogger := do.MustInvoke[*slog.Logger](i)

	return scanner.New(cfg.Watch.Dir, proc, eventsHandle.Manager, slogger), nil
}

// WatcherHandle wraps the Watcher with shutdown capability.
type WatcherHandle struct {
	*watcher.Watcher
}

// Shutdown implements do.Shutdownable.
func (h *WatcherHandle) Shutdown() error {
	return h.Stop()
}

// ProvideWatcher provides the filesystem watcher, already watching the
// configured library root.
func ProvideWatcher(i do.Injector) (*WatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	slogger := do.MustInvoke[*slog.Logger](i)
	settleHandle := do.MustInvoke[*SettleCacheHandle](i)

	w, err := watcher.New(slogger, watcher.Options{
		SettleDelay: cfg.Watch.SettleDelay,
		SettleStore: settleHandle.Cache,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Watch.Dir != "" {
		if err := w.Watch(cfg.Watch.Dir); err != nil {
			return nil, err
		}
	}

	return &WatcherHandle{Watcher: w}, nil
}
