// Command shelfwatchd watches a library directory for newly added
// ebook/manga files, extracts what metadata it can locally, and enriches
// the rest from external sources before filing each book as enriched or
// quarantined.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/samber/do/v2"

	"github.com/shelfwatch/ingestd/internal/config"
	"github.com/shelfwatch/ingestd/internal/di"
	"github.com/shelfwatch/ingestd/internal/processor"
	"github.com/shelfwatch/ingestd/internal/scanner"
)

const shutdownTimeout = 30 * time.Second

// bootstrapMarker is a sentinel file recording that the one-time initial
// scan has already run, mirroring the teacher's IsNewLibrary check without
// needing a count query against the store.
const bootstrapMarker = ".bootstrapped"

func main() {
	injector := di.NewContainer()

	cfg := do.MustInvoke[*config.Config](injector)
	log := do.MustInvoke[*slog.Logger](injector)

	if cfg.Watch.Dir == "" {
		fmt.Fprintln(os.Stderr, "shelfwatchd: WATCH_DIR is required")
		os.Exit(1)
	}

	// Force-construct the pipeline's leaves so every provider above them
	// (store, events, adapter chains, watcher) initializes eagerly instead
	// of on first use.
	proc := do.MustInvoke[*processor.Processor](injector)
	scan := do.MustInvoke[*scanner.Scanner](injector)
	watcherHandle := do.MustInvoke[*di.WatcherHandle](injector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runInitialScanIfNeeded(ctx, cfg, scan, log)

	watchErrCh := make(chan error, 1)
	go func() {
		watchErrCh <- watcherHandle.Start(ctx)
	}()

	go pumpWatcherEvents(ctx, watcherHandle, proc, log)

	log.Info("shelfwatchd ready", "watch_dir", cfg.Watch.Dir)

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-watchErrCh:
		if err != nil {
			log.Error("watcher exited unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := injector.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("shutdown did not complete cleanly", "error", err)
		os.Exit(1)
	}
}

// runInitialScanIfNeeded performs one full recursive scan of the watch
// root the first time shelfwatchd points at a given data directory, so
// files already present before the watcher started are not missed.
func runInitialScanIfNeeded(ctx context.Context, cfg *config.Config, scan *scanner.Scanner, log *slog.Logger) {
	marker := filepath.Join(cfg.Data.BasePath, bootstrapMarker)
	if _, err := os.Stat(marker); err == nil {
		return
	}

	log.Info("no prior bootstrap marker found, running initial scan", "watch_dir", cfg.Watch.Dir)
	result, err := scan.Scan(ctx, scanner.ScanOptions{
		OnProgress: func(p *scanner.Progress) {
			log.Debug("initial scan progress", "current", p.Current, "item", p.CurrentItem)
		},
	})
	if err != nil {
		log.Error("initial scan failed", "error", err)
		return
	}
	log.Info("initial scan complete",
		"files_found", result.FilesFound,
		"processed", result.FilesProcessed,
		"skipped", result.FilesSkipped,
		"errors", len(result.Errors),
	)

	if err := os.WriteFile(marker, []byte(time.Now().UTC().Format(time.RFC3339)), 0o644); err != nil {
		log.Warn("failed to write bootstrap marker", "error", err)
	}
}

// pumpWatcherEvents forwards settled detections from the watcher into the
// processor until ctx is cancelled.
func pumpWatcherEvents(ctx context.Context, w *di.WatcherHandle, proc *processor.Processor, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.Events():
			if _, err := proc.Process(ctx, ev); err != nil {
				log.Warn("failed to process detection", "path", ev.Path, "error", err)
			}
		case err := <-w.Errors():
			log.Warn("watcher error", "error", err)
		}
	}
}
