package scanner

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	apperrors "github.com/shelfwatch/ingestd/internal/errors"
	"github.com/shelfwatch/ingestd/internal/events"
	"github.com/shelfwatch/ingestd/internal/processor"
	"github.com/shelfwatch/ingestd/internal/watcher"
)

// fileProcessor is the subset of processor.Processor the scanner drives.
type fileProcessor interface {
	Process(ctx context.Context, ev watcher.Event) (processor.Result, error)
}

// Scanner performs on-demand traversal of the watch root, filters out
// already-known files, and feeds survivors to the Processor.
type Scanner struct {
	root   string
	proc   fileProcessor
	events *events.Manager
	logger *slog.Logger

	// scanning forbids overlapping scans (spec: SCAN_IN_PROGRESS). It is
	// released on every exit path, success or error, via defer.
	scanning atomic.Bool
}

// New creates a Scanner rooted at root.
func New(root string, proc fileProcessor, mgr *events.Manager, logger *slog.Logger) *Scanner {
	return &Scanner{root: root, proc: proc, events: mgr, logger: logger}
}

// ScanOptions configures a single scan invocation.
type ScanOptions struct {
	OnProgress func(*Progress)
}

// Scan walks the root directory, skips files the processor already knows
// about (detected indirectly: Process itself dedupes by file_path, so a
// scan-discovered file that already has a row comes back as "skipped"
// rather than being filtered here), and reports a terminal summary.
func (s *Scanner) Scan(ctx context.Context, opts ScanOptions) (*ScanResult, error) {
	if !s.scanning.CompareAndSwap(false, true) {
		return nil, apperrors.ScanInProgress()
	}
	defer s.scanning.Store(false)

	result := &ScanResult{StartedAt: time.Now()}
	tracker := NewProgressTracker(opts.OnProgress)
	tracker.SetPhase(PhaseWalking)

	walker := NewWalker(s.logger)
	for wr := range walker.Walk(ctx, s.root) {
		select {
		case <-ctx.Done():
			result.CompletedAt = time.Now()
			return result, ctx.Err()
		default:
		}

		result.FilesFound++
		tracker.Increment(wr.Path)

		ev := watcher.Event{
			Type:      watcher.EventDetected,
			Path:      wr.Path,
			Filename:  filepath.Base(wr.Path),
			Extension: filepath.Ext(wr.Path),
			Size:      wr.Size,
			Timestamp: time.Now(),
		}

		res, err := s.proc.Process(ctx, ev)
		if err != nil {
			result.Errors = append(result.Errors, ScanError{Path: wr.Path, Phase: PhaseWalking, Error: err, Time: time.Now()})
			tracker.AddError(ScanError{Path: wr.Path, Phase: PhaseWalking, Error: err, Time: time.Now()})
			continue
		}

		switch res.Action {
		case processor.ActionSkipped:
			result.FilesSkipped++
		case processor.ActionFailed:
			result.Errors = append(result.Errors, ScanError{
				Path: wr.Path, Phase: PhaseWalking, Error: errors.New(res.Reason), Time: time.Now(),
			})
		default:
			result.FilesProcessed++
		}
	}

	result.CompletedAt = time.Now()
	tracker.SetPhase(PhaseComplete)
	progress := tracker.Get()
	result.Progress = &progress

	s.events.Emit(events.ScanCompleted(result.FilesFound, result.FilesProcessed, result.FilesSkipped, len(result.Errors), result.Duration()))

	s.logger.Info("scan complete",
		"files_found", result.FilesFound,
		"files_processed", result.FilesProcessed,
		"files_skipped", result.FilesSkipped,
		"errors", len(result.Errors),
		"duration", result.Duration(),
	)

	return result, nil
}
