package enrich

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/events"
	"github.com/shelfwatch/ingestd/internal/media/covers"
	"github.com/shelfwatch/ingestd/internal/store"
)

// Outcome is the result of running a single source adapter against a book.
type Outcome struct {
	Success       bool
	Error         string
	FieldsUpdated []string
}

// Engine runs the per-source adapter contract described in spec §4.6:
// domain check, search, non-overwriting patch, cover fetch, persist.
type Engine struct {
	store      store.BookStore
	downloader *covers.Downloader
	dataDir    string
	events     *events.Manager
	logger     *slog.Logger
}

// New creates an enrichment Engine.
func New(bookStore store.BookStore, downloader *covers.Downloader, dataDir string, mgr *events.Manager, logger *slog.Logger) *Engine {
	return &Engine{
		store:      bookStore,
		downloader: downloader,
		dataDir:    dataDir,
		events:     mgr,
		logger:     logger,
	}
}

// Run executes adapter against book. It never mutates the book row except
// through the single Update call at the end of a successful match.
func (e *Engine) Run(ctx context.Context, book *domain.Book, adapter Adapter) Outcome {
	source := adapter.Slug()

	if book.ContentType != adapter.Domain() {
		return Outcome{Success: false, Error: fmt.Sprintf("content type mismatch: %s does not enrich %q", source, book.ContentType)}
	}

	e.events.Emit(events.EnrichmentProgress(book.ID, events.SearchStartedStep(source), nil))

	candidate, err := adapter.Match(ctx, book)
	if err != nil {
		e.emitFailed(book.ID, source, err.Error())
		return Outcome{Success: false, Error: err.Error()}
	}
	if candidate == nil {
		e.events.Emit(events.EnrichmentProgress(book.ID, events.NoMatchStep(source), nil))
		return Outcome{Success: false, Error: "no match above threshold"}
	}
	e.events.Emit(events.EnrichmentProgress(book.ID, events.MatchFoundStep(source), nil))

	patch, fields := buildPatch(book, candidate.Metadata)

	if relPath, ok := e.fetchCover(ctx, book, source, candidate.CoverURL); ok {
		patch.CoverPath = &relPath
		fields = append(fields, "cover_path")
	}

	status := domain.StatusEnriched
	patch.Status = &status
	if err := e.store.Update(ctx, book.ID, patch); err != nil {
		e.emitFailed(book.ID, source, err.Error())
		return Outcome{Success: false, Error: err.Error()}
	}

	e.events.Emit(events.BookUpdated(book.ID, source, "", fields))
	e.events.Emit(events.EnrichmentProgress(book.ID, events.StepEnrichmentCompleted, map[string]any{
		"source":        source,
		"fieldsUpdated": fields,
	}))

	return Outcome{Success: true, FieldsUpdated: fields}
}

// fetchCover downloads candidate's cover if book has none yet, or if
// source is OpenLibrary and the existing cover is below the low-quality
// threshold (spec §4.6 step 6).
func (e *Engine) fetchCover(ctx context.Context, book *domain.Book, source, coverURL string) (string, bool) {
	if coverURL == "" {
		return "", false
	}

	shouldDownload := !book.HasCover()
	if !shouldDownload && source == "openlibrary" {
		if size, ok := covers.SizeOf(e.dataDir, book.CoverPath); ok && size < covers.LowQualityThreshold {
			shouldDownload = true
		}
	}
	if !shouldDownload {
		return "", false
	}

	result := e.downloader.Download(ctx, book.ID, coverURL)
	if result.Error != nil {
		e.logger.Warn("cover download failed", "book_id", book.ID, "source", source, "error", result.Error)
		return "", false
	}
	return result.RelPath, true
}

func (e *Engine) emitFailed(bookID int64, source, errMsg string) {
	e.events.Emit(events.EnrichmentProgress(bookID, events.StepEnrichmentFailed, map[string]any{
		"source": source,
		"error":  errMsg,
	}))
}
