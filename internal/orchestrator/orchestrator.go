// Package orchestrator implements the pipeline's state-machine engine
// (spec §4.6): it runs the local extractor, dispatches the content
// type's external-source fallback chain, and decides whether a book
// lands as enriched or quarantined.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/enrich"
	"github.com/shelfwatch/ingestd/internal/events"
	"github.com/shelfwatch/ingestd/internal/extract"
	"github.com/shelfwatch/ingestd/internal/media/covers"
	"github.com/shelfwatch/ingestd/internal/quarantine"
	"github.com/shelfwatch/ingestd/internal/store"
)

// Orchestrator implements processor.Enricher: it is invoked
// fire-and-forget for every freshly created book.
type Orchestrator struct {
	store        store.BookStore
	engine       *enrich.Engine
	quarantine   *quarantine.Service
	events       *events.Manager
	coverStorage *covers.Storage

	ebookChain []enrich.Adapter
	mangaChain []enrich.Adapter

	// unavailable marks adapters whose required credential is missing
	// (e.g. Google Books / MyAnimeList without an API key). A chain made
	// entirely of unavailable adapters is "unavailable" rather than
	// "failed" (spec §4.6 step 3).
	unavailable map[string]bool

	logger *slog.Logger
}

// New creates an Orchestrator wired to the given fallback chains.
func New(
	bookStore store.BookStore,
	engine *enrich.Engine,
	quarantineSvc *quarantine.Service,
	mgr *events.Manager,
	coverStorage *covers.Storage,
	ebookChain, mangaChain []enrich.Adapter,
	unavailable map[string]bool,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:        bookStore,
		engine:       engine,
		quarantine:   quarantineSvc,
		events:       mgr,
		coverStorage: coverStorage,
		ebookChain:   ebookChain,
		mangaChain:   mangaChain,
		unavailable:  unavailable,
		logger:       logger,
	}
}

// Enrich runs the full orchestrate(bookId) procedure for bookID. It is
// called fire-and-forget from the processor and never returns a value;
// all outcomes are persisted to the store and broadcast as events.
func (o *Orchestrator) Enrich(ctx context.Context, bookID int64) {
	book, err := o.store.GetByID(ctx, bookID)
	if err != nil {
		o.logger.Error("orchestrator: load book failed", "book_id", bookID, "error", err)
		return
	}

	chain, startStep := o.chainFor(book.ContentType)
	o.events.Emit(events.EnrichmentProgress(book.ID, startStep, nil))
	o.events.Emit(events.EnrichmentStarted(book.ID, map[string]any{"contentType": string(book.ContentType)}))

	localSuccess := o.runExtraction(ctx, book)

	attempts := make([]quarantine.Attempt, 0, len(chain))
	chainSuccess := false
	allUnavailable := len(chain) > 0

	for _, adapter := range chain {
		if o.unavailable[adapter.Slug()] {
			continue
		}
		allUnavailable = false

		outcome := o.engine.Run(ctx, book, adapter)
		attempts = append(attempts, quarantine.Attempt{
			Source:      adapter.Slug(),
			DisplayName: adapter.DisplayName(),
			Success:     outcome.Success,
			Error:       outcome.Error,
		})
		if outcome.Success {
			chainSuccess = true
			break
		}
	}

	switch {
	case chainSuccess:
		// The engine already persisted status=enriched.
		return
	case allUnavailable && localSuccess:
		status := domain.StatusEnriched
		if err := o.store.Update(ctx, book.ID, store.Patch{Status: &status}); err != nil {
			o.logger.Error("orchestrator: failed to mark locally-enriched", "book_id", book.ID, "error", err)
		}
	default:
		if err := o.quarantine.Quarantine(ctx, book.ID, book.ContentType, attempts); err != nil {
			o.logger.Error("orchestrator: quarantine failed", "book_id", book.ID, "error", err)
		}
	}
}

// chainFor returns the fallback chain and pipeline-start step name for
// a book's content type.
func (o *Orchestrator) chainFor(ct domain.ContentType) ([]enrich.Adapter, string) {
	if ct == domain.ContentTypeManga {
		return o.mangaChain, events.StepMangaPipelineStarted
	}
	return o.ebookChain, events.StepPipelineStarted
}

// runExtraction reads structural metadata and cover art out of the
// book's file, persists a non-overwriting patch, and reports whether
// extraction itself succeeded (spec §4.6 step 1).
func (o *Orchestrator) runExtraction(ctx context.Context, book *domain.Book) bool {
	result, err := extract.File(book.FilePath)
	if err != nil {
		o.logger.Warn("extraction failed", "book_id", book.ID, "path", book.FilePath, "error", err)
		return false
	}

	patch := buildExtractionPatch(book, result.Metadata)

	if result.CoverExtracted && !book.HasCover() {
		relPath, err := o.coverStorage.Save(book.ID, result.Cover.Data, result.Cover.Ext)
		if err != nil {
			o.logger.Warn("cover save failed", "book_id", book.ID, "error", err)
		} else {
			patch.CoverPath = &relPath
		}
	}

	if err := o.store.Update(ctx, book.ID, patch); err != nil {
		o.logger.Error("orchestrator: persist extraction failed", "book_id", book.ID, "error", err)
	}
	applyPatchLocally(book, patch)

	if result.MetadataExtracted {
		o.events.Emit(events.EnrichmentProgress(book.ID, events.StepMetadataExtracted, nil))
	}
	if patch.CoverPath != nil {
		o.events.Emit(events.EnrichmentProgress(book.ID, events.StepCoverExtracted, nil))
	}
	o.events.Emit(events.EnrichmentProgress(book.ID, events.StepExtractionComplete, nil))

	return result.Success()
}
