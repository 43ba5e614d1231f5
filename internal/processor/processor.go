// Package processor turns a settled filesystem detection into a book row:
// dedupe, structural validation, row creation, and a fire-and-forget
// handoff to extraction and enrichment.
package processor

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/sync/singleflight"

	"github.com/shelfwatch/ingestd/internal/domain"
	apperrors "github.com/shelfwatch/ingestd/internal/errors"
	"github.com/shelfwatch/ingestd/internal/events"
	"github.com/shelfwatch/ingestd/internal/validate"
	"github.com/shelfwatch/ingestd/internal/watcher"
)

// Action is the outcome of processing a single detection.
type Action string

const (
	ActionCreated Action = "created"
	ActionSkipped Action = "skipped"
	ActionFailed  Action = "failed"
)

// Result is the Processor's reply to a single process() call.
type Result struct {
	Action Action
	BookID int64
	Reason string
}

// BookStore is the persistence surface the processor needs.
type BookStore interface {
	Create(ctx context.Context, book *domain.Book) (*domain.Book, error)
	GetByFilePath(ctx context.Context, path string) (*domain.Book, error)
}

// Enricher runs local extraction followed by external enrichment for a
// freshly created book. It is invoked fire-and-forget from a background
// goroutine; the Processor never waits on it.
type Enricher interface {
	Enrich(ctx context.Context, bookID int64)
}

// Processor is the entry point for every detected file.
type Processor struct {
	store    BookStore
	enricher Enricher
	events   *events.Manager
	logger   *slog.Logger

	// dedupe collapses concurrent detections of the same path into a
	// single getByPath+validate+create execution: two near-simultaneous
	// watcher/scanner events for a file in flight share one result
	// instead of racing to create two rows.
	dedupe singleflight.Group
}

// New creates a Processor.
func New(store BookStore, enricher Enricher, mgr *events.Manager, logger *slog.Logger) *Processor {
	return &Processor{
		store:    store,
		enricher: enricher,
		events:   mgr,
		logger:   logger,
	}
}

// Process implements the spec's process(event) contract.
func (p *Processor) Process(ctx context.Context, ev watcher.Event) (Result, error) {
	v, err, _ := p.dedupe.Do(ev.Path, func() (any, error) {
		return p.process(ctx, ev)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (p *Processor) process(ctx context.Context, ev watcher.Event) (Result, error) {
	if existing, err := p.store.GetByFilePath(ctx, ev.Path); err == nil && existing != nil {
		return Result{Action: ActionSkipped}, nil
	} else if err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
		return Result{Action: ActionFailed, Reason: err.Error()}, nil
	}

	res, err := validate.File(ev.Path)
	if err != nil {
		return Result{Action: ActionFailed, Reason: err.Error()}, nil
	}
	if !res.Valid {
		p.logger.Warn("validation failed", "path", ev.Path, "reason", res.Reason)
		return Result{Action: ActionFailed, Reason: res.Reason}, nil
	}

	ext := strings.TrimPrefix(strings.ToLower(ev.Extension), ".")
	book := &domain.Book{
		FilePath:    ev.Path,
		Filename:    ev.Filename,
		Extension:   ext,
		ContentType: domain.ContentTypeFromExtension(ext),
		FileType:    domain.FileTypeFromExtension(ext),
		Status:      domain.StatusPending,
		Title:       deriveTitle(ev.Filename),
	}

	created, err := p.store.Create(ctx, book)
	if err != nil {
		return Result{Action: ActionFailed, Reason: err.Error()}, nil
	}

	p.logger.Info("book created", "book_id", created.ID, "path", ev.Path, "title", created.Title)

	if p.enricher != nil {
		bookID := created.ID
		go p.enricher.Enrich(context.WithoutCancel(ctx), bookID)
	}

	p.events.Emit(events.FileDetected(created.Filename, string(created.ContentType), created.ID))

	return Result{Action: ActionCreated, BookID: created.ID}, nil
}

// deriveTitle strips the extension, replaces underscores/hyphens with
// spaces, collapses whitespace, and title-cases each word.
func deriveTitle(filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	name = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' {
			return ' '
		}
		return r
	}, name)

	fields := strings.Fields(name)
	for i, word := range fields {
		fields[i] = titleCaseWord(word)
	}
	return strings.Join(fields, " ")
}

func titleCaseWord(word string) string {
	r := []rune(word)
	if len(r) == 0 {
		return word
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
