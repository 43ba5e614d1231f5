// Package quarantine moves a book to its terminal failure state and
// synthesizes a human-readable failure_reason from the per-source
// attempts the orchestrator made (spec §4.7).
package quarantine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/shelfwatch/ingestd/internal/domain"
	"github.com/shelfwatch/ingestd/internal/events"
	"github.com/shelfwatch/ingestd/internal/store"
)

// Attempt is one source's outcome during fallback-chain dispatch.
type Attempt struct {
	Source      string // slug, e.g. "openlibrary"
	DisplayName string // human-readable, e.g. "OpenLibrary"
	Success     bool
	Error       string
}

// Service quarantines books and emits the corresponding event.
type Service struct {
	store  store.BookStore
	events *events.Manager
	logger *slog.Logger
}

// New creates a quarantine Service.
func New(bookStore store.BookStore, mgr *events.Manager, logger *slog.Logger) *Service {
	return &Service{store: bookStore, events: mgr, logger: logger}
}

// Quarantine sets book bookID to status=quarantine with a synthesized
// failure_reason and emits enrichment.failed. The book must already exist.
func (s *Service) Quarantine(ctx context.Context, bookID int64, contentType domain.ContentType, attempts []Attempt) error {
	reason := SynthesizeReason(attempts)

	status := domain.StatusQuarantine
	patch := store.Patch{Status: &status, FailureReason: &reason}
	if err := s.store.Update(ctx, bookID, patch); err != nil {
		return fmt.Errorf("quarantine: update book %d: %w", bookID, err)
	}

	incidentID := uuid.NewString()
	s.logger.Warn("book quarantined", "book_id", bookID, "incident_id", incidentID, "reason", reason)

	sources := make([]string, len(attempts))
	for i, a := range attempts {
		sources[i] = a.Source
	}
	s.events.Emit(events.EnrichmentFailed(bookID, reason, string(contentType), sources))

	return nil
}

// SynthesizeReason implements the three-branch rule from spec §4.7.
func SynthesizeReason(attempts []Attempt) string {
	if len(attempts) == 0 {
		return "No enrichment sources available"
	}

	failing := make([]Attempt, 0, len(attempts))
	for _, a := range attempts {
		if !a.Success {
			failing = append(failing, a)
		}
	}
	if len(failing) == 0 {
		return "No enrichment sources available"
	}

	allTimeout := true
	for _, a := range failing {
		if a.Error != "API timeout" {
			allTimeout = false
			break
		}
	}
	if allTimeout {
		names := make([]string, len(failing))
		for i, a := range failing {
			names[i] = a.DisplayName
		}
		return fmt.Sprintf("API timeout on all sources (%s)", strings.Join(names, ", "))
	}

	parts := make([]string, len(failing))
	for i, a := range failing {
		errMsg := a.Error
		if errMsg == "" {
			errMsg = "Unknown error"
		}
		parts[i] = fmt.Sprintf("%s: %s", a.Source, errMsg)
	}
	return strings.Join(parts, ". ")
}
