// Package events implements the typed broadcast bus shared by the watcher,
// scanner, processor, and orchestrator. Every stage of the ingestion
// pipeline emits through the same Manager rather than depending on each
// other directly.
package events

import "time"

// Type identifies a pipeline event. Values are stable for wire
// compatibility with anything consuming the broadcast stream.
type Type string

const (
	// TypeFileDetected fires once the watcher has settled a new file.
	TypeFileDetected Type = "file.detected"
	// TypeScanCompleted fires once an on-demand scan finishes.
	TypeScanCompleted Type = "scan.completed"
	// TypeEnrichmentStarted fires when the orchestrator begins working a book.
	TypeEnrichmentStarted Type = "enrichment.started"
	// TypeEnrichmentProgress fires for each named step inside enrichment.
	TypeEnrichmentProgress Type = "enrichment.progress"
	// TypeEnrichmentCompleted fires once a book reaches status=enriched.
	TypeEnrichmentCompleted Type = "enrichment.completed"
	// TypeEnrichmentFailed fires once a book is quarantined.
	TypeEnrichmentFailed Type = "enrichment.failed"
	// TypeBookUpdated fires whenever an enricher patches a book's fields.
	TypeBookUpdated Type = "book.updated"
)

// Progress step vocabulary. Non-exhaustive but stable; sources append
// their own name as a prefix, e.g. "openlibrary-search-started".
const (
	StepPipelineStarted      = "pipeline-started"
	StepMangaPipelineStarted = "manga-pipeline-started"
	StepMetadataExtracted    = "metadata-extracted"
	StepCoverExtracted       = "cover-extracted"
	StepExtractionComplete   = "extraction-complete"
	StepEnrichmentCompleted  = "enrichment-completed"
	StepEnrichmentFailed     = "enrichment-failed"
)

// SearchStartedStep and friends build the per-source step names, e.g.
// "openlibrary-search-started".
func SearchStartedStep(source string) string { return source + "-search-started" }
func MatchFoundStep(source string) string    { return source + "-match-found" }
func NoMatchStep(source string) string       { return source + "-no-match" }

// Event is the wire envelope every consumer receives.
type Event struct {
	Type      Type           `json:"type"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

// FileDetected builds a file.detected event.
func FileDetected(filename, contentType string, bookID int64) Event {
	return Event{
		Type: TypeFileDetected,
		Payload: map[string]any{
			"filename":    filename,
			"contentType": contentType,
			"bookId":      bookID,
		},
		Timestamp: time.Now(),
	}
}

// ScanCompleted builds a scan.completed event.
func ScanCompleted(filesFound, filesProcessed, filesSkipped, errs int, duration time.Duration) Event {
	return Event{
		Type: TypeScanCompleted,
		Payload: map[string]any{
			"filesFound":     filesFound,
			"filesProcessed": filesProcessed,
			"filesSkipped":   filesSkipped,
			"errors":         errs,
			"duration":       duration.Milliseconds(),
		},
		Timestamp: time.Now(),
	}
}

// EnrichmentStarted builds an enrichment.started event. meta is merged
// verbatim into the payload alongside bookId.
func EnrichmentStarted(bookID int64, meta map[string]any) Event {
	return withBookID(TypeEnrichmentStarted, bookID, meta)
}

// EnrichmentProgress builds an enrichment.progress event for a named step.
func EnrichmentProgress(bookID int64, step string, data map[string]any) Event {
	payload := map[string]any{"bookId": bookID, "step": step}
	if data != nil {
		payload["data"] = data
	}
	return Event{Type: TypeEnrichmentProgress, Payload: payload, Timestamp: time.Now()}
}

// EnrichmentCompleted builds an enrichment.completed event.
func EnrichmentCompleted(bookID int64, meta map[string]any) Event {
	return withBookID(TypeEnrichmentCompleted, bookID, meta)
}

// EnrichmentFailed builds an enrichment.failed event.
func EnrichmentFailed(bookID int64, failureReason, contentType string, sourcesAttempted []string) Event {
	return Event{
		Type: TypeEnrichmentFailed,
		Payload: map[string]any{
			"bookId":            bookID,
			"failureReason":     failureReason,
			"contentType":       contentType,
			"sourcesAttempted":  sourcesAttempted,
		},
		Timestamp: time.Now(),
	}
}

// BookUpdated builds a book.updated event describing a non-overwriting
// patch applied by a single source.
func BookUpdated(bookID int64, source, externalID string, fieldsUpdated []string) Event {
	return Event{
		Type: TypeBookUpdated,
		Payload: map[string]any{
			"bookId":        bookID,
			"source":        source,
			"externalId":    externalID,
			"fieldsUpdated": fieldsUpdated,
		},
		Timestamp: time.Now(),
	}
}

func withBookID(t Type, bookID int64, meta map[string]any) Event {
	payload := map[string]any{"bookId": bookID}
	for k, v := range meta {
		payload[k] = v
	}
	return Event{Type: t, Payload: payload, Timestamp: time.Now()}
}
