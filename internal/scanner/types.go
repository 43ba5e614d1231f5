package scanner

import "time"

// ScanResult is the terminal summary of an on-demand scan.
type ScanResult struct {
	FilesFound     int
	FilesProcessed int
	FilesSkipped   int
	Errors         []ScanError
	StartedAt      time.Time
	CompletedAt    time.Time

	Progress *Progress
}

// Duration returns how long the scan took.
func (r *ScanResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Progress tracks scan progress for the configured callback.
type Progress struct {
	Phase       ScanPhase
	Current     int
	Total       int
	CurrentItem string
	Errors      []ScanError
}

// ScanPhase represents the current scan phase.
type ScanPhase string

const (
	PhaseWalking  ScanPhase = "walking"
	PhaseComplete ScanPhase = "complete"
)

// ScanError represents an error encountered during scanning.
type ScanError struct {
	Path  string
	Phase ScanPhase
	Error error
	Time  time.Time
}
