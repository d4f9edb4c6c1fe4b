package shared

import (
	"time"

	"github.com/google/uuid"
)

// ScanKind names the component that produced a report.
type ScanKind string

const (
	KindProcess    ScanKind = "process"
	KindFilesystem ScanKind = "filesystem"
	KindRemote     ScanKind = "remote"
)

// Report statuses.
const (
	StatusHitsFound = "hits-found"
	StatusNoHits    = "no-hits"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
)

// ScanReport is the typed outcome of one process, filesystem or remote scan.
// Hits is never nil. When Failure is set, Hits holds whatever was collected
// before the fault (always empty for remote scans).
type ScanReport struct {
	ID         string         `json:"id"`
	Kind       ScanKind       `json:"kind"`
	Target     string         `json:"target"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Hits       []DetectionHit `json:"hits"`
	Inspected  int            `json:"inspected"`
	Skipped    int            `json:"skipped"`
	Failure    *Failure       `json:"failure,omitempty"`
}

// NewReport starts a report for kind/target.
func NewReport(kind ScanKind, target string) *ScanReport {
	return &ScanReport{
		ID:        uuid.New().String(),
		Kind:      kind,
		Target:    target,
		StartedAt: time.Now().UTC(),
		Hits:      make([]DetectionHit, 0),
	}
}

// Finish stamps the completion time and returns r.
func (r *ScanReport) Finish() *ScanReport {
	r.FinishedAt = time.Now().UTC()
	return r
}

// Fail records f and stamps the completion time.
func (r *ScanReport) Fail(f *Failure) *ScanReport {
	r.Failure = f
	return r.Finish()
}

// Status summarizes the report.
func (r *ScanReport) Status() string {
	switch {
	case r.Failure != nil && len(r.Hits) > 0:
		return StatusPartial
	case r.Failure != nil:
		return StatusFailed
	case len(r.Hits) > 0:
		return StatusHitsFound
	default:
		return StatusNoHits
	}
}

// Duration is the wall time of the scan.
func (r *ScanReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
