package audit

import (
	"context"
	"errors"
	"time"

	"github.com/veridoc/veridoc/internal/report"
)

// EventAnalysisCompleted is the only event type the engine emits today.
const EventAnalysisCompleted = "ANALYSIS_COMPLETED"

// ErrNotFound is returned when no report exists for a document id.
var ErrNotFound = errors.New("report not found")

// ErrDuplicate is returned when a report for a document id already exists.
// Reports are write-once; there is no update path.
var ErrDuplicate = errors.New("report already recorded")

// Entry is one append-only audit record. Entries are never mutated or
// deleted for the life of the system.
type Entry struct {
	ID         int64         `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Event      string        `json:"event"`
	DocumentID string        `json:"document_id"`
	RiskScore  float64       `json:"risk_score"`
	Duration   time.Duration `json:"duration_ns"`
}

// Filter narrows report listings. Zero values match everything.
type Filter struct {
	RiskLevel  report.RiskLevel
	MinScore   float64
	Since      time.Time
	ManualOnly bool
	Limit      int
}

// Sink is the append-only capability handed to the engine. Tests swap in the
// in-memory store.
type Sink interface {
	SaveReport(ctx context.Context, r *report.Report) error
	Append(ctx context.Context, e Entry) error
	// Record persists the report and its audit entry atomically: either
	// both land or neither does, so a failed analysis can always be retried
	// without tripping the duplicate guard.
	Record(ctx context.Context, r *report.Report, e Entry) error
}

// Store is the full persistence surface: the engine's sink plus the
// retrieval side used by the API and CLI.
type Store interface {
	Sink
	Report(ctx context.Context, documentID string) (*report.Report, error)
	Reports(ctx context.Context, f Filter) ([]*report.Report, error)
	Entries(ctx context.Context, documentID string) ([]Entry, error)
	Close() error
}
