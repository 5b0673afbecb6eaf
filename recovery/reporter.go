package recovery

import (
	"log/slog"
	"sync"
	"time"
)

// Incident records one reported failure.
type Incident struct {
	Source     string
	Err        error
	Resolved   bool
	OccurredAt time.Time
}

// Reporter receives failure notifications from recovery flows. Implementations
// must be safe for concurrent use and must not block.
type Reporter interface {
	// ReportError records a failure attributed to source.
	ReportError(source string, err error)

	// MarkResolved records that a previously failing source recovered,
	// for example when a fallback succeeded.
	MarkResolved(source string)
}

// logReporter writes incidents to a structured logger. It is the default
// reporter.
type logReporter struct {
	logger *slog.Logger
}

func (r *logReporter) ReportError(source string, err error) {
	r.logger.Error("recovery incident", "source", source, "err", err)
}

func (r *logReporter) MarkResolved(source string) {
	r.logger.Info("recovery incident resolved", "source", source)
}

// MemoryReporter accumulates incidents in memory, for tests and for surfacing
// recent failures over an admin endpoint.
type MemoryReporter struct {
	mu        sync.Mutex
	incidents []Incident
}

// NewMemoryReporter creates an empty in-memory reporter.
func NewMemoryReporter() *MemoryReporter {
	return &MemoryReporter{}
}

func (r *MemoryReporter) ReportError(source string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = append(r.incidents, Incident{
		Source:     source,
		Err:        err,
		OccurredAt: time.Now().UTC(),
	})
}

func (r *MemoryReporter) MarkResolved(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents = append(r.incidents, Incident{
		Source:     source,
		Resolved:   true,
		OccurredAt: time.Now().UTC(),
	})
}

// Incidents returns a copy of everything reported so far.
func (r *MemoryReporter) Incidents() []Incident {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Incident(nil), r.incidents...)
}
