package types

import (
	"context"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/domain"
)

// RunResult is what one template run hands back to the worker: the
// serialized payload, the billable record count and the monitoring
// counters the run filled in. Duration and proxy fields are stamped by
// the worker, which owns the clock and the session.
type RunResult struct {
	ResultJSON string
	Count      int
	Mon        domain.MonitoringSnapshot
}

// Orchestrator runs one extraction template end to end inside the
// browser session the worker opened for the job.
type Orchestrator interface {
	Template() domain.Template
	Run(ctx context.Context, sess *browser.Session, job *domain.ExtractionJob) (*RunResult, error)
}
