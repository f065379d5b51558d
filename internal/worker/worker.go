// Package worker executes extraction jobs: it gates them on credits,
// opens a browser session through a proxy, dispatches to the template
// orchestrator and persists the outcome.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/credits"
	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/events"
	"scrapdeouf-engine/internal/proxy"
	"scrapdeouf-engine/internal/queue"
	"scrapdeouf-engine/internal/scrape/types"
	"scrapdeouf-engine/internal/store"
)

const defaultPoolSize = 5

type sessionFactory func(ctx context.Context, p *proxy.Config) (*browser.Session, func(), error)

type Worker struct {
	db            *sql.DB
	ledger        *credits.Ledger
	proxies       proxy.Provider
	hub           *events.Hub
	orchestrators map[domain.Template]types.Orchestrator
	logger        *log.Logger

	slots      chan struct{}
	newSession sessionFactory
	now        func() time.Time
}

func New(db *sql.DB, ledger *credits.Ledger, proxies proxy.Provider, hub *events.Hub,
	orchestrators map[domain.Template]types.Orchestrator, browserOpts browser.Options,
	poolSize int, logger *log.Logger) *Worker {

	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	w := &Worker{
		db:            db,
		ledger:        ledger,
		proxies:       proxies,
		hub:           hub,
		orchestrators: orchestrators,
		logger:        logger,
		slots:         make(chan struct{}, poolSize),
		now:           time.Now,
	}
	w.newSession = func(ctx context.Context, p *proxy.Config) (*browser.Session, func(), error) {
		opts := browserOpts
		opts.Proxy = p
		sess, err := browser.NewSession(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		return sess, sess.Close, nil
	}
	return w
}

// Execute runs one job to completion. Errors wrapped as permanent tell
// the queue not to retry; everything else is considered transient.
func (w *Worker) Execute(ctx context.Context, jobID string) error {
	select {
	case w.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-w.slots }()

	job, err := store.GetJob(ctx, w.db, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return queue.MarkPermanent(err)
		}
		return err
	}

	if err := job.Validate(); err != nil {
		w.fail(ctx, job, nil, 0, err)
		return queue.MarkPermanent(err)
	}

	orch, ok := w.orchestrators[job.Template]
	if !ok {
		err := fmt.Errorf("no orchestrator for template %s", job.Template)
		w.fail(ctx, job, nil, 0, err)
		return queue.MarkPermanent(err)
	}

	estimate := credits.Estimate(job)
	if err := w.ledger.Authorize(ctx, job.AccountID, estimate); err != nil {
		var qe *credits.QuotaError
		if errors.As(err, &qe) {
			w.fail(ctx, job, nil, 0, err)
			return queue.MarkPermanent(err)
		}
		return err
	}

	start := w.now()
	if err := store.MarkJobRunning(ctx, w.db, job.ID, start); err != nil {
		return err
	}
	w.publish(events.JobRunning(job.ID))
	w.logf("[worker] job %s (%s) started, estimate %d credits", job.ID, job.Template, estimate)

	var p *proxy.Config
	if w.proxies != nil {
		p = w.proxies.Next()
	}

	sess, closeSess, err := w.newSession(ctx, p)
	if err != nil {
		mon := w.stampMon(domain.MonitoringSnapshot{Errors: []string{err.Error()}}, start, p)
		w.fail(ctx, job, &mon, 0, fmt.Errorf("open browser: %w", err))
		return err
	}

	res, runErr := orch.Run(ctx, sess, job)
	closeSess()

	if runErr != nil {
		mon := domain.MonitoringSnapshot{Errors: []string{runErr.Error()}}
		if res != nil {
			mon = res.Mon
			mon.Errors = append(mon.Errors, runErr.Error())
		}
		mon = w.stampMon(mon, start, p)
		w.fail(ctx, job, &mon, 0, runErr)
		return runErr
	}

	actual := credits.ActualCost(job, res.Count)
	mon := w.stampMon(res.Mon, start, p)

	// Persist before deducting: a failed persist goes back through the
	// queue, and a retried run must not charge the account twice.
	if err := store.SaveJobRun(ctx, w.db, job.ID, domain.StatusCompleted, res.ResultJSON, &mon, actual, ""); err != nil {
		return err
	}

	if err := w.ledger.Deduct(ctx, job.AccountID, actual); err != nil {
		// The run itself succeeded and is durable; record the
		// accounting failure instead of throwing the results away.
		mon.Errors = append(mon.Errors, "credit deduction failed: "+err.Error())
		if serr := store.SaveJobRun(ctx, w.db, job.ID, domain.StatusCompleted, res.ResultJSON, &mon, actual, ""); serr != nil {
			w.logf("[worker] job %s: recording deduct failure failed: %v", job.ID, serr)
		}
		w.logf("[worker] job %s: deduct failed: %v", job.ID, err)
	}
	w.publish(events.JobCompleted(job.ID, res.Count, actual))
	w.logf("[worker] job %s completed: %d records, %d credits, %dms", job.ID, res.Count, actual, mon.DurationMS)
	return nil
}

func (w *Worker) stampMon(mon domain.MonitoringSnapshot, start time.Time, p *proxy.Config) domain.MonitoringSnapshot {
	mon.DurationMS = w.now().Sub(start).Milliseconds()
	mon.ProxyUsed = p != nil
	if p != nil {
		mon.ProxyHost = p.Host
	}
	return mon
}

func (w *Worker) fail(ctx context.Context, job *domain.ExtractionJob, mon *domain.MonitoringSnapshot, used int, cause error) {
	if err := store.SaveJobRun(ctx, w.db, job.ID, domain.StatusError, "", mon, used, cause.Error()); err != nil {
		w.logf("[worker] job %s: persisting error state failed: %v", job.ID, err)
	}
	w.publish(events.JobError(job.ID, cause.Error()))
	w.logf("[worker] job %s failed: %v", job.ID, cause)
}

func (w *Worker) publish(evt string) {
	if w.hub != nil {
		w.hub.Publish(evt)
	}
}

func (w *Worker) logf(format string, args ...any) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}
