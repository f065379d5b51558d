// Package queue holds the one-time delayed run queue. Entries are keyed
// by the job's stable run key, so scheduling a job twice replaces the
// earlier entry instead of creating a second live one.
package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrPastSchedule rejects schedule requests whose run time already
// passed. The existing entry, if any, is left untouched.
var ErrPastSchedule = errors.New("scheduled time is in the past")

const (
	maxAttempts      = 3
	defaultRetryBase = 30 * time.Second
)

// Permanent wraps an error that must not be retried, e.g. a config
// validation failure or a credit rejection.
type Permanent struct {
	Err error
}

func (p *Permanent) Error() string { return p.Err.Error() }
func (p *Permanent) Unwrap() error { return p.Err }

func MarkPermanent(err error) error {
	if err == nil {
		return nil
	}
	return &Permanent{Err: err}
}

// Runner executes one job end to end. It blocks until the run finished
// or failed; the worker pool inside bounds concurrency.
type Runner func(ctx context.Context, jobID string) error

type entryState string

const (
	statePending entryState = "pending"
	stateRunning entryState = "running"
	stateDone    entryState = "done"
	stateFailed  entryState = "failed"
)

type entry struct {
	jobID    string
	runAt    time.Time
	attempts int
	state    entryState
	lastErr  string
}

// Snapshot is the externally visible state of one queue entry.
type Snapshot struct {
	JobID    string    `json:"job_id"`
	RunAt    time.Time `json:"run_at"`
	Attempts int       `json:"attempts"`
	State    string    `json:"state"`
	LastErr  string    `json:"last_error,omitempty"`
}

type Queue struct {
	runner    Runner
	logger    *log.Logger
	retryBase time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
	cron    *cron.Cron
}

func New(runner Runner, logger *log.Logger) *Queue {
	return &Queue{
		runner:    runner,
		logger:    logger,
		retryBase: defaultRetryBase,
		now:       time.Now,
		entries:   make(map[string]*entry),
	}
}

// Start begins the once-a-second due sweep. Stop cancels it; entries
// already dispatched keep running.
func (q *Queue) Start(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc("@every 1s", func() {
		q.dispatchDue(ctx)
	})
	if err != nil {
		return err
	}
	c.Start()

	q.mu.Lock()
	q.cron = c
	q.mu.Unlock()
	return nil
}

func (q *Queue) Stop() {
	q.mu.Lock()
	c := q.cron
	q.cron = nil
	q.mu.Unlock()
	if c != nil {
		c.Stop()
	}
}

// Schedule registers a run at runAt under the job's run key. A pending
// or terminal entry under the same key is replaced; last write wins.
func (q *Queue) Schedule(runKey, jobID string, runAt time.Time) error {
	if !runAt.After(q.now()) {
		return ErrPastSchedule
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.entries[runKey]; ok && e.state == stateRunning {
		return errors.New("job is currently running")
	}
	q.entries[runKey] = &entry{jobID: jobID, runAt: runAt, state: statePending}
	return nil
}

// Cancel removes a pending entry. Cancelling something already running,
// finished, or never scheduled reports false.
func (q *Queue) Cancel(runKey string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[runKey]
	if !ok || e.state != statePending {
		return false
	}
	delete(q.entries, runKey)
	return true
}

// Lookup returns the visible state of an entry.
func (q *Queue) Lookup(runKey string) (Snapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[runKey]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		JobID:    e.jobID,
		RunAt:    e.runAt,
		Attempts: e.attempts,
		State:    string(e.state),
		LastErr:  e.lastErr,
	}, true
}

// dispatchDue fires every due pending entry. Each run gets its own
// goroutine; the runner's own pool throttles real parallelism.
func (q *Queue) dispatchDue(ctx context.Context) {
	now := q.now()

	q.mu.Lock()
	var due []string
	for key, e := range q.entries {
		if e.state == statePending && !e.runAt.After(now) {
			e.state = stateRunning
			e.attempts++
			due = append(due, key)
		}
	}
	q.mu.Unlock()

	for _, key := range due {
		go q.run(ctx, key)
	}
}

func (q *Queue) run(ctx context.Context, runKey string) {
	q.mu.Lock()
	e, ok := q.entries[runKey]
	if !ok {
		q.mu.Unlock()
		return
	}
	jobID, attempt := e.jobID, e.attempts
	q.mu.Unlock()

	err := q.runner(ctx, jobID)

	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok = q.entries[runKey]
	if !ok {
		return
	}

	if err == nil {
		e.state = stateDone
		return
	}
	e.lastErr = err.Error()

	var perm *Permanent
	if errors.As(err, &perm) || attempt >= maxAttempts {
		// Kept for inspection rather than deleted.
		e.state = stateFailed
		q.logf("[queue] job %s failed after %d attempts: %v", jobID, attempt, err)
		return
	}

	// Exponential backoff: base, 2x base, 4x base.
	delay := q.retryBase << (attempt - 1)
	e.state = statePending
	e.runAt = q.now().Add(delay)
	q.logf("[queue] job %s attempt %d failed, retrying in %s: %v", jobID, attempt, delay, err)
}

func (q *Queue) logf(format string, args ...any) {
	if q.logger != nil {
		q.logger.Printf(format, args...)
	}
}
