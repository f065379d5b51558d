// Package maps implements the map-search template: discover listing
// pages from a query, extract each listing, and optionally enrich it
// with contact data from the business website.
package maps

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/scrape/enrich"
	"scrapdeouf-engine/internal/scrape/types"
	"scrapdeouf-engine/internal/scrape/util"
)

type discoverFunc func(sess *browser.Session, query string, max int) ([]string, error)
type fetchFunc func(sess *browser.Session, targetURL string) (*domain.MapListingRecord, error)
type enrichFunc func(ctx context.Context, sess *browser.Session, website string, flags enrich.Flags) enrich.Result

type Orchestrator struct {
	batchSize  int
	batchPause time.Duration
	limiter    *util.HostLimiter
	logger     *log.Logger

	discover discoverFunc
	fetch    fetchFunc
	enrich   enrichFunc
}

func New(batchSize int, batchPause time.Duration, limiter *util.HostLimiter, logger *log.Logger) *Orchestrator {
	o := &Orchestrator{
		batchSize:  batchSize,
		batchPause: batchPause,
		limiter:    limiter,
		logger:     logger,
		discover:   discoverTargets,
		fetch:      fetchListing,
	}
	o.enrich = func(ctx context.Context, sess *browser.Session, website string, flags enrich.Flags) enrich.Result {
		e := &enrich.Enricher{
			Fetcher: &enrich.BrowserFetcher{Session: sess},
			Limiter: o.limiter,
		}
		return e.Enrich(ctx, website, flags)
	}
	if o.batchSize <= 0 {
		o.batchSize = 5
	}
	return o
}

func (o *Orchestrator) Template() domain.Template { return domain.TemplateMapSearch }

func (o *Orchestrator) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}

// Run executes one map-search job. A per-target failure is counted and
// skipped; only a discovery failure with nothing collected fails the
// run. Record order follows the results panel.
func (o *Orchestrator) Run(ctx context.Context, sess *browser.Session, job *domain.ExtractionJob) (*types.RunResult, error) {
	cfg := job.Map
	if cfg == nil {
		return nil, domain.ErrConfigMissing
	}

	var mon domain.MonitoringSnapshot
	targets, err := o.discover(sess, cfg.Query, job.RequestedMax())
	mon.PagesVisited++
	if err != nil {
		if len(targets) == 0 {
			return nil, err
		}
		mon.Errors = append(mon.Errors, err.Error())
	}
	o.logf("[maps] query %q: %d targets", cfg.Query, len(targets))

	flags := enrich.Flags{Emails: job.EnrichEmails(), Phones: job.EnrichPhones()}
	records := make([]*domain.MapListingRecord, len(targets))

	var mu sync.Mutex
	for start := 0; start < len(targets); start += o.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + o.batchSize
		if end > len(targets) {
			end = len(targets)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				rec, err := o.fetch(sess, targets[i])
				mu.Lock()
				mon.PagesVisited++
				mu.Unlock()
				if err != nil {
					mu.Lock()
					mon.FailedScrapes++
					mon.Errors = append(mon.Errors, targets[i]+": "+err.Error())
					mu.Unlock()
					return nil
				}

				if rec.Website != "" && (flags.Emails || flags.Phones) {
					res := o.enrich(gctx, sess, rec.Website, flags)
					rec.Emails = res.Emails
					rec.Phones = res.Phones
					rec.Socials = res.Socials
					if res.Err != "" {
						mu.Lock()
						mon.Errors = append(mon.Errors, res.Err)
						mu.Unlock()
					}
				}

				mu.Lock()
				mon.SuccessfulScrapes++
				records[i] = rec
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if end < len(targets) && o.batchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.batchPause):
			}
		}
	}

	kept := make([]*domain.MapListingRecord, 0, len(records))
	for _, rec := range records {
		if rec != nil {
			kept = append(kept, rec)
		}
	}

	payload, err := json.Marshal(kept)
	if err != nil {
		return nil, err
	}
	return &types.RunResult{ResultJSON: string(payload), Count: len(kept), Mon: mon}, nil
}
