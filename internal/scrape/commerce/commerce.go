// Package commerce implements the commerce-search template: extract
// product cards from a search results page, then visit each product
// page for detail fields. Detail failures degrade records instead of
// failing the run.
package commerce

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/scrape/types"
)

type listFunc func(sess *browser.Session, searchURL string, max int) ([]domain.ProductListingRecord, error)
type detailFunc func(sess *browser.Session, rec *domain.ProductListingRecord) error

type Orchestrator struct {
	batchSize  int
	batchPause time.Duration
	logger     *log.Logger

	list   listFunc
	detail detailFunc
}

func New(batchSize int, batchPause time.Duration, logger *log.Logger) *Orchestrator {
	o := &Orchestrator{
		batchSize:  batchSize,
		batchPause: batchPause,
		logger:     logger,
		list:       fetchList,
		detail:     fetchDetail,
	}
	if o.batchSize <= 0 {
		o.batchSize = 5
	}
	return o
}

func (o *Orchestrator) Template() domain.Template { return domain.TemplateCommerceSearch }

func (o *Orchestrator) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}

// Run executes one commerce-search job. The list stage is load-bearing
// and fails the run; each detail fetch is best effort and stamps the
// unavailable sentinel on failure.
func (o *Orchestrator) Run(ctx context.Context, sess *browser.Session, job *domain.ExtractionJob) (*types.RunResult, error) {
	cfg := job.Commerce
	if cfg == nil {
		return nil, domain.ErrConfigMissing
	}

	var mon domain.MonitoringSnapshot
	records, err := o.list(sess, cfg.SearchURL, job.RequestedMax())
	mon.PagesVisited++
	if err != nil {
		return nil, err
	}
	o.logf("[commerce] %s: %d cards", cfg.SearchURL, len(records))

	var mu sync.Mutex
	for start := 0; start < len(records); start += o.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + o.batchSize
		if end > len(records) {
			end = len(records)
		}

		g, _ := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			rec := &records[i]
			g.Go(func() error {
				err := o.detail(sess, rec)
				mu.Lock()
				defer mu.Unlock()
				mon.PagesVisited++
				if err != nil {
					rec.MarkDetailUnavailable()
					mon.FailedScrapes++
					mon.Errors = append(mon.Errors, rec.ProductURL+": "+err.Error())
					return nil
				}
				mon.SuccessfulScrapes++
				return nil
			})
		}
		_ = g.Wait()

		if end < len(records) && o.batchPause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.batchPause):
			}
		}
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	if records == nil {
		payload = []byte("[]")
	}
	return &types.RunResult{ResultJSON: string(payload), Count: len(records), Mon: mon}, nil
}
