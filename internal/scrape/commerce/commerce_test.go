package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/domain"
)

func commerceJob(max int) *domain.ExtractionJob {
	return &domain.ExtractionJob{
		ID:       "job-c1",
		Template: domain.TemplateCommerceSearch,
		Commerce: &domain.CommerceSearchConfig{
			SearchURL:  "https://www.aliexpress.com/w/wholesale-gadgets.html",
			MaxResults: max,
		},
	}
}

func stubCards(n int) []domain.ProductListingRecord {
	cards := make([]domain.ProductListingRecord, n)
	for i := range cards {
		cards[i] = domain.ProductListingRecord{
			CatalogID:  fmt.Sprintf("%d", i),
			Title:      fmt.Sprintf("Product %d", i),
			Price:      "€1.00",
			ProductURL: fmt.Sprintf("https://www.aliexpress.com/item/%d.html", i),
		}
	}
	return cards
}

func TestRun_DetailFailureDegradesToSentinel(t *testing.T) {
	o := New(5, 0, nil)
	o.list = func(_ *browser.Session, _ string, _ int) ([]domain.ProductListingRecord, error) {
		return stubCards(3), nil
	}
	o.detail = func(_ *browser.Session, rec *domain.ProductListingRecord) error {
		if rec.CatalogID == "1" {
			return errors.New("blocked by captcha")
		}
		rec.Brand = "BrandCo"
		rec.Category = "Gadgets"
		rec.Description = "A perfectly fine gadget for every home."
		rec.SalesVolume = "100 sold"
		rec.Stock = "in stock"
		return nil
	}

	res, err := o.Run(context.Background(), nil, commerceJob(3))
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 3 {
		t.Errorf("Count = %d, want all list-stage records billed", res.Count)
	}
	if res.Mon.FailedScrapes != 1 || res.Mon.SuccessfulScrapes != 2 {
		t.Errorf("monitoring = %+v", res.Mon)
	}

	var records []domain.ProductListingRecord
	if err := json.Unmarshal([]byte(res.ResultJSON), &records); err != nil {
		t.Fatal(err)
	}
	degraded := records[1]
	if degraded.Brand != domain.Unavailable || degraded.Description != domain.Unavailable ||
		degraded.SalesVolume != domain.Unavailable || degraded.Stock != domain.Unavailable {
		t.Errorf("degraded record missing sentinel: %+v", degraded)
	}
	// List-stage fields survive the degradation untouched.
	if degraded.Title != "Product 1" || degraded.Price != "€1.00" {
		t.Errorf("list-stage fields lost: %+v", degraded)
	}
	if records[0].Brand != "BrandCo" {
		t.Errorf("healthy record = %+v", records[0])
	}
}

func TestRun_ListFailureFailsJob(t *testing.T) {
	o := New(5, 0, nil)
	o.list = func(_ *browser.Session, _ string, _ int) ([]domain.ProductListingRecord, error) {
		return nil, errors.New("search page unreachable")
	}
	if _, err := o.Run(context.Background(), nil, commerceJob(10)); err == nil {
		t.Fatal("expected list-stage failure to fail the run")
	}
}

func TestRun_EmptySearchCompletesEmpty(t *testing.T) {
	o := New(5, 0, nil)
	o.list = func(_ *browser.Session, _ string, _ int) ([]domain.ProductListingRecord, error) {
		return nil, nil
	}
	o.detail = func(_ *browser.Session, _ *domain.ProductListingRecord) error {
		t.Error("detail ran with no cards")
		return nil
	}

	res, err := o.Run(context.Background(), nil, commerceJob(10))
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 0 || res.ResultJSON != "[]" {
		t.Errorf("empty run = count %d, payload %q", res.Count, res.ResultJSON)
	}
}

func TestRun_DetailBatchesBoundConcurrency(t *testing.T) {
	o := New(5, 0, nil)
	o.list = func(_ *browser.Session, _ string, _ int) ([]domain.ProductListingRecord, error) {
		return stubCards(12), nil
	}

	var mu sync.Mutex
	active, peak := 0, 0
	o.detail = func(_ *browser.Session, _ *domain.ProductListingRecord) error {
		mu.Lock()
		active++
		if active > peak {
			peak = active
		}
		mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		active--
		mu.Unlock()
		return nil
	}

	res, err := o.Run(context.Background(), nil, commerceJob(12))
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 12 {
		t.Errorf("Count = %d", res.Count)
	}
	if peak > 5 {
		t.Errorf("peak concurrent detail fetches = %d, want at most 5", peak)
	}
}
