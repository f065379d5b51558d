package maps

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
	"scrapdeouf-engine/internal/scrape/enrich"
)

func mapJob(max int, emails, phones bool) *domain.ExtractionJob {
	return &domain.ExtractionJob{
		ID:       "job-1",
		Template: domain.TemplateMapSearch,
		Map: &domain.MapSearchConfig{
			Query:        "bakery paris",
			MaxResults:   max,
			EnrichEmails: emails,
			EnrichPhones: phones,
		},
	}
}

func stubTargets(n int) []string {
	targets := make([]string, n)
	for i := range targets {
		targets[i] = fmt.Sprintf("https://maps.example/place/%d", i)
	}
	return targets
}

func TestRun_SingleTargetFailureDoesNotFailJob(t *testing.T) {
	o := New(5, 0, nil, nil)
	o.discover = func(_ *browser.Session, _ string, max int) ([]string, error) {
		return stubTargets(5), nil
	}
	o.fetch = func(_ *browser.Session, target string) (*domain.MapListingRecord, error) {
		if target == "https://maps.example/place/2" {
			return nil, errors.New("navigation timeout")
		}
		return &domain.MapListingRecord{Name: target, SourceURL: target}, nil
	}

	res, err := o.Run(context.Background(), nil, mapJob(5, false, false))
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 4 {
		t.Errorf("Count = %d, want 4", res.Count)
	}
	if res.Mon.FailedScrapes != 1 || res.Mon.SuccessfulScrapes != 4 {
		t.Errorf("monitoring = %+v", res.Mon)
	}
	if len(res.Mon.Errors) != 1 {
		t.Errorf("Errors = %v, want the one failed target", res.Mon.Errors)
	}

	var records []domain.MapListingRecord
	if err := json.Unmarshal([]byte(res.ResultJSON), &records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Fatalf("payload has %d records, want 4", len(records))
	}
	// Panel order survives the dropped target.
	if records[1].SourceURL != "https://maps.example/place/1" || records[2].SourceURL != "https://maps.example/place/3" {
		t.Errorf("record order broken: %v, %v", records[1].SourceURL, records[2].SourceURL)
	}
}

func TestRun_EnrichmentOnlyWithWebsiteAndFlags(t *testing.T) {
	o := New(5, 0, nil, nil)
	o.discover = func(_ *browser.Session, _ string, _ int) ([]string, error) {
		return stubTargets(2), nil
	}
	o.fetch = func(_ *browser.Session, target string) (*domain.MapListingRecord, error) {
		rec := &domain.MapListingRecord{Name: target, SourceURL: target}
		if target == "https://maps.example/place/0" {
			rec.Website = "https://shop.fr"
		}
		return rec, nil
	}

	var mu sync.Mutex
	var enriched []string
	o.enrich = func(_ context.Context, _ *browser.Session, website string, flags enrich.Flags) enrich.Result {
		mu.Lock()
		enriched = append(enriched, website)
		mu.Unlock()
		if !flags.Emails {
			t.Error("email flag not forwarded")
		}
		return enrich.Result{Emails: []string{"contact@shop.fr"}}
	}

	res, err := o.Run(context.Background(), nil, mapJob(2, true, false))
	if err != nil {
		t.Fatal(err)
	}
	if len(enriched) != 1 || enriched[0] != "https://shop.fr" {
		t.Errorf("enrichment calls = %v, want only the record with a website", enriched)
	}

	var records []domain.MapListingRecord
	if err := json.Unmarshal([]byte(res.ResultJSON), &records); err != nil {
		t.Fatal(err)
	}
	if len(records[0].Emails) != 1 || records[0].Emails[0] != "contact@shop.fr" {
		t.Errorf("enriched emails = %v", records[0].Emails)
	}
	if len(records[1].Emails) != 0 {
		t.Errorf("record without a website picked up emails: %v", records[1].Emails)
	}
}

func TestRun_NoEnrichmentCallsWithoutFlags(t *testing.T) {
	o := New(5, 0, nil, nil)
	o.discover = func(_ *browser.Session, _ string, _ int) ([]string, error) {
		return stubTargets(1), nil
	}
	o.fetch = func(_ *browser.Session, target string) (*domain.MapListingRecord, error) {
		return &domain.MapListingRecord{Website: "https://shop.fr"}, nil
	}
	o.enrich = func(_ context.Context, _ *browser.Session, _ string, _ enrich.Flags) enrich.Result {
		t.Error("enrichment ran without any flag set")
		return enrich.Result{}
	}

	if _, err := o.Run(context.Background(), nil, mapJob(1, false, false)); err != nil {
		t.Fatal(err)
	}
}

func TestRun_ZeroDiscoveredIsEmptyCompletion(t *testing.T) {
	o := New(5, 0, nil, nil)
	o.discover = func(_ *browser.Session, _ string, _ int) ([]string, error) {
		return nil, nil
	}
	o.fetch = func(_ *browser.Session, _ string) (*domain.MapListingRecord, error) {
		t.Error("fetch ran with no targets")
		return nil, nil
	}

	res, err := o.Run(context.Background(), nil, mapJob(10, false, false))
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 0 || res.ResultJSON != "[]" {
		t.Errorf("empty run = count %d, payload %q", res.Count, res.ResultJSON)
	}
}

func TestRun_DiscoveryFailureFailsJob(t *testing.T) {
	o := New(5, 0, nil, nil)
	o.discover = func(_ *browser.Session, _ string, _ int) ([]string, error) {
		return nil, errors.New("search page unreachable")
	}

	if _, err := o.Run(context.Background(), nil, mapJob(10, false, false)); err == nil {
		t.Fatal("expected discovery failure to fail the run")
	}
}

func TestRun_BatchBoundsConcurrency(t *testing.T) {
	o := New(2, 0, nil, nil)
	o.discover = func(_ *browser.Session, _ string, _ int) ([]string, error) {
		return stubTargets(7), nil
	}

	var mu sync.Mutex
	active, peak := 0, 0
	o.fetch = func(_ *browser.Session, target string) (*domain.MapListingRecord, error) {
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
		return &domain.MapListingRecord{SourceURL: target}, nil
	}

	res, err := o.Run(context.Background(), nil, mapJob(7, false, false))
	if err != nil {
		t.Fatal(err)
	}
	if res.Count != 7 {
		t.Errorf("Count = %d, want 7", res.Count)
	}
	if peak > 2 {
		t.Errorf("peak concurrent fetches = %d, want at most the batch size", peak)
	}
}
