package enrich

import (
	"context"
	"errors"
	"testing"
)

// fakeFetcher serves canned pages by URL and records visits.
type fakeFetcher struct {
	pages  map[string]string
	visits []string
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (string, string, error) {
	f.visits = append(f.visits, pageURL)
	body, ok := f.pages[pageURL]
	if !ok {
		return "", "", errors.New("navigation timeout")
	}
	return body, body, nil
}

func TestEnrich_NoFlagsNoWork(t *testing.T) {
	f := &fakeFetcher{}
	e := &Enricher{Fetcher: f}

	res := e.Enrich(context.Background(), "https://shop.fr", Flags{})
	if len(f.visits) != 0 {
		t.Errorf("enrichment visited %v with no flags set", f.visits)
	}
	if res.Err != "" || res.Emails != nil || res.Phones != nil {
		t.Errorf("Enrich with no flags = %+v, want zero result", res)
	}
}

func TestEnrich_EmailsFromSite(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://shop.fr": `<a href="mailto:contact@shop.fr">mail</a>`,
	}}
	e := &Enricher{Fetcher: f}

	res := e.Enrich(context.Background(), "shop.fr", Flags{Emails: true})
	if res.Err != "" {
		t.Fatalf("unexpected error: %s", res.Err)
	}
	if len(res.Emails) != 1 || res.Emails[0] != "contact@shop.fr" {
		t.Errorf("Emails = %v", res.Emails)
	}
}

func TestEnrich_FacebookAboutFallback(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://shop.fr":                     `<a href="https://facebook.com/shopfr">fb</a>`,
		"https://facebook.com/shopfr/about":   `no contact here`,
		"https://facebook.com/shopfr/about_contact": `reach us: owner@shop.fr`,
	}}
	e := &Enricher{Fetcher: f}

	res := e.Enrich(context.Background(), "https://shop.fr", Flags{Emails: true})
	if len(res.Emails) != 1 || res.Emails[0] != "owner@shop.fr" {
		t.Fatalf("Emails = %v, want owner@shop.fr from about_contact", res.Emails)
	}

	want := []string{
		"https://shop.fr",
		"https://facebook.com/shopfr/about",
		"https://facebook.com/shopfr/about_contact",
	}
	if len(f.visits) != len(want) {
		t.Fatalf("visits = %v, want %v", f.visits, want)
	}
	for i := range want {
		if f.visits[i] != want[i] {
			t.Errorf("visit[%d] = %s, want %s", i, f.visits[i], want[i])
		}
	}
}

func TestEnrich_FacebookMinedEvenWhenSiteYields(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://shop.fr":                   `<a href="mailto:contact@shop.fr">mail</a> <a href="https://facebook.com/shopfr">fb</a>`,
		"https://facebook.com/shopfr/about": `write to owner@shop.fr or contact@shop.fr`,
	}}
	e := &Enricher{Fetcher: f}

	res := e.Enrich(context.Background(), "https://shop.fr", Flags{Emails: true})
	if len(res.Emails) != 2 || res.Emails[0] != "contact@shop.fr" || res.Emails[1] != "owner@shop.fr" {
		t.Fatalf("Emails = %v, want site address plus deduplicated about-page address", res.Emails)
	}

	visited := false
	for _, v := range f.visits {
		if v == "https://facebook.com/shopfr/about" {
			visited = true
		}
	}
	if !visited {
		t.Errorf("visits = %v, want the facebook about page probed", f.visits)
	}
}

func TestEnrich_FacebookNotProbedWithoutEmailFlag(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://shop.fr": `<a href="https://facebook.com/shopfr">fb</a> tel +33 1 42 68 53 00`,
	}}
	e := &Enricher{Fetcher: f}

	res := e.Enrich(context.Background(), "https://shop.fr", Flags{Phones: true})
	if len(f.visits) != 1 {
		t.Errorf("visits = %v, want only the site itself", f.visits)
	}
	if len(res.Phones) != 1 {
		t.Errorf("Phones = %v, want 1", res.Phones)
	}
	if len(res.Emails) != 0 {
		t.Errorf("Emails = %v, want empty without the email flag", res.Emails)
	}
}

func TestEnrich_NavigationFailureRecordedNotRaised(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{}}
	e := &Enricher{Fetcher: f}

	res := e.Enrich(context.Background(), "https://down.example-shop.fr", Flags{Emails: true, Phones: true})
	if res.Err == "" {
		t.Fatal("expected a recorded error string")
	}
	if len(res.Emails) != 0 || len(res.Phones) != 0 || len(res.Socials) != 0 {
		t.Errorf("failed enrichment leaked data: %+v", res)
	}
}
