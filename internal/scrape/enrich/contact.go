package enrich

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/scrape/util"
)

// Sub-paths probed on a discovered Facebook page when email enrichment
// is active. The base URL is the fallback when none of them yield.
var facebookAboutPaths = []string{"/about", "/about_contact", "/info"}

type Flags struct {
	Emails bool
	Phones bool
}

// Result never carries a Go error across the job boundary: a failed
// navigation yields empty sets plus a recorded error string.
type Result struct {
	Emails  []string
	Phones  []string
	Socials []domain.SocialLink
	Err     string
}

// PageFetcher loads one URL and returns the raw markup plus the
// rendered visible text.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (rawHTML, visibleText string, err error)
}

type Enricher struct {
	Fetcher PageFetcher
	Limiter *util.HostLimiter
}

// Enrich crawls a business website origin for contact data. Both the
// markup and the rendered text are inspected. When email enrichment is
// on and a facebook link was discovered, the about pages of that
// profile are mined too and their addresses merged with the site's.
func (e *Enricher) Enrich(ctx context.Context, website string, flags Flags) Result {
	var res Result
	if !flags.Emails && !flags.Phones {
		return res
	}

	origin := ensureScheme(website)
	mainDomain := util.MainDomain(origin)
	if mainDomain == "" {
		res.Err = fmt.Sprintf("invalid website %q", website)
		return res
	}

	if e.Limiter != nil {
		if err := e.Limiter.WaitURL(ctx, origin); err != nil {
			res.Err = err.Error()
			return res
		}
	}

	rawHTML, text, err := e.Fetcher.Fetch(ctx, origin)
	if err != nil {
		res.Err = fmt.Sprintf("enrich %s: %v", mainDomain, err)
		return res
	}

	pageURL, _ := url.Parse(origin)
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	res.Socials = ExtractSocials(doc, rawHTML, pageURL)

	if flags.Emails {
		res.Emails = ExtractEmails(rawHTML, text, mainDomain)
	}
	if flags.Phones {
		res.Phones = ExtractPhones(rawHTML)
	}

	if flags.Emails {
		if fb, ok := FacebookLink(res.Socials); ok {
			res.Emails = mergeEmails(res.Emails, e.mineFacebook(ctx, fb, mainDomain))
		}
	}
	return res
}

func mergeEmails(site, mined []string) []string {
	if len(mined) == 0 {
		return site
	}
	seen := make(map[string]struct{}, len(site))
	for _, addr := range site {
		seen[addr] = struct{}{}
	}
	out := site
	for _, addr := range mined {
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}

// mineFacebook probes the about-style sub-paths first, then the page
// itself. Navigation failures here are silent: the primary crawl
// already recorded the site state.
func (e *Enricher) mineFacebook(ctx context.Context, fbURL, mainDomain string) []string {
	base := strings.TrimRight(fbURL, "/")
	targets := make([]string, 0, len(facebookAboutPaths)+1)
	for _, p := range facebookAboutPaths {
		targets = append(targets, base+p)
	}
	targets = append(targets, base)

	for _, target := range targets {
		if e.Limiter != nil {
			if err := e.Limiter.WaitURL(ctx, target); err != nil {
				return nil
			}
		}
		rawHTML, text, err := e.Fetcher.Fetch(ctx, target)
		if err != nil {
			continue
		}
		if emails := ExtractEmails(rawHTML, text, mainDomain); len(emails) > 0 {
			return emails
		}
	}
	return nil
}

func ensureScheme(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		return "https://" + website
	}
	return website
}

// BrowserFetcher renders pages through the job's browser session so
// lazy-loaded contact blocks appear before extraction.
type BrowserFetcher struct {
	Session *browser.Session
}

const scrollStages = 3

func (f *BrowserFetcher) Fetch(_ context.Context, pageURL string) (string, string, error) {
	page, cancelPage := f.Session.NewPage()
	defer cancelPage()
	page, cancelNav := context.WithTimeout(page, f.Session.NavTimeout())
	defer cancelNav()

	var rawHTML, text string
	tasks := chromedp.Tasks{
		chromedp.Navigate(pageURL),
		chromedp.Sleep(f.Session.Delay()),
		chromedp.ActionFunc(func(ctx context.Context) error {
			for i := 0; i < scrollStages; i++ {
				if err := chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil).Do(ctx); err != nil {
					return err
				}
				time.Sleep(400 * time.Millisecond)
			}
			return nil
		}),
		chromedp.OuterHTML("html", &rawHTML, chromedp.ByQuery),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	}
	if err := chromedp.Run(page, tasks); err != nil {
		return "", "", err
	}
	return rawHTML, text, nil
}
