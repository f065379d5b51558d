package maps

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/domain"
)

const (
	// A discovery run scrolls the results panel at most this many times.
	maxScrollRounds = 10
	// Discovery stops early after this many consecutive scrolls that
	// surface no new listing links.
	stagnationRounds = 3

	searchURLFormat = "https://www.google.com/maps/search/%s?hl=en"
)

// resultFeed abstracts the scrollable results panel so the collect loop
// can be driven without a live browser.
type resultFeed interface {
	Links(ctx context.Context) ([]string, error)
	Scroll(ctx context.Context) error
}

// collectTargets reads the feed until it holds max links, the scroll
// ceiling is hit, or growth stalls. First-sighting order is preserved
// so the result payload follows the panel's ranking.
func collectTargets(ctx context.Context, feed resultFeed, max int, pause time.Duration) ([]string, error) {
	if max <= 0 || max > domain.MaxTargets {
		max = domain.MaxTargets
	}

	var urls []string
	seen := make(map[string]struct{})
	scrolls, stagnant := 0, 0
	for {
		links, err := feed.Links(ctx)
		if err != nil {
			return urls, err
		}
		added := 0
		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			urls = append(urls, link)
			added++
		}
		if len(urls) >= max {
			return urls[:max], nil
		}
		if scrolls > 0 {
			if added == 0 {
				stagnant++
				if stagnant >= stagnationRounds {
					return urls, nil
				}
			} else {
				stagnant = 0
			}
		}
		if scrolls >= maxScrollRounds {
			return urls, nil
		}
		if err := feed.Scroll(ctx); err != nil {
			return urls, nil
		}
		scrolls++
		if pause > 0 {
			select {
			case <-ctx.Done():
				return urls, ctx.Err()
			case <-time.After(pause):
			}
		}
	}
}

const (
	feedLinksJS = `Array.from(document.querySelectorAll('div[role="feed"] a[href*="/maps/place/"]')).map(a => a.href)`

	feedScrollJS = `(() => {
	const feed = document.querySelector('div[role="feed"]');
	if (feed) { feed.scrollTo(0, feed.scrollHeight); }
	return true;
})()`

	consentJS = `(() => {
	const btn = document.querySelector('form[action*="consent"] button, button[aria-label*="Accept all"], button#L2AGLb');
	if (btn) { btn.click(); return true; }
	return false;
})()`
)

// browserFeed drives the live results panel. Each read and scroll is
// bounded by the session's navigation timeout.
type browserFeed struct {
	nav time.Duration
}

func (f browserFeed) Links(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.nav)
	defer cancel()

	var links []string
	if err := chromedp.Run(ctx, chromedp.Evaluate(feedLinksJS, &links)); err != nil {
		return nil, err
	}
	return links, nil
}

func (f browserFeed) Scroll(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, f.nav)
	defer cancel()
	return chromedp.Run(ctx, chromedp.Evaluate(feedScrollJS, nil))
}

// discoverTargets opens the search page and collects listing URLs. A
// missing results panel is a legitimate zero-result search, not an
// error.
func discoverTargets(sess *browser.Session, query string, max int) ([]string, error) {
	page, cancel := sess.NewPage()
	defer cancel()

	searchURL := fmt.Sprintf(searchURLFormat, url.PathEscape(query))

	navCtx, cancelNav := context.WithTimeout(page, sess.NavTimeout())
	err := chromedp.Run(navCtx,
		chromedp.Navigate(searchURL),
		chromedp.Sleep(sess.Delay()),
		chromedp.Evaluate(consentJS, nil),
		chromedp.Sleep(time.Second),
	)
	cancelNav()
	if err != nil {
		return nil, fmt.Errorf("open search %q: %w", query, err)
	}

	waitCtx, cancelWait := context.WithTimeout(page, sess.NavTimeout())
	err = chromedp.Run(waitCtx, chromedp.WaitReady(`div[role="feed"]`, chromedp.ByQuery))
	cancelWait()
	if err != nil {
		return nil, nil
	}

	return collectTargets(page, browserFeed{nav: sess.NavTimeout()}, max, sess.Delay())
}
