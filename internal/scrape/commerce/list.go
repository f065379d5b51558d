package commerce

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/scrape/util"
)

// probe is one selector attempt in an ordered fallback chain, scoped to
// a product card. An empty attr reads the element text.
type probe struct {
	sel  string
	attr string
}

func firstIn(card *goquery.Selection, probes []probe) string {
	for _, p := range probes {
		el := card.Find(p.sel).First()
		if el.Length() == 0 {
			continue
		}
		var v string
		if p.attr == "" {
			v = el.Text()
		} else {
			v, _ = el.Attr(p.attr)
		}
		if v = util.CleanText(v); v != "" {
			return v
		}
	}
	return ""
}

var (
	titleProbes = []probe{
		{sel: `[class*="titleText"]`},
		{sel: "h3"},
		{sel: "h2"},
		{sel: "img[alt]", attr: "alt"},
	}
	priceProbes = []probe{
		{sel: `[class*="price-sale"]`},
		{sel: `[class*="price--current"]`},
		{sel: `[class*="price"]`},
	}
	imageProbes = []probe{
		{sel: "img[src]", attr: "src"},
		{sel: "img[data-src]", attr: "data-src"},
	}
	cardRatingProbes = []probe{
		{sel: `[class*="evaluation"]`},
		{sel: `[class*="star"]`},
	}
	cardReviewProbes = []probe{
		{sel: `[class*="review"]`},
		{sel: `[class*="rating-num"]`},
	}
)

var catalogIDRe = regexp.MustCompile(`/item/(\d+)`)

// CatalogID pulls the numeric product identifier out of an item URL.
func CatalogID(href string) string {
	m := catalogIDRe.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}

const canonicalItemURL = "https://www.aliexpress.com/item/%s.html"

// ExtractList maps the rendered search page into list-stage records.
// Cards are deduplicated by catalog id; when the id is known, the
// product URL is rebuilt in canonical form instead of keeping the
// tracking-laden card href.
func ExtractList(doc *goquery.Document, pageURL *url.URL, max int) []domain.ProductListingRecord {
	var out []domain.ProductListingRecord
	seen := make(map[string]struct{})

	doc.Find(`a[href*="/item/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		abs := util.AbsoluteURL(pageURL, href)
		if abs == "" {
			return true
		}
		id := CatalogID(abs)
		key := id
		if key == "" {
			key = abs
		}
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}

		productURL := abs
		if id != "" {
			productURL = fmt.Sprintf(canonicalItemURL, id)
		}

		title := firstIn(a, titleProbes)
		if title == "" {
			title = util.CleanText(a.AttrOr("title", ""))
		}
		if title == "" {
			return true
		}

		rec := domain.ProductListingRecord{
			CatalogID:   id,
			Title:       title,
			Price:       firstIn(a, priceProbes),
			Rating:      util.ParseFloatPtr(firstIn(a, cardRatingProbes)),
			ReviewCount: util.ParseIntPtr(firstIn(a, cardReviewProbes)),
			ImageURL:    util.AbsoluteURL(pageURL, firstIn(a, imageProbes)),
			ProductURL:  productURL,
		}
		out = append(out, rec)
		return len(out) < max
	})
	return out
}

// fetchList renders the search page and extracts its cards.
func fetchList(sess *browser.Session, searchURL string, max int) ([]domain.ProductListingRecord, error) {
	page, cancelPage := sess.NewPage()
	defer cancelPage()
	ctx, cancelNav := context.WithTimeout(page, sess.NavTimeout())
	defer cancelNav()

	var rawHTML string
	err := chromedp.Run(ctx,
		chromedp.Navigate(searchURL),
		chromedp.Sleep(sess.Delay()),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Search pages lazy-load cards below the fold.
			for i := 0; i < 4; i++ {
				if err := chromedp.Evaluate(`window.scrollBy(0, window.innerHeight)`, nil).Do(ctx); err != nil {
					return err
				}
				time.Sleep(400 * time.Millisecond)
			}
			return nil
		}),
		chromedp.OuterHTML("html", &rawHTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("open search page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(searchURL)
	return ExtractList(doc, base, max), nil
}
