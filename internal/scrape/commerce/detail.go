package commerce

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/scrape/util"
)

// Free-text detail fields shorter than this are treated as probe noise
// (a stray label or icon caption) and discarded.
const minFreeTextLen = 10

var (
	detailTitleProbes = []probe{
		{sel: `h1[data-pl="product-title"]`},
		{sel: `[class*="title--wrap"] h1`},
		{sel: "h1"},
	}
	detailPriceProbes = []probe{
		{sel: `[class*="price--current"]`},
		{sel: `[class*="product-price-value"]`},
	}
	brandProbes = []probe{
		{sel: `a[data-pl="store-name"]`},
		{sel: `[class*="store-info"] a`},
		{sel: `[class*="brand"]`},
	}
	detailCategoryProbes = []probe{
		{sel: `[class*="breadcrumb"] a:last-of-type`},
		{sel: `[class*="category"] a`},
	}
	descriptionProbes = []probe{
		{sel: `[class*="description--wrap"]`},
		{sel: "#product-description"},
		{sel: `meta[name="description"]`, attr: "content"},
	}
	salesVolumeProbes = []probe{
		{sel: `[class*="reviewer--sold"]`},
		{sel: `span[class*="sold"]`},
	}
	stockProbes = []probe{
		{sel: `[class*="quantity--info"]`},
		{sel: `[class*="stock"]`},
	}
	detailRatingProbes = []probe{
		{sel: `[class*="rating--wrap"] strong`},
		{sel: `[class*="reviewer--rating"] strong`},
	}
	detailReviewProbes = []probe{
		{sel: `a[href="#nav-review"]`},
		{sel: `[class*="reviewer--reviews"]`},
	}
)

// ApplyDetail fills the detail-stage fields of a list record from its
// rendered product page. The product page is the authoritative source
// for title, price, rating and review count: any value it yields
// replaces the search card's, which may be truncated or stale. Card
// values survive only where the page yields nothing.
func ApplyDetail(rec *domain.ProductListingRecord, doc *goquery.Document) {
	if v := firstIn(doc.Selection, detailTitleProbes); v != "" {
		rec.Title = v
	}
	if v := firstIn(doc.Selection, detailPriceProbes); v != "" {
		rec.Price = v
	}
	if v := util.ParseFloatPtr(firstIn(doc.Selection, detailRatingProbes)); v != nil {
		rec.Rating = v
	}
	if v := util.ParseIntPtr(firstIn(doc.Selection, detailReviewProbes)); v != nil {
		rec.ReviewCount = v
	}

	rec.Brand = firstIn(doc.Selection, brandProbes)
	rec.Category = firstIn(doc.Selection, detailCategoryProbes)
	rec.SalesVolume = firstIn(doc.Selection, salesVolumeProbes)
	rec.Stock = firstIn(doc.Selection, stockProbes)

	if desc := firstIn(doc.Selection, descriptionProbes); len(desc) > minFreeTextLen {
		rec.Description = desc
	}
}

// fetchDetail renders one product page and applies its detail fields.
func fetchDetail(sess *browser.Session, rec *domain.ProductListingRecord) error {
	page, cancelPage := sess.NewPage()
	defer cancelPage()
	ctx, cancelNav := context.WithTimeout(page, sess.NavTimeout())
	defer cancelNav()

	var rawHTML string
	err := chromedp.Run(ctx,
		chromedp.Navigate(rec.ProductURL),
		chromedp.Sleep(sess.Delay()),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &rawHTML, chromedp.ByQuery),
	)
	if err != nil {
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return err
	}
	ApplyDetail(rec, doc)
	return nil
}
