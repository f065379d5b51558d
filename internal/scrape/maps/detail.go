package maps

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"

	"scrapdeouf-engine/internal/browser"
	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/scrape/util"
)

// probe is one selector attempt in an ordered fallback chain. An empty
// attr reads the element text.
type probe struct {
	sel  string
	attr string
}

func firstMatch(doc *goquery.Document, probes []probe) string {
	for _, p := range probes {
		el := doc.Find(p.sel).First()
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

// Selector chains ordered from the most specific markup observed on
// listing pages down to generic fallbacks. Class names rotate, so every
// chain ends in something structural.
var (
	nameProbes = []probe{
		{sel: "h1.DUwDvf"},
		{sel: `h1[class*="fontHeadline"]`},
		{sel: "h1"},
	}
	categoryProbes = []probe{
		{sel: `button[jsaction*="category"]`},
		{sel: "button.DkEaL"},
		{sel: ".DkEaL"},
	}
	addressProbes = []probe{
		{sel: `button[data-item-id="address"] div.fontBodyMedium`},
		{sel: `button[data-item-id="address"]`, attr: "aria-label"},
	}
	phoneProbes = []probe{
		{sel: `button[data-item-id^="phone:tel:"] div.fontBodyMedium`},
		{sel: `button[data-item-id^="phone:tel:"]`, attr: "data-item-id"},
		{sel: `a[href^="tel:"]`, attr: "href"},
	}
	websiteProbes = []probe{
		{sel: `a[data-item-id="authority"]`, attr: "href"},
		{sel: `a[aria-label^="Website"]`, attr: "href"},
	}
	ratingProbes = []probe{
		{sel: `div.F7nice span[aria-hidden="true"]`},
		{sel: "span.ceNzKf", attr: "aria-label"},
	}
	reviewCountProbes = []probe{
		{sel: `div.F7nice span[aria-label*="review"]`, attr: "aria-label"},
		{sel: `span[aria-label*="reviews"]`, attr: "aria-label"},
	}
	priceTierProbes = []probe{
		{sel: `span[aria-label*="Price:"]`, attr: "aria-label"},
		{sel: `span[aria-label^="Price"]`},
	}
	photoCountProbes = []probe{
		{sel: `button[aria-label*="photo"]`, attr: "aria-label"},
	}
)

var postalRe = regexp.MustCompile(`\b\d{4,6}\b`)

// ParseAddress splits a comma-separated display address. The last
// segment is the country; the second-to-last carries the postal code
// and city; everything before is the street.
func ParseAddress(full string) (street, city, postal, country string) {
	parts := strings.Split(full, ",")
	cleaned := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	switch len(cleaned) {
	case 0:
		return "", "", "", ""
	case 1:
		return "", "", "", cleaned[0]
	}

	country = cleaned[len(cleaned)-1]
	cityPart := cleaned[len(cleaned)-2]
	postal = postalRe.FindString(cityPart)
	city = util.CleanText(strings.Replace(cityPart, postal, "", 1))
	street = strings.Join(cleaned[:len(cleaned)-2], ", ")
	return street, city, postal, country
}

func cleanPhone(raw string) string {
	raw = strings.TrimPrefix(raw, "phone:tel:")
	raw = strings.TrimPrefix(raw, "tel:")
	return util.CleanText(raw)
}

// ExtractListing maps one rendered listing page into a record. Every
// field degrades independently: a failed probe chain leaves its zero
// value and never aborts the listing.
func ExtractListing(doc *goquery.Document, sourceURL string) *domain.MapListingRecord {
	rec := &domain.MapListingRecord{SourceURL: sourceURL}

	rec.Name = firstMatch(doc, nameProbes)
	rec.Category = firstMatch(doc, categoryProbes)

	address := strings.TrimPrefix(firstMatch(doc, addressProbes), "Address: ")
	rec.Address = address
	if address != "" {
		street, city, postal, country := ParseAddress(address)
		if street != "" {
			rec.Address = street
		}
		rec.City = city
		rec.PostalCode = postal
		rec.Country = country
	}

	rec.Phone = cleanPhone(firstMatch(doc, phoneProbes))
	rec.Website = firstMatch(doc, websiteProbes)
	rec.Domain = util.MainDomain(rec.Website)

	rec.Rating = util.ParseFloatPtr(firstMatch(doc, ratingProbes))
	rec.ReviewCount = util.ParseIntPtr(firstMatch(doc, reviewCountProbes))
	rec.PhotoCount = util.ParseIntPtr(firstMatch(doc, photoCountProbes))

	if tier := firstMatch(doc, priceTierProbes); tier != "" {
		rec.PriceTier = priceTier(tier)
	}
	return rec
}

// priceTier reduces "Price: Moderate" or a currency glyph run to the
// trailing token.
func priceTier(s string) string {
	s = strings.TrimPrefix(s, "Price:")
	return util.CleanText(s)
}

// fetchListing renders one listing page and extracts its record.
func fetchListing(sess *browser.Session, targetURL string) (*domain.MapListingRecord, error) {
	page, cancelPage := sess.NewPage()
	defer cancelPage()
	ctx, cancelNav := context.WithTimeout(page, sess.NavTimeout())
	defer cancelNav()

	var rawHTML string
	err := chromedp.Run(ctx,
		chromedp.Navigate(targetURL),
		chromedp.Sleep(sess.Delay()),
		chromedp.WaitReady("h1", chromedp.ByQuery),
		chromedp.OuterHTML("html", &rawHTML, chromedp.ByQuery),
	)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	return ExtractListing(doc, targetURL), nil
}
