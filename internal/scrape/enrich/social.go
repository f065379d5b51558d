package enrich

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"scrapdeouf-engine/internal/domain"
	"scrapdeouf-engine/internal/scrape/util"
)

// Fixed platform table. Order matters only for twitter/x aliasing.
var socialHosts = []struct {
	platform domain.SocialPlatform
	hosts    []string
}{
	{domain.SocialFacebook, []string{"facebook.com", "fb.com"}},
	{domain.SocialInstagram, []string{"instagram.com"}},
	{domain.SocialTwitter, []string{"twitter.com", "x.com"}},
	{domain.SocialLinkedIn, []string{"linkedin.com"}},
	{domain.SocialYouTube, []string{"youtube.com", "youtu.be"}},
	{domain.SocialTikTok, []string{"tiktok.com"}},
	{domain.SocialPinterest, []string{"pinterest.com"}},
}

var rawSocialURLRe = regexp.MustCompile(`(?i)https?://[^\s"'<>)]+`)

func platformFor(raw string) (domain.SocialPlatform, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for _, entry := range socialHosts {
		for _, h := range entry.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return entry.platform, true
			}
		}
	}
	return "", false
}

// ExtractSocials scans both rendered anchors and raw markup for links
// into the platform table. Protocol-relative and root-relative hrefs
// are normalized to absolute form against the page URL; results are
// de-duplicated by final URL in first-seen order.
func ExtractSocials(doc *goquery.Document, rawHTML string, pageURL *url.URL) []domain.SocialLink {
	seen := make(map[string]struct{})
	var out []domain.SocialLink

	add := func(raw string) {
		abs := util.AbsoluteURL(pageURL, raw)
		if abs == "" {
			return
		}
		platform, ok := platformFor(abs)
		if !ok {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, domain.SocialLink{Platform: platform, URL: abs})
	}

	if doc != nil {
		doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
			if href, ok := sel.Attr("href"); ok {
				add(href)
			}
		})
	}
	for _, m := range rawSocialURLRe.FindAllString(rawHTML, -1) {
		add(strings.TrimRight(m, ".,"))
	}
	return out
}

// FacebookLink returns the first facebook entry, if any.
func FacebookLink(socials []domain.SocialLink) (string, bool) {
	for _, s := range socials {
		if s.Platform == domain.SocialFacebook {
			return s.URL, true
		}
	}
	return "", false
}
