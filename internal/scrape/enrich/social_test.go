package enrich

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"scrapdeouf-engine/internal/domain"
)

func docFrom(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestExtractSocials_PlatformTable(t *testing.T) {
	html := `
<a href="https://www.facebook.com/shopdupont">fb</a>
<a href="https://instagram.com/shopdupont">ig</a>
<a href="https://x.com/shopdupont">x</a>
<a href="https://www.linkedin.com/company/dupont">li</a>
<a href="https://youtube.com/@dupont">yt</a>
<a href="https://www.tiktok.com/@dupont">tt</a>
<a href="https://pinterest.com/dupont">pin</a>
<a href="https://unrelated.example.net/page">other</a>`
	pageURL, _ := url.Parse("https://shopdupont.fr/")

	got := ExtractSocials(docFrom(t, html), html, pageURL)
	if len(got) != 7 {
		t.Fatalf("ExtractSocials found %d links, want 7: %v", len(got), got)
	}
	wantPlatforms := []domain.SocialPlatform{
		domain.SocialFacebook, domain.SocialInstagram, domain.SocialTwitter,
		domain.SocialLinkedIn, domain.SocialYouTube, domain.SocialTikTok,
		domain.SocialPinterest,
	}
	for i, w := range wantPlatforms {
		if got[i].Platform != w {
			t.Errorf("socials[%d].Platform = %s, want %s", i, got[i].Platform, w)
		}
	}
}

func TestExtractSocials_NormalizesRelativeForms(t *testing.T) {
	html := `
<a href="//www.facebook.com/shopdupont">protocol relative</a>
<a href="/redirect?to=nowhere">root relative, not social</a>`
	pageURL, _ := url.Parse("https://shopdupont.fr/contact")

	got := ExtractSocials(docFrom(t, html), "", pageURL)
	if len(got) != 1 {
		t.Fatalf("ExtractSocials = %v, want 1 entry", got)
	}
	if got[0].URL != "https://www.facebook.com/shopdupont" {
		t.Errorf("normalized URL = %q", got[0].URL)
	}
}

func TestExtractSocials_DedupByFinalURL(t *testing.T) {
	html := `<a href="https://facebook.com/x">one</a><a href="https://facebook.com/x">two</a>`
	got := ExtractSocials(docFrom(t, html), html, nil)
	if len(got) != 1 {
		t.Errorf("ExtractSocials = %v, want 1 entry after dedup", got)
	}
}

func TestExtractSocials_RawMarkupOnly(t *testing.T) {
	raw := `<script>var links = ["https://www.instagram.com/hidden.profile"];</script>`
	got := ExtractSocials(nil, raw, nil)
	if len(got) != 1 || got[0].Platform != domain.SocialInstagram {
		t.Errorf("ExtractSocials from raw markup = %v", got)
	}
}

func TestFacebookLink(t *testing.T) {
	socials := []domain.SocialLink{
		{Platform: domain.SocialInstagram, URL: "https://instagram.com/a"},
		{Platform: domain.SocialFacebook, URL: "https://facebook.com/a"},
	}
	fb, ok := FacebookLink(socials)
	if !ok || fb != "https://facebook.com/a" {
		t.Errorf("FacebookLink = %q, %v", fb, ok)
	}
	if _, ok := FacebookLink(nil); ok {
		t.Error("FacebookLink(nil) reported a link")
	}
}
