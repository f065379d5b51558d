package util

import (
	"net/url"
	"testing"
)

func TestCleanText(t *testing.T) {
	if got := CleanText("  12 Rue   de la Paix\n "); got != "12 Rue de la Paix" {
		t.Errorf("CleanText = %q", got)
	}
}

func TestMainDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.boulangerie-dupont.fr/contact": "boulangerie-dupont.fr",
		"shop.fr":          "shop.fr",
		"http://Shop.FR":   "shop.fr",
		"www.shop.fr:8080": "shop.fr",
		"":                 "",
	}
	for in, want := range cases {
		if got := MainDomain(in); got != want {
			t.Errorf("MainDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAbsoluteURL(t *testing.T) {
	base, _ := url.Parse("https://shop.fr/about/")

	if got := AbsoluteURL(base, "//img.cdn.net/a.jpg"); got != "https://img.cdn.net/a.jpg" {
		t.Errorf("protocol relative = %q", got)
	}
	if got := AbsoluteURL(base, "/contact"); got != "https://shop.fr/contact" {
		t.Errorf("root relative = %q", got)
	}
	if got := AbsoluteURL(nil, "relative/only"); got != "" {
		t.Errorf("relative without base = %q", got)
	}
	if got := AbsoluteURL(nil, "https://x.io/y"); got != "https://x.io/y" {
		t.Errorf("absolute without base = %q", got)
	}
}
