package util

import (
	"net/url"
	"strings"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// MainDomain strips the scheme and a leading www. from a website URL,
// returning the bare host used to filter third-party email addresses.
func MainDomain(website string) string {
	website = strings.TrimSpace(website)
	if website == "" {
		return ""
	}
	if !strings.Contains(website, "://") {
		website = "https://" + website
	}
	u, err := url.Parse(website)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// AbsoluteURL resolves protocol-relative and root-relative hrefs
// against a base page URL.
func AbsoluteURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		if ref.IsAbs() {
			return ref.String()
		}
		return ""
	}
	return base.ResolveReference(ref).String()
}
