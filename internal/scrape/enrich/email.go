package enrich

import (
	"html"
	"regexp"
	"strings"
)

var (
	emailRe = regexp.MustCompile(`(?i)[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}`)
	shapeRe = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`)

	mailtoRe = regexp.MustCompile(`(?i)mailto:([^"'?\s>]+)`)

	// Attribute-embedded addresses (data-email="...", content="...").
	attrEmailRe = regexp.MustCompile(`(?i)(?:data-email|data-mail|content)\s*=\s*["']([^"']+@[^"']+)["']`)

	// Obfuscation catalogue: "name [at] domain [dot] tld" and
	// bracket/parenthesis/brace variants, with or without spaces.
	obfuscatedRe = regexp.MustCompile(`(?i)([a-z0-9._%+\-]+)\s*[\[\({]\s*at\s*[\]\)}]\s*([a-z0-9.\-]+)\s*[\[\({]\s*dot\s*[\]\)}]\s*([a-z]{2,})`)
)

// Extensions and local-parts that show up inside markup and match the
// email shape but are never real contact addresses.
var falsePositiveSubstrings = []string{
	".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico",
	".js", ".css", ".woff", ".woff2",
}

var placeholderDomains = []string{
	"example.com", "example.org", "example.net",
	"domain.com", "email.com", "yourdomain.com", "sentry.io",
}

var genericLocalParts = []string{"noreply", "no-reply", "postmaster", "mailer-daemon"}

// CleanEmail lower-cases, trims and validates a candidate address.
// When mainDomain is non-empty, addresses whose domain does not end
// with it are rejected so widget-embedded third-party addresses never
// pollute a business's results.
func CleanEmail(raw, mainDomain string) (string, bool) {
	e := strings.ToLower(strings.TrimSpace(raw))
	e = strings.Trim(e, ".,;:")
	if e == "" || !shapeRe.MatchString(e) {
		return "", false
	}

	for _, fp := range falsePositiveSubstrings {
		if strings.Contains(e, fp) {
			return "", false
		}
	}

	at := strings.LastIndex(e, "@")
	local, dom := e[:at], e[at+1:]

	for _, g := range genericLocalParts {
		if local == g || strings.HasPrefix(local, g+".") {
			return "", false
		}
	}
	for _, pd := range placeholderDomains {
		if dom == pd || strings.HasSuffix(dom, "."+pd) {
			return "", false
		}
	}

	if mainDomain != "" {
		mainDomain = strings.ToLower(strings.TrimPrefix(mainDomain, "www."))
		if dom != mainDomain && !strings.HasSuffix(dom, "."+mainDomain) {
			return "", false
		}
	}
	return e, true
}

// DecodeObfuscated rewrites "contact [at] site [dot] com" style text
// into plain candidate addresses.
func DecodeObfuscated(text string) []string {
	var out []string
	for _, m := range obfuscatedRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1]+"@"+m[2]+"."+m[3])
	}
	return out
}

// ExtractEmails mines every known carrier of addresses from a page:
// raw markup, rendered text, mailto links, entity-encoded variants,
// attribute payloads and the obfuscation catalogue. Results are
// validated, filtered against mainDomain and de-duplicated in
// first-seen order.
func ExtractEmails(rawHTML, visibleText, mainDomain string) []string {
	var candidates []string

	decoded := html.UnescapeString(rawHTML)

	candidates = append(candidates, emailRe.FindAllString(rawHTML, -1)...)
	candidates = append(candidates, emailRe.FindAllString(decoded, -1)...)
	candidates = append(candidates, emailRe.FindAllString(visibleText, -1)...)

	for _, m := range mailtoRe.FindAllStringSubmatch(decoded, -1) {
		candidates = append(candidates, m[1])
	}
	for _, m := range attrEmailRe.FindAllStringSubmatch(decoded, -1) {
		candidates = append(candidates, m[1])
	}

	candidates = append(candidates, DecodeObfuscated(decoded)...)
	candidates = append(candidates, DecodeObfuscated(visibleText)...)

	seen := make(map[string]struct{})
	var out []string
	for _, c := range candidates {
		e, ok := CleanEmail(c, mainDomain)
		if !ok {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
