package enrich

import (
	"regexp"
	"strings"
)

// Permissive international shape: optional +country, separators, 7-15
// digits total. Candidates are normalized before de-duplication only;
// the original formatting is preserved in the output.
var phoneRe = regexp.MustCompile(`\+?\d[\d\s().\-/]{6,18}\d`)

// ExtractPhones scans raw markup for phone-shaped strings.
func ExtractPhones(rawHTML string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range phoneRe.FindAllString(rawHTML, -1) {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' || r == '+' {
				return r
			}
			return -1
		}, m)
		if len(strings.TrimPrefix(digits, "+")) < 7 {
			continue
		}
		key := digits
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.Join(strings.Fields(m), " "))
	}
	return out
}
