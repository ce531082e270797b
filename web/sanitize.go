package web

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const maxBannerLength = 300

// sanitizer strips markup from text echoed back from the query string.
type sanitizer struct {
	policy *bluemonday.Policy
}

func newSanitizer() *sanitizer {
	return &sanitizer{policy: bluemonday.StrictPolicy()}
}

// Banner returns raw as plain text, trimmed and bounded. The result is
// unescaped; templates escape it on output.
func (s *sanitizer) Banner(raw string) string {
	clean := strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
	if r := []rune(clean); len(r) > maxBannerLength {
		clean = string(r[:maxBannerLength])
	}
	return clean
}
