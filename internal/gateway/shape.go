package gateway

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const truncationMarker = "<!-- truncated -->"

var (
	scriptRe     = regexp.MustCompile(`(?is)<script.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style.*?</style>`)
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// CapHTML bounds the HTML body to maxBytes by truncating at a
// byte-ratio-derived character offset and appending a truncation marker.
// The marker is included in the budget so the capped body never exceeds it.
func CapHTML(html string, maxBytes int) string {
	if maxBytes <= 0 || len(html) <= maxBytes {
		return html
	}

	budget := maxBytes - len(truncationMarker)
	if budget <= 0 {
		return truncationMarker[:maxBytes]
	}

	runes := []rune(html)
	ratio := float64(budget) / float64(len(html))
	offset := int(float64(len(runes)) * ratio)
	if offset < 0 {
		offset = 0
	}
	if offset > len(runes) {
		offset = len(runes)
	}

	truncated := string(runes[:offset])
	// The ratio estimate can overshoot on multi-byte content; walk back until
	// the byte budget holds.
	for len(truncated) > budget && offset > 0 {
		offset--
		truncated = string(runes[:offset])
	}

	if !utf8.ValidString(truncated) {
		truncated = strings.ToValidUTF8(truncated, "")
	}

	return truncated + truncationMarker
}

// PlainText derives a plain-text fallback from an HTML body by stripping
// script and style blocks, removing tags and collapsing whitespace.
func PlainText(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = styleRe.ReplaceAllString(text, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
