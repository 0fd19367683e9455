package security

import (
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var htmlPolicy = bluemonday.StrictPolicy()

// Length caps for free text stored on a match
const (
	MaxMessageLength = 1000
	MaxReasonLength  = 500
)

// SanitizeString trims whitespace, strips null bytes and caps the length in runes
func SanitizeString(input string, maxLen int) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	if maxLen > 0 && utf8.RuneCountInString(input) > maxLen {
		input = string([]rune(input)[:maxLen])
	}

	return input
}

// SanitizeHTML removes all HTML tags
func SanitizeHTML(input string) string {
	return htmlPolicy.Sanitize(input)
}

// SanitizeText prepares user-supplied text for storage: markup is stripped first so the
// length cap applies to what is actually kept.
func SanitizeText(input string, maxLen int) string {
	return SanitizeString(SanitizeHTML(input), maxLen)
}
