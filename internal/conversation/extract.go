package conversation

import (
	"regexp"
	"strings"
)

var (
	phonePattern = regexp.MustCompile(`\+?\d[\d\s-]{6,}`)
	emailPattern = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)
)

// ExtractName returns the trimmed text before the first comma. Without a
// comma the whole answer is taken as the name.
func ExtractName(text string) string {
	name, _, _ := strings.Cut(text, ",")
	return strings.TrimSpace(name)
}

// ExtractPhone returns everything after the first comma when that is
// non-blank. Otherwise it falls back to the first run of at least seven
// digits, spaces or dashes starting with a digit (an optional leading '+'
// is kept).
func ExtractPhone(text string) string {
	if _, rest, found := strings.Cut(text, ","); found {
		if rest = strings.TrimSpace(rest); rest != "" {
			return rest
		}
	}
	return strings.TrimSpace(phonePattern.FindString(text))
}

// ExtractEmail returns the first email-shaped substring of text.
func ExtractEmail(text string) string {
	return emailPattern.FindString(text)
}
