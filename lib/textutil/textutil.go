package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

var innerWhitespace = regexp.MustCompile(`\s+`)

// CleanText trims a scraped string, strips the non-printable characters the
// portal's markup is littered with and collapses inner whitespace runs.
func CleanText(s string) string {
	var out strings.Builder
	for _, c := range s {
		if unicode.IsPrint(c) || unicode.IsSpace(c) {
			out.WriteRune(c)
		}
	}
	return strings.TrimSpace(innerWhitespace.ReplaceAllString(out.String(), " "))
}

// SplitList splits a comma separated scraped list into cleaned entries,
// dropping empty ones.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if cleaned := CleanText(part); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
