package pipeline

import (
	"regexp"
	"strings"
)

var urlRe = regexp.MustCompile(`https?://[^\s<>"'）」】\p{Han}]+`)

// ExtractURLs pulls http(s) URLs out of free-form message text.
// Duplicates are dropped, first-seen order is kept, and trailing
// punctuation that message text tends to glue onto links is stripped.
func ExtractURLs(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;:!?)]}'\"")
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// isURLOnly reports whether the message consists of nothing but its
// URLs and whitespace.
func isURLOnly(message string, urls []string) bool {
	rest := message
	for _, u := range urls {
		rest = strings.ReplaceAll(rest, u, "")
	}
	return strings.TrimSpace(strings.TrimRight(rest, ".,;:!?)]}'\"")) == ""
}
