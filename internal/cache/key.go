package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/linkdigest/linkdigest/pkg/models"
)

// Key is the normalized identity of one unit of analysis work:
// canonical URL plus analysis mode. URLs that differ only in scheme
// case, default port, trailing slash on a bare path, or query
// parameter order map to the same Key.
type Key string

// NewKey canonicalizes a raw URL and combines it with the analysis mode.
func NewKey(raw string, mode models.AnalysisMode) (Key, error) {
	canonical, err := CanonicalURL(raw)
	if err != nil {
		return "", err
	}
	return Key(string(mode) + "|" + canonical), nil
}

// CanonicalURL normalizes a URL for cache identity.
func CanonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing scheme or host", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	// Strip default ports.
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}

	// Bare trailing slash is equivalent to no path.
	if u.Path == "/" {
		u.Path = ""
	}

	// Sort query parameters for a stable identity.
	if u.RawQuery != "" {
		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			vals := q[k]
			sort.Strings(vals)
			for _, v := range vals {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		u.RawQuery = strings.Join(parts, "&")
	}

	u.Fragment = ""
	return u.String(), nil
}
