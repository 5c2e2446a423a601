package history

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/purell"
)

// trackingParams are query keys that never change the identity of an article.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"ref":          {},
	"source":       {},
}

const normalizeFlags = purell.FlagLowercaseScheme |
	purell.FlagLowercaseHost |
	purell.FlagRemoveDefaultPort |
	purell.FlagRemoveFragment |
	purell.FlagRemoveTrailingSlash |
	purell.FlagSortQuery

// NormalizeURL returns the dedup identity of a URL: lower-cased scheme and host,
// no fragment, no tracking parameters, sorted query, no trailing slash.
// Unparseable input is returned trimmed so it still matches itself.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	if u.RawQuery != "" {
		q := u.Query()
		for k := range q {
			if _, ok := trackingParams[strings.ToLower(k)]; ok {
				q.Del(k)
			}
		}
		u.RawQuery = q.Encode()
	}

	return purell.NormalizeURL(u, normalizeFlags)
}
