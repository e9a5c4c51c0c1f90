// Package mediaurl qualifies and proxies media links embedded in upstream
// responses. The functions are pure: a Rewriter is a value, not a service.
package mediaurl

import (
	"net/url"
	"regexp"
	"strings"
)

var srcAttrPattern = regexp.MustCompile(`src="(/(?:media|thumbnail)/[^"]+)"`)

// Rewriter rewrites upstream media URLs through a file proxy. Relative
// /media/ and /thumbnail/ paths are first qualified with BaseURL.
//
// Rewriting is NOT idempotent: a URL that already carries the proxy prefix
// gets prefixed again. This mirrors the upstream-observed behavior and is
// documented by a test rather than fixed here.
type Rewriter struct {
	BaseURL  string
	ProxyURL string
	Encode   bool
}

// RewriteURL qualifies a relative media path and routes it through the
// proxy, percent-encoding the target URL when Encode is set.
func (rw Rewriter) RewriteURL(u string) string {
	if u == "" {
		return u
	}
	if strings.HasPrefix(u, "/media/") || strings.HasPrefix(u, "/thumbnail/") {
		u = rw.BaseURL + u
	}
	if rw.Encode {
		return rw.ProxyURL + url.QueryEscape(u)
	}
	return rw.ProxyURL + u
}

// RewriteContent rewrites every src="/media/..." and src="/thumbnail/..."
// attribute inside an HTML fragment. Absolute src URLs are left alone.
func (rw Rewriter) RewriteContent(content string) string {
	return srcAttrPattern.ReplaceAllStringFunc(content, func(match string) string {
		path := srcAttrPattern.FindStringSubmatch(match)[1]
		return `src="` + rw.RewriteURL(rw.BaseURL+path) + `"`
	})
}
