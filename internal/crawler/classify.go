package crawler

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// urlPart selects which part of a URL a rule is matched against.
type urlPart int

const (
	partWhole urlPart = iota
	partPath
)

// rejectRule describes one reason to keep a URL out of the frontier.
type rejectRule struct {
	name    string
	part    urlPart
	pattern *regexp.Regexp
}

// rejectRules is the ordered filter table used by IsValidURL.
//
// Design decision: We keep the filters as data rather than control flow
// because:
//  1. The table can be tested independently of the crawl loop
//  2. Adding an extension or pseudo-scheme is a one-line change
//  3. The rule name documents why a URL was dropped in debug logs
var rejectRules = []rejectRule{
	{name: "mailto link", part: partWhole, pattern: regexp.MustCompile(`(?i)^\s*mailto:`)},
	{name: "telephone link", part: partWhole, pattern: regexp.MustCompile(`(?i)^\s*tel:`)},
	{name: "javascript pseudo-url", part: partWhole, pattern: regexp.MustCompile(`(?i)^\s*javascript:`)},
	{name: "bare anchor", part: partWhole, pattern: regexp.MustCompile(`#$`)},
	{name: "image", part: partPath, pattern: regexp.MustCompile(`(?i)\.(jpe?g|png|gif|svg|ico|webp|bmp|tiff?)$`)},
	{name: "stylesheet or script", part: partPath, pattern: regexp.MustCompile(`(?i)\.(css|js|mjs|map)$`)},
	{name: "font", part: partPath, pattern: regexp.MustCompile(`(?i)\.(woff2?|ttf|otf|eot)$`)},
	{name: "video or audio", part: partPath, pattern: regexp.MustCompile(`(?i)\.(mp4|webm|avi|mov|mkv|mp3|wav|ogg|flac|m4a)$`)},
	{name: "archive", part: partPath, pattern: regexp.MustCompile(`(?i)\.(zip|tar|gz|tgz|bz2|xz|7z|rar)$`)},
}

// rejectReason returns the name of the first rule that rejects rawURL,
// or an empty string when the URL is crawlable.
func rejectReason(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "unparseable"
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return "unsupported scheme " + u.Scheme
	}

	for _, rule := range rejectRules {
		target := rawURL
		if rule.part == partPath {
			target = u.Path
		}
		if rule.pattern.MatchString(target) {
			return rule.name
		}
	}
	return ""
}

// IsValidURL reports whether a URL is worth a network round-trip.
// It rejects non-HTTP(S) schemes, mailto/tel/javascript pseudo-URLs,
// bare anchors, and paths ending in a static-asset extension.
func IsValidURL(rawURL string) bool {
	return rejectReason(rawURL) == ""
}

// IsSameDomain reports whether rawURL belongs to baseDomain.
// The host must match exactly (case-insensitive, port included); a URL
// without a host is treated as relative and therefore same-domain.
// Subdomains do not match.
func IsSameDomain(rawURL, baseDomain string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == "" || strings.EqualFold(u.Host, baseDomain)
}

// IsPDFURL reports whether the URL path ends in ".pdf" (case-insensitive).
func IsPDFURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.HasSuffix(strings.ToLower(rawURL), ".pdf")
	}
	return strings.EqualFold(path.Ext(u.Path), ".pdf")
}
