package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidStartURL is returned when the start URL has no host.
// This is the only configuration error that prevents a crawl from starting.
var ErrInvalidStartURL = errors.New("invalid start URL")

// Normalize canonicalizes a URL so that equivalent URLs compare equal.
//
// It removes the fragment, lowercases the host, and strips trailing slashes
// from the path. The root path is kept as "/", and an empty path on a URL
// with a host becomes "/" so that "https://example.com" and
// "https://example.com/" share one key.
//
// Normalize never fails: when only the fragment is malformed, the rest of
// the URL is normalized; other unparseable input is returned as is.
// Normalize is idempotent.
func Normalize(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil {
		if i := strings.IndexByte(raw, '#'); i >= 0 {
			return Normalize(raw[:i])
		}
		return raw
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)

	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
		u.RawPath = strings.TrimRight(u.RawPath, "/")
	}
	if u.Path == "" && u.Host != "" && u.Opaque == "" {
		u.Path = "/"
		u.RawPath = ""
	}

	// Whitespace before a dropped fragment is now trailing.
	return strings.TrimSpace(u.String())
}

// Resolve resolves ref against base following RFC 3986.
// It returns an empty string when either side cannot be parsed.
func Resolve(base, ref string) string {
	b, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return ""
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return b.ResolveReference(r).String()
}

// ParseStartURL validates the user-supplied start URL.
// A missing scheme defaults to https. A URL without a host is rejected
// with ErrInvalidStartURL.
func ParseStartURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStartURL, err)
	}
	if u.Host == "" || u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidStartURL, raw)
	}

	u.Host = strings.ToLower(u.Host)
	return u, nil
}
