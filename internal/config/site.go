package config

import (
	"maps"
	"strings"
	"time"
)

// SiteConfig holds crawl settings for a single domain.
// Pointer fields distinguish "not set" from a meaningful zero,
// such as a depth of 0 (start page only).
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the global User-Agent for this site.
	UserAgent string `yaml:"userAgent,omitempty"`

	// MaxDepth overrides the global maximum depth. -1 is unlimited.
	MaxDepth *int `yaml:"maxDepth,omitempty"`

	// MaxPages overrides the global page bound. 0 is unlimited.
	MaxPages *int `yaml:"maxPages,omitempty"`

	// Delay overrides the global politeness delay, e.g. "500ms".
	Delay *time.Duration `yaml:"delay,omitempty"`

	// IgnorePatterns are URL path patterns to skip during crawling.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict crawling to matching URL paths when set.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .crawlmd configuration file.
type File struct {
	// Sites maps domains (e.g. "docs.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden by its own entry.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a domain merged over the
// defaults. The lookup is case-insensitive and a leading "www." on either
// side is ignored.
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults
	result.Headers = maps.Clone(cf.Defaults.Headers)

	site, ok := cf.lookup(domain)
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if site.MaxDepth != nil {
		result.MaxDepth = site.MaxDepth
	}
	if site.MaxPages != nil {
		result.MaxPages = site.MaxPages
	}
	if site.Delay != nil {
		result.Delay = site.Delay
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}

	return result
}

// lookup finds the site entry for a domain.
func (cf *File) lookup(domain string) (SiteConfig, bool) {
	want := bareHost(domain)
	if site, ok := cf.Sites[domain]; ok {
		return site, true
	}
	for key, site := range cf.Sites {
		if bareHost(key) == want {
			return site, true
		}
	}
	return SiteConfig{}, false
}

// bareHost lowercases a host and strips a leading "www.".
func bareHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
