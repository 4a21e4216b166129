// Package config provides configuration structures and utilities for crawlmd.
// It defines the options of a crawl invocation, the .crawlmd file with
// per-domain settings, and the XDG locations used for config and history.
package config
