// Package log provides the two output channels of crawlmd.
//
// Diagnostics go through log/slog wrapped in SecureHandler, which masks
// sensitive values before they reach the output:
//   - HTTP header values such as Authorization and Cookie, which per-site
//     configuration can attach to every request
//   - Values that look like credentials (bearer tokens, JWTs, long keys)
//   - The user:password part of URLs, for example proxy URLs
//
// Progress lines (the per-page "[   1]  depth=0  https://..." output and
// the run banners) go through Progress, which writes to stdout and is
// silenced by --quiet.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetching", "url", pageURL, "cookie", cookie) // cookie is masked
//
//	progress := log.NewProgress(os.Stdout, quiet)
//	progress.Printf("  [PDF]  %s", pdfURL)
package log
