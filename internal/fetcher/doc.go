// Package fetcher retrieves web resources for the crawler.
//
// # Backends
//
// Two interchangeable implementations satisfy the Fetcher interface:
//   - StaticFetcher: a plain net/http client; the body is what the server sent
//   - RenderedFetcher: headless Chrome driven by chromedp; the body is the
//     serialized DOM after client-side scripts ran
//
// The backend is selected once per crawl run (see New) and never per request,
// because the two can yield materially different content for the same page.
//
// # Errors
//
// Both backends report failures as *FetchError with a Kind describing the
// failure class: network, timeout, http-status or body. HTTP status codes of
// 400 and above are errors, not crashes. If the browser for the rendered
// backend cannot be started, NewRenderedFetcher returns ErrBrowserUnavailable
// instead of silently falling back to the static backend.
//
// # Resource model
//
// The rendered backend owns one browser process for its whole lifetime.
// Callers acquire it once before the crawl loop and must call Close when the
// loop ends, on every exit path:
//
//	f, err := fetcher.New(fetcher.ModeRendered, opts)
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
package fetcher
