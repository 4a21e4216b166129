package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// RenderedFetcher fetches pages with a headless Chrome browser so that
// content produced by client-side scripts is visible to the crawler.
//
// Design decision: One browser process lives for the whole crawl and each
// fetch opens a fresh tab because:
//  1. Starting Chrome costs far more than a page load
//  2. A new tab per page keeps state from one page out of the next
//  3. Closing the tab bounds memory use on long crawls
type RenderedFetcher struct {
	timeout     time.Duration
	userAgent   string
	headers     map[string]string
	settleDelay time.Duration
	execPath    string
	proxy       string

	cancelAlloc context.CancelFunc
	browserCtx  context.Context
	closeOnce   sync.Once
	closeErr    error
}

// RenderOption configures a RenderedFetcher.
type RenderOption func(*RenderedFetcher)

// WithRenderTimeout sets the per-page timeout. Non-positive values are ignored.
func WithRenderTimeout(d time.Duration) RenderOption {
	return func(f *RenderedFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithRenderUserAgent sets the browser User-Agent. An empty string keeps the default.
func WithRenderUserAgent(ua string) RenderOption {
	return func(f *RenderedFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithRenderHeaders adds extra headers, and the cookie when non-empty,
// to every navigation.
func WithRenderHeaders(headers map[string]string, cookie string) RenderOption {
	return func(f *RenderedFetcher) {
		for k, v := range headers {
			f.headers[k] = v
		}
		if cookie != "" {
			f.headers["Cookie"] = cookie
		}
	}
}

// WithSettleDelay sets how long to wait after the load event before the DOM
// is serialized. Negative values are ignored; zero disables the wait.
func WithSettleDelay(d time.Duration) RenderOption {
	return func(f *RenderedFetcher) {
		if d >= 0 {
			f.settleDelay = d
		}
	}
}

// WithExecPath sets the browser executable. An empty path lets chromedp
// search the usual install locations.
func WithExecPath(path string) RenderOption {
	return func(f *RenderedFetcher) {
		f.execPath = path
	}
}

// WithRenderProxy routes the browser through a proxy. Chrome resolves
// hostnames on the proxy side for socks5 already, so socks5h is passed on
// as socks5.
func WithRenderProxy(proxyURL string) RenderOption {
	return func(f *RenderedFetcher) {
		if p, ok := strings.CutPrefix(proxyURL, "socks5h://"); ok {
			proxyURL = "socks5://" + p
		}
		f.proxy = proxyURL
	}
}

// NewRenderedFetcher starts a headless browser and returns a fetcher bound
// to it. The caller must call Close when done.
//
// If the browser cannot be started, the returned error wraps
// ErrBrowserUnavailable.
func NewRenderedFetcher(opts ...RenderOption) (*RenderedFetcher, error) {
	f := &RenderedFetcher{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		headers:     make(map[string]string),
		settleDelay: DefaultSettleDelay,
	}
	for _, opt := range opts {
		opt(f)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(f.userAgent),
	)
	if f.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(f.execPath))
	}
	if f.proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(f.proxy))
	}

	var allocCtx context.Context
	allocCtx, f.cancelAlloc = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	f.browserCtx, _ = chromedp.NewContext(allocCtx)

	// Running with no actions launches the browser.
	if err := chromedp.Run(f.browserCtx); err != nil {
		f.cancelAlloc()
		return nil, fmt.Errorf("%w: %v (install Chrome or Chromium, or crawl without --render)", ErrBrowserUnavailable, err)
	}

	return f, nil
}

// documentResponse is the main-frame response observed during navigation.
type documentResponse struct {
	mu       sync.Mutex
	seen     bool
	status   int
	mimeType string
	url      string
}

func (d *documentResponse) record(ev *network.EventResponseReceived) {
	if ev.Type != network.ResourceTypeDocument || ev.Response == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	// Redirect hops do not emit responseReceived, so the first document
	// response belongs to the final URL.
	if d.seen {
		return
	}
	d.seen = true
	d.status = int(ev.Response.Status)
	d.mimeType = ev.Response.MimeType
	d.url = ev.Response.URL
}

func (d *documentResponse) snapshot() (bool, int, string, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen, d.status, d.mimeType, d.url
}

// Fetch navigates a new tab to rawURL and returns the rendered DOM.
//
// Non-HTML documents (for example a PDF served at a page URL) return an
// empty body with their MIME type so the caller can route them.
func (f *RenderedFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	tabCtx, cancelTab := chromedp.NewContext(f.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, f.timeout)
	defer cancelTimeout()

	doc := &documentResponse{}
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok {
			doc.record(e)
		}
	})

	actions := []chromedp.Action{network.Enable()}
	if len(f.headers) > 0 {
		h := make(network.Headers, len(f.headers))
		for k, v := range f.headers {
			h[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(h))
	}
	actions = append(actions, chromedp.Navigate(rawURL))

	navErr := chromedp.Run(tabCtx, actions...)

	seen, status, mimeType, finalURL := doc.snapshot()
	if finalURL == "" {
		finalURL = rawURL
	}

	if seen && status >= 400 {
		return nil, statusError(rawURL, status, "")
	}

	// Chrome aborts navigation for documents it downloads instead of
	// displaying, so a captured non-HTML response wins over navErr.
	if seen && !IsHTML(mimeType) {
		return &Response{StatusCode: status, ContentType: mimeType, FinalURL: finalURL}, nil
	}

	if navErr != nil {
		return nil, f.navigationError(ctx, tabCtx, rawURL, navErr)
	}

	var rendered string
	err := chromedp.Run(tabCtx,
		chromedp.Sleep(f.settleDelay),
		chromedp.OuterHTML("html", &rendered, chromedp.ByQuery),
	)
	if err != nil {
		if tabCtx.Err() != nil {
			return nil, f.navigationError(ctx, tabCtx, rawURL, err)
		}
		return nil, &FetchError{URL: rawURL, Kind: KindBody, Err: err}
	}

	if !seen {
		status = 200
		mimeType = "text/html"
	}

	return &Response{
		StatusCode:  status,
		ContentType: mimeType,
		Body:        []byte(rendered),
		FinalURL:    finalURL,
	}, nil
}

// navigationError classifies a failed browser action.
func (f *RenderedFetcher) navigationError(parent, tabCtx context.Context, rawURL string, err error) *FetchError {
	if parent.Err() != nil {
		return &FetchError{URL: rawURL, Kind: KindNetwork, Err: parent.Err()}
	}
	if errors.Is(tabCtx.Err(), context.DeadlineExceeded) {
		return &FetchError{URL: rawURL, Kind: KindTimeout, Err: context.DeadlineExceeded}
	}
	return classifyTransportError(rawURL, err)
}

// Close shuts the browser down. It is safe to call more than once.
func (f *RenderedFetcher) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = chromedp.Cancel(f.browserCtx)
		f.cancelAlloc()
	})
	return f.closeErr
}
