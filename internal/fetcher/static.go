package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"
)

// ErrInvalidProxy is returned when the proxy URL cannot be used.
var ErrInvalidProxy = errors.New("invalid proxy URL")

// maxRedirects mirrors net/http's default redirect limit.
const maxRedirects = 10

// StaticFetcher fetches pages with a plain HTTP client.
// The returned body is the raw server response; no scripts run.
type StaticFetcher struct {
	client      *http.Client
	timeout     time.Duration
	userAgent   string
	headers     map[string]string
	cookie      string
	proxyURL    string
	maxBodySize int64
}

// StaticOption configures a StaticFetcher.
type StaticOption func(*StaticFetcher)

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) StaticOption {
	return func(f *StaticFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header. An empty string keeps the default.
func WithUserAgent(ua string) StaticOption {
	return func(f *StaticFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeaders adds extra request headers.
func WithHeaders(headers map[string]string) StaticOption {
	return func(f *StaticFetcher) {
		for k, v := range headers {
			f.headers[k] = v
		}
	}
}

// WithCookie sets the Cookie header sent with every request.
func WithCookie(cookie string) StaticOption {
	return func(f *StaticFetcher) {
		f.cookie = cookie
	}
}

// WithProxy routes requests through an http://, https:// or socks5:// proxy.
func WithProxy(proxyURL string) StaticOption {
	return func(f *StaticFetcher) {
		f.proxyURL = proxyURL
	}
}

// WithMaxBodySize limits how many bytes of a textual body are read.
// Non-positive values are ignored.
func WithMaxBodySize(n int64) StaticOption {
	return func(f *StaticFetcher) {
		if n > 0 {
			f.maxBodySize = n
		}
	}
}

// WithHTTPClient replaces the underlying client. Proxy settings are not
// applied to a client supplied this way.
func WithHTTPClient(c *http.Client) StaticOption {
	return func(f *StaticFetcher) {
		f.client = c
	}
}

// NewStaticFetcher creates a static HTTP fetcher.
func NewStaticFetcher(opts ...StaticOption) (*StaticFetcher, error) {
	f := &StaticFetcher{
		timeout:     DefaultTimeout,
		userAgent:   DefaultUserAgent,
		headers:     make(map[string]string),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		client, err := NewHTTPClient(f.proxyURL)
		if err != nil {
			return nil, err
		}
		f.client = client
	}

	return f, nil
}

// NewHTTPClient returns an HTTP client that honors the proxy URL.
// The PDF downloader shares it so downloads take the same route as pages.
func NewHTTPClient(proxyURL string) (*http.Client, error) {
	transport, err := newTransport(proxyURL)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}, nil
}

// newTransport builds an HTTP transport, optionally routed through a proxy.
//
// Design decision: SOCKS5 uses golang.org/x/net/proxy rather than
// http.ProxyURL because:
//  1. net/http only speaks SOCKS5 through environment configuration
//  2. x/net/proxy resolves hostnames on the proxy side for socks5h
//  3. The same dialer type is used for both socks5 and socks5h schemes
func newTransport(proxyURL string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidProxy, proxyURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProxy, err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}

	return transport, nil
}

// Fetch performs a GET request for rawURL.
//
// Responses with a status of 400 or above are returned as a FetchError of
// kind KindHTTPStatus. Textual bodies are read (up to the size limit) and
// decoded to UTF-8; binary bodies are left unread.
func (f *StaticFetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Kind: KindNetwork, Err: err}
	}
	f.applyHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, statusError(rawURL, resp.StatusCode, resp.Status)
	}

	result := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		FinalURL:    resp.Request.URL.String(),
	}

	if !isTextual(result.ContentType) {
		return result, nil
	}

	body, err := f.readBody(resp.Body, result.ContentType)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyTransportError(rawURL, ctx.Err())
		}
		return nil, &FetchError{URL: rawURL, Kind: KindBody, Err: err}
	}
	result.Body = body

	return result, nil
}

// applyHeaders sets User-Agent, extra headers and cookie on req.
func (f *StaticFetcher) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}
}

// readBody reads a textual body up to the size limit and converts it to UTF-8.
// The charset comes from the Content-Type header or, failing that, from
// a <meta> declaration in the first bytes of the document.
func (f *StaticFetcher) readBody(r io.Reader, contentType string) ([]byte, error) {
	limited := io.LimitReader(r, f.maxBodySize)

	decoded, err := charset.NewReader(limited, contentType)
	if err != nil {
		// charset.NewReader reports io.EOF for an empty body.
		if errors.Is(err, io.EOF) {
			return []byte{}, nil
		}
		return nil, err
	}
	return io.ReadAll(decoded)
}

// Close releases idle keep-alive connections.
func (f *StaticFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}
