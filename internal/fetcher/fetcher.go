package fetcher

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"strings"
	"time"
)

// Default fetch settings.
const (
	// DefaultTimeout bounds a single fetch. There is no overall crawl timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies crawlmd in HTTP requests.
	DefaultUserAgent = "Mozilla/5.0 (compatible; crawlmd/1.0)"

	// DefaultMaxBodySize limits how much of a textual response is read.
	DefaultMaxBodySize = 50 * 1024 * 1024 // 50MB

	// DefaultSettleDelay is how long the rendered backend waits after the
	// load event so client-side scripts can finish.
	DefaultSettleDelay = 2 * time.Second
)

// Mode names a fetch backend.
type Mode string

const (
	// ModeStatic selects the plain HTTP backend.
	ModeStatic Mode = "static"

	// ModeRendered selects the headless browser backend.
	ModeRendered Mode = "rendered"
)

// Fetcher retrieves one URL.
//
// Design decision: The interface has a single fetch method plus Close so the
// Spider never branches on which backend is in use. Close is a no-op for the
// static backend and releases the browser for the rendered one.
type Fetcher interface {
	// Fetch performs one GET of rawURL.
	// A non-nil error is always a *FetchError.
	Fetch(ctx context.Context, rawURL string) (*Response, error)

	// Close releases resources held by the backend.
	Close() error
}

// Response is the result of a successful fetch.
type Response struct {
	// StatusCode is the HTTP status of the final response.
	StatusCode int

	// ContentType is the Content-Type header (static) or MIME type (rendered).
	ContentType string

	// Body is the response body for textual content types, decoded to UTF-8.
	// For binary content (PDFs, images) the body is not read and Body is nil;
	// downloads stream those resources separately.
	Body []byte

	// FinalURL is the URL after redirects.
	FinalURL string
}

// ErrorKind classifies fetch failures.
type ErrorKind string

const (
	// KindNetwork covers DNS, connection and TLS failures.
	KindNetwork ErrorKind = "network"

	// KindTimeout means the per-request timeout elapsed.
	KindTimeout ErrorKind = "timeout"

	// KindHTTPStatus means the server answered with status 400 or above.
	KindHTTPStatus ErrorKind = "http-status"

	// KindBody means the response body could not be read or rendered.
	KindBody ErrorKind = "body"
)

// FetchError describes a failed fetch.
type FetchError struct {
	// URL is the URL that was requested.
	URL string

	// Kind is the failure class.
	Kind ErrorKind

	// StatusCode is set for KindHTTPStatus.
	StatusCode int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("%s error fetching %s: %v", e.Kind, e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrBrowserUnavailable is returned when the rendered backend cannot start
// a browser. It is a dependency error: the crawl must not start.
var ErrBrowserUnavailable = errors.New("headless browser unavailable")

// ErrUnknownMode is returned by New for an unsupported backend name.
var ErrUnknownMode = errors.New("unknown fetch mode")

// Options carries the settings shared by both backends.
type Options struct {
	// Timeout bounds a single fetch.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Headers are extra request headers.
	Headers map[string]string

	// Cookie is sent as the Cookie header when non-empty.
	Cookie string

	// Proxy is an http://, https://, socks5:// or socks5h:// proxy URL.
	Proxy string

	// MaxBodySize limits textual bodies (static backend).
	MaxBodySize int64

	// SettleDelay is the post-load wait (rendered backend).
	SettleDelay time.Duration

	// ExecPath overrides the browser executable (rendered backend).
	ExecPath string
}

// New creates the backend named by mode.
// It is called once per crawl run.
func New(mode Mode, opts Options) (Fetcher, error) {
	switch mode {
	case ModeStatic, "":
		return NewStaticFetcher(
			WithTimeout(opts.Timeout),
			WithUserAgent(opts.UserAgent),
			WithHeaders(opts.Headers),
			WithCookie(opts.Cookie),
			WithProxy(opts.Proxy),
			WithMaxBodySize(opts.MaxBodySize),
		)
	case ModeRendered:
		return NewRenderedFetcher(
			WithRenderTimeout(opts.Timeout),
			WithRenderUserAgent(opts.UserAgent),
			WithRenderHeaders(opts.Headers, opts.Cookie),
			WithSettleDelay(opts.SettleDelay),
			WithExecPath(opts.ExecPath),
			WithRenderProxy(opts.Proxy),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// MediaType returns the lowercased media type without parameters.
func MediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt, _, _ = strings.Cut(contentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsPDF reports whether the content type denotes a PDF document.
func IsPDF(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf")
}

// IsHTML reports whether the content type denotes an HTML page.
func IsHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// isTextual reports whether a body of this type should be read into memory.
func isTextual(contentType string) bool {
	mt := MediaType(contentType)
	return mt == "" || strings.HasPrefix(mt, "text/") || IsHTML(mt) ||
		strings.HasSuffix(mt, "+xml") || mt == "application/xml" || mt == "application/json"
}

// classifyTransportError maps a transport-level error to a FetchError.
func classifyTransportError(rawURL string, err error) *FetchError {
	kind := KindNetwork

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = KindTimeout
	}

	return &FetchError{URL: rawURL, Kind: kind, Err: err}
}

// statusError builds the FetchError for an HTTP status of 400 or above.
func statusError(rawURL string, code int, status string) *FetchError {
	if status == "" {
		status = fmt.Sprintf("%d", code)
	}
	return &FetchError{
		URL:        rawURL,
		Kind:       KindHTTPStatus,
		StatusCode: code,
		Err:        fmt.Errorf("http status %s", status),
	}
}
