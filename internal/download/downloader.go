package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/crawlmd/internal/convert"
)

const (
	// DefaultChunkSize is the buffer size used when streaming a download.
	DefaultChunkSize = 8192

	// maxCollisionSuffix bounds the "_N" search for a free file name.
	maxCollisionSuffix = 10000

	pdfExt = ".pdf"
)

// ErrNoFreeName is returned when every collision-suffixed name is taken.
var ErrNoFreeName = errors.New("no free file name")

// Result describes a completed download.
type Result struct {
	// Path is where the file was written.
	Path string

	// SizeKB is the file size in kilobytes (bytes / 1024).
	SizeKB float64
}

// Downloader streams documents to disk.
type Downloader struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	headers   map[string]string
	chunkSize int
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets the HTTP client, for example one routed through a proxy.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		if c != nil {
			d.client = c
		}
	}
}

// WithTimeout bounds each download. Non-positive values are ignored.
func WithTimeout(t time.Duration) Option {
	return func(d *Downloader) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) {
		if ua != "" {
			d.userAgent = ua
		}
	}
}

// WithHeaders adds extra request headers.
func WithHeaders(headers map[string]string) Option {
	return func(d *Downloader) {
		for k, v := range headers {
			d.headers[k] = v
		}
	}
}

// WithChunkSize sets the streaming buffer size. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// NewDownloader creates a Downloader.
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		client:    http.DefaultClient,
		timeout:   30 * time.Second,
		userAgent: "Mozilla/5.0 (compatible; crawlmd/1.0)",
		headers:   make(map[string]string),
		chunkSize: DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Download fetches rawURL and writes it into dir.
//
// The file name comes from the last URL path segment with ".pdf" appended
// when missing. If the name is taken, "_1", "_2", ... is inserted before the
// extension. The name is claimed with O_EXCL so a concurrent crawl writing
// into the same directory cannot overwrite it. A failed transfer removes
// the partial file.
func (d *Downloader) Download(ctx context.Context, rawURL, dir string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	for k, v := range d.headers {
		req.Header.Set(k, v)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("http status %s", resp.Status)
	}

	file, err := createUnique(dir, FileName(rawURL))
	if err != nil {
		return nil, err
	}

	written, copyErr := io.CopyBuffer(file, resp.Body, make([]byte, d.chunkSize))
	closeErr := file.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(file.Name())
		if copyErr != nil {
			return nil, fmt.Errorf("failed to save %s: %w", rawURL, copyErr)
		}
		return nil, fmt.Errorf("failed to save %s: %w", rawURL, closeErr)
	}

	return &Result{
		Path:   file.Name(),
		SizeKB: float64(written) / 1024,
	}, nil
}

// FileName derives the on-disk name for a PDF URL.
func FileName(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.EscapedPath()
	}

	name := path.Base(p)
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	if name == "." || name == "/" || name == "" {
		name = "document"
	}

	if !strings.HasSuffix(strings.ToLower(name), pdfExt) {
		name += pdfExt
	}
	return convert.SanitizeFilename(name)
}

// createUnique opens a new file named name in dir, adding a numeric suffix
// before the extension until an unused name is found.
func createUnique(dir, name string) (*os.File, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; i <= maxCollisionSuffix; i++ {
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // name is sanitized
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("failed to create file: %w", err)
		}
		candidate = base + "_" + strconv.Itoa(i) + ext
	}
	return nil, fmt.Errorf("%w for %s in %s", ErrNoFreeName, name, dir)
}
