package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestStaticFetcher tests the plain HTTP backend against a local server.
func TestStaticFetcher(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/page", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>Hi</title></head><body>ok</body></html>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>not found</html>"))
	})
	mux.HandleFunc("/doc.pdf", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 binary"))
	})
	mux.HandleFunc("/latin1", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		// "café" in ISO-8859-1
		_, _ = w.Write([]byte{'<', 'p', '>', 'c', 'a', 'f', 0xe9, '<', '/', 'p', '>'})
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page", http.StatusFound)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(r.UserAgent() + "|" + r.Header.Get("Cookie") + "|" + r.Header.Get("X-Token")))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.Header().Set("Content-Type", "text/html")
	})
	mux.HandleFunc("/big", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", 4096)))
	})
	mux.HandleFunc("/empty", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	newFetcher := func(t *testing.T, opts ...StaticOption) *StaticFetcher {
		t.Helper()
		f, err := NewStaticFetcher(opts...)
		if err != nil {
			t.Fatalf("NewStaticFetcher() error = %v", err)
		}
		t.Cleanup(func() { _ = f.Close() })
		return f
	}

	t.Run("html page", func(t *testing.T) {
		t.Parallel()

		resp, err := newFetcher(t).Fetch(context.Background(), server.URL+"/page")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected status 200, got %d", resp.StatusCode)
		}
		if !IsHTML(resp.ContentType) {
			t.Errorf("expected HTML content type, got %q", resp.ContentType)
		}
		if !strings.Contains(string(resp.Body), "<title>Hi</title>") {
			t.Errorf("unexpected body: %s", resp.Body)
		}
	})

	t.Run("status 404 is an http-status error", func(t *testing.T) {
		t.Parallel()

		_, err := newFetcher(t).Fetch(context.Background(), server.URL+"/missing")
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FetchError, got %v", err)
		}
		if fe.Kind != KindHTTPStatus || fe.StatusCode != http.StatusNotFound {
			t.Errorf("expected http-status 404, got %s %d", fe.Kind, fe.StatusCode)
		}
		if !strings.Contains(fe.Error(), "404") {
			t.Errorf("expected message to mention 404, got %q", fe.Error())
		}
	})

	t.Run("pdf body is not read", func(t *testing.T) {
		t.Parallel()

		resp, err := newFetcher(t).Fetch(context.Background(), server.URL+"/doc.pdf")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if !IsPDF(resp.ContentType) {
			t.Errorf("expected PDF content type, got %q", resp.ContentType)
		}
		if resp.Body != nil {
			t.Errorf("expected nil body for binary content, got %d bytes", len(resp.Body))
		}
	})

	t.Run("charset is decoded to utf-8", func(t *testing.T) {
		t.Parallel()

		resp, err := newFetcher(t).Fetch(context.Background(), server.URL+"/latin1")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if !strings.Contains(string(resp.Body), "café") {
			t.Errorf("expected decoded body, got %q", resp.Body)
		}
	})

	t.Run("redirect sets final url", func(t *testing.T) {
		t.Parallel()

		resp, err := newFetcher(t).Fetch(context.Background(), server.URL+"/redirect")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if resp.FinalURL != server.URL+"/page" {
			t.Errorf("expected final URL %s/page, got %s", server.URL, resp.FinalURL)
		}
	})

	t.Run("headers and cookie are sent", func(t *testing.T) {
		t.Parallel()

		f := newFetcher(t,
			WithUserAgent("test-agent"),
			WithCookie("session=abc"),
			WithHeaders(map[string]string{"X-Token": "t1"}),
		)
		resp, err := f.Fetch(context.Background(), server.URL+"/echo")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(resp.Body) != "test-agent|session=abc|t1" {
			t.Errorf("unexpected echo: %q", resp.Body)
		}
	})

	t.Run("default user agent", func(t *testing.T) {
		t.Parallel()

		resp, err := newFetcher(t).Fetch(context.Background(), server.URL+"/echo")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if !strings.HasPrefix(string(resp.Body), DefaultUserAgent+"|") {
			t.Errorf("expected default user agent, got %q", resp.Body)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()

		f := newFetcher(t, WithTimeout(100*time.Millisecond))
		_, err := f.Fetch(context.Background(), server.URL+"/slow")
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FetchError, got %v", err)
		}
		if fe.Kind != KindTimeout {
			t.Errorf("expected timeout kind, got %s", fe.Kind)
		}
	})

	t.Run("body size limit", func(t *testing.T) {
		t.Parallel()

		f := newFetcher(t, WithMaxBodySize(1024))
		resp, err := f.Fetch(context.Background(), server.URL+"/big")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(resp.Body) != 1024 {
			t.Errorf("expected body truncated to 1024 bytes, got %d", len(resp.Body))
		}
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		resp, err := newFetcher(t).Fetch(context.Background(), server.URL+"/empty")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if len(resp.Body) != 0 {
			t.Errorf("expected empty body, got %q", resp.Body)
		}
	})

	t.Run("connection refused is a network error", func(t *testing.T) {
		t.Parallel()

		closed := httptest.NewServer(http.NotFoundHandler())
		addr := closed.URL
		closed.Close()

		_, err := newFetcher(t).Fetch(context.Background(), addr)
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FetchError, got %v", err)
		}
		if fe.Kind != KindNetwork {
			t.Errorf("expected network kind, got %s", fe.Kind)
		}
	})
}

// TestNewTransport tests proxy URL handling.
func TestNewTransport(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		proxy   string
		wantErr bool
	}{
		{"no proxy", "", false},
		{"http proxy", "http://127.0.0.1:8080", false},
		{"socks5 proxy", "socks5://127.0.0.1:9050", false},
		{"socks5h proxy", "socks5h://127.0.0.1:9050", false},
		{"unsupported scheme", "ftp://127.0.0.1:21", true},
		{"missing host", "http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := newTransport(tt.proxy)
			if (err != nil) != tt.wantErr {
				t.Fatalf("newTransport(%q) error = %v, wantErr %v", tt.proxy, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidProxy) {
				t.Errorf("expected ErrInvalidProxy, got %v", err)
			}
		})
	}
}

// TestContentTypeHelpers tests media type classification.
func TestContentTypeHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		html        bool
		pdf         bool
		textual     bool
	}{
		{"text/html; charset=utf-8", true, false, true},
		{"TEXT/HTML", true, false, true},
		{"application/xhtml+xml", true, false, true},
		{"application/pdf", false, true, false},
		{"image/png", false, false, false},
		{"text/plain", false, false, true},
		{"", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			t.Parallel()
			if IsHTML(tt.contentType) != tt.html {
				t.Errorf("IsHTML(%q) = %v, want %v", tt.contentType, !tt.html, tt.html)
			}
			if IsPDF(tt.contentType) != tt.pdf {
				t.Errorf("IsPDF(%q) = %v, want %v", tt.contentType, !tt.pdf, tt.pdf)
			}
			if isTextual(tt.contentType) != tt.textual {
				t.Errorf("isTextual(%q) = %v, want %v", tt.contentType, !tt.textual, tt.textual)
			}
		})
	}
}

// TestNew tests backend selection.
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("static", func(t *testing.T) {
		t.Parallel()

		f, err := New(ModeStatic, Options{})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		defer f.Close()
		if _, ok := f.(*StaticFetcher); !ok {
			t.Errorf("expected *StaticFetcher, got %T", f)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		t.Parallel()

		_, err := New(Mode("carrier-pigeon"), Options{})
		if !errors.Is(err, ErrUnknownMode) {
			t.Errorf("expected ErrUnknownMode, got %v", err)
		}
	})

	t.Run("rendered without browser fails fast", func(t *testing.T) {
		t.Parallel()

		missing := filepath.Join(t.TempDir(), "no-such-chrome")
		_, err := New(ModeRendered, Options{ExecPath: missing})
		if !errors.Is(err, ErrBrowserUnavailable) {
			t.Errorf("expected ErrBrowserUnavailable, got %v", err)
		}
	})
}

// findChrome returns a Chrome executable on PATH, or an empty string.
func findChrome() string {
	for _, name := range []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

// TestRenderedFetcher exercises the browser backend when Chrome is installed.
func TestRenderedFetcher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	chrome := findChrome()
	if chrome == "" {
		t.Skip("no Chrome or Chromium binary found")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><div id="app"></div>
<script>document.getElementById("app").innerHTML = '<a href="/rendered">JS link</a>';</script>
</body></html>`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusGone)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	f, err := NewRenderedFetcher(WithExecPath(chrome), WithSettleDelay(200*time.Millisecond))
	if err != nil {
		t.Skipf("browser could not start: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })

	t.Run("script output is rendered", func(t *testing.T) {
		resp, err := f.Fetch(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if !strings.Contains(string(resp.Body), `href="/rendered"`) {
			t.Errorf("expected script-inserted link in body, got %s", resp.Body)
		}
		if !IsHTML(resp.ContentType) {
			t.Errorf("expected HTML content type, got %q", resp.ContentType)
		}
	})

	t.Run("status 410 is an http-status error", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), server.URL+"/gone")
		var fe *FetchError
		if !errors.As(err, &fe) || fe.StatusCode != http.StatusGone {
			t.Errorf("expected http-status 410 error, got %v", err)
		}
	})

	t.Run("close is idempotent", func(t *testing.T) {
		_ = f.Close()
		_ = f.Close()
	})
}

// TestWithRenderProxy tests the proxy scheme handed to Chrome.
func TestWithRenderProxy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"http://127.0.0.1:8080", "http://127.0.0.1:8080"},
		{"socks5://127.0.0.1:9050", "socks5://127.0.0.1:9050"},
		{"socks5h://127.0.0.1:9050", "socks5://127.0.0.1:9050"},
	}

	for _, tt := range tests {
		f := &RenderedFetcher{}
		WithRenderProxy(tt.in)(f)
		if f.proxy != tt.want {
			t.Errorf("WithRenderProxy(%q): expected %q, got %q", tt.in, tt.want, f.proxy)
		}
	}
}
