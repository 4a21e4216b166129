package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// bannerWidth is the width of the "=" rules around banners.
const bannerWidth = 60

// Progress writes human-readable crawl progress lines.
//
// Design decision: Progress is separate from the slog logger because:
//  1. Progress lines are the tool's normal output, not diagnostics
//  2. They go to stdout while logs go to stderr
//  3. --quiet silences progress without hiding warnings
type Progress struct {
	mu    sync.Mutex
	w     io.Writer
	quiet bool
}

// NewProgress creates a Progress writer. When quiet is true nothing is written.
// A nil writer behaves like quiet.
func NewProgress(w io.Writer, quiet bool) *Progress {
	return &Progress{w: w, quiet: quiet || w == nil}
}

// Discard returns a Progress that writes nothing.
func Discard() *Progress {
	return NewProgress(nil, true)
}

// Printf writes one formatted progress line. A trailing newline is added.
// A nil *Progress is silent.
func (p *Progress) Printf(format string, args ...any) {
	if p == nil || p.quiet {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintf(p.w, format+"\n", args...)
}

// Banner writes a title followed by aligned "label: value" rows between rules.
func (p *Progress) Banner(title string, rows [][2]string) {
	if p == nil || p.quiet {
		return
	}

	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}

	rule := strings.Repeat("=", bannerWidth)

	var sb strings.Builder
	fmt.Fprintf(&sb, "\n%s\n  %s\n", rule, title)
	for _, r := range rows {
		fmt.Fprintf(&sb, "  %-*s %s\n", width+1, r[0]+":", r[1])
	}
	fmt.Fprintf(&sb, "%s\n", rule)

	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = io.WriteString(p.w, sb.String())
}

// Quiet reports whether output is suppressed.
func (p *Progress) Quiet() bool {
	return p == nil || p.quiet
}
