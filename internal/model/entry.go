package model

// EntryType identifies what kind of resource a log entry describes.
type EntryType string

const (
	// EntryTypePage is an HTML page that was fetched (or failed to be fetched).
	EntryTypePage EntryType = "page"

	// EntryTypePDF is a PDF document, either served directly or linked from a page.
	EntryTypePDF EntryType = "pdf"
)

// EntryStatus is the terminal outcome recorded for a resource.
type EntryStatus string

const (
	// StatusCrawled means an HTML page was fetched and processed.
	StatusCrawled EntryStatus = "crawled"

	// StatusDownloaded means a PDF was written to disk.
	StatusDownloaded EntryStatus = "downloaded"

	// StatusFound means a PDF was discovered but not downloaded (dry run).
	StatusFound EntryStatus = "found"

	// StatusError means fetching or processing the resource failed.
	StatusError EntryStatus = "error"
)

// FoundOnDirect is the FoundOn value for PDFs detected by the response
// content type rather than by a link on a page.
const FoundOnDirect = "direct"

// CrawlTask is a unit of work in the frontier.
// Tasks are values: a task's depth never changes after it is created.
type CrawlTask struct {
	// URL is the normalized URL to fetch.
	URL string `json:"url"`

	// Depth is the number of link hops from the start URL.
	Depth int `json:"depth"`
}

// CrawlLogEntry is one row of the crawl log.
// Field order matches the report column order.
type CrawlLogEntry struct {
	// URL is the normalized URL of the resource.
	URL string `json:"url"`

	// Type is page or pdf.
	Type EntryType `json:"type"`

	// Status is the terminal outcome.
	Status EntryStatus `json:"status"`

	// Depth is the depth of the task that produced the entry.
	// PDFs discovered on a page share the page's depth.
	Depth int `json:"depth"`

	// Title is the page <title>. Empty for PDFs and errors.
	Title string `json:"title"`

	// PDFLinksCount is the number of PDF links found on a crawled page.
	PDFLinksCount int `json:"pdf_links_count"`

	// FoundOn is the page a PDF was discovered on, or "direct".
	FoundOn string `json:"found_on"`

	// SavedAs is the path of the written Markdown or PDF file, if any.
	SavedAs string `json:"saved_as"`

	// SizeKB is the size of a downloaded PDF in kilobytes.
	// Only meaningful when Status is StatusDownloaded.
	SizeKB float64 `json:"size_kb,omitempty"`

	// Error holds the error message for StatusError entries.
	Error string `json:"error"`
}

// HasSize reports whether SizeKB carries a value.
func (e CrawlLogEntry) HasSize() bool {
	return e.Type == EntryTypePDF && e.Status == StatusDownloaded
}

// IsError reports whether the entry records a failure.
func (e CrawlLogEntry) IsError() bool {
	return e.Status == StatusError
}

// CrawlLog is the append-only, ordered record of a crawl run.
//
// Ordering convention: PDFs discovered on a page are appended before
// the page's own "crawled" entry.
type CrawlLog struct {
	entries []CrawlLogEntry
}

// NewCrawlLog creates an empty crawl log.
func NewCrawlLog() *CrawlLog {
	return &CrawlLog{entries: make([]CrawlLogEntry, 0)}
}

// Append adds an entry to the end of the log.
func (l *CrawlLog) Append(entry CrawlLogEntry) {
	l.entries = append(l.entries, entry)
}

// Entries returns a copy of the recorded entries in order.
func (l *CrawlLog) Entries() []CrawlLogEntry {
	out := make([]CrawlLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *CrawlLog) Len() int {
	return len(l.entries)
}
