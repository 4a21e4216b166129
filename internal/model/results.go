package model

// URLError pairs a URL with the error recorded for it.
type URLError struct {
	URL     string `json:"url"`
	Message string `json:"message"`
}

// CrawlResults is the summary of a crawl run.
//
// Design decision: CrawlResults is derived from the crawl log rather than
// maintained alongside it because:
//  1. The log is the single source of truth for what happened
//  2. Counters kept separately drift when new code paths are added
//  3. History records can rebuild the summary from stored entries
type CrawlResults struct {
	// PagesFound is the number of distinct HTML pages crawled.
	PagesFound int `json:"pages_found"`

	// PagesCrawled is the number of "crawled" page entries.
	PagesCrawled int `json:"pages_crawled"`

	// PDFsFound is the number of distinct PDF URLs seen.
	PDFsFound int `json:"pdfs_found"`

	// PDFsDownloaded is the number of PDFs written to disk.
	PDFsDownloaded int `json:"pdfs_downloaded"`

	// PDFFiles lists the paths of downloaded PDFs.
	PDFFiles []string `json:"pdf_files"`

	// MarkdownFiles lists the paths of saved Markdown files.
	MarkdownFiles []string `json:"md_files"`

	// Errors lists every recorded failure.
	Errors []URLError `json:"errors"`
}

// NewCrawlResults computes the summary for the given entries.
func NewCrawlResults(entries []CrawlLogEntry) *CrawlResults {
	r := &CrawlResults{
		PDFFiles:      make([]string, 0),
		MarkdownFiles: make([]string, 0),
		Errors:        make([]URLError, 0),
	}

	pages := make(map[string]struct{})
	pdfs := make(map[string]struct{})

	for _, e := range entries {
		switch e.Type {
		case EntryTypePage:
			if e.Status == StatusCrawled {
				r.PagesCrawled++
				pages[e.URL] = struct{}{}
				if e.SavedAs != "" {
					r.MarkdownFiles = append(r.MarkdownFiles, e.SavedAs)
				}
			}
		case EntryTypePDF:
			pdfs[e.URL] = struct{}{}
			if e.Status == StatusDownloaded {
				r.PDFsDownloaded++
				r.PDFFiles = append(r.PDFFiles, e.SavedAs)
			}
		}

		if e.IsError() {
			r.Errors = append(r.Errors, URLError{URL: e.URL, Message: e.Error})
		}
	}

	r.PagesFound = len(pages)
	r.PDFsFound = len(pdfs)

	return r
}

// HasErrors reports whether any failure was recorded.
func (r *CrawlResults) HasErrors() bool {
	return len(r.Errors) > 0
}
