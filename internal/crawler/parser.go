package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts links and PDF references from HTML content.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because:
//  1. It correctly handles malformed HTML common on the web
//  2. Provides a proper DOM-like structure
//  3. A single tree walk collects links, PDF references and the title
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	// A <base href> element replaces it for the rest of the walk.
	baseURL *url.URL

	// baseSeen records whether a <base> element was already applied.
	// Only the first <base href> in a document counts.
	baseSeen bool
}

// ParseResult contains everything the crawler needs from one HTML page.
type ParseResult struct {
	// Title is the page title from the <title> tag.
	Title string

	// Links contains every <a href> target resolved to an absolute URL.
	// Links are deduplicated in first-seen order and are not normalized;
	// normalization happens in the Spider.
	Links []string

	// PDFLinks contains absolute URLs of PDF documents referenced by the
	// page: direct <a href> links plus <iframe>, <embed> and <object> embeds.
	PDFLinks []string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts links, PDF links and the title.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	c := newCollector()

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, c)
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return c.result, nil
}

// collector accumulates a ParseResult while keeping insertion order
// and dropping duplicates.
type collector struct {
	result   *ParseResult
	links    map[string]struct{}
	pdfLinks map[string]struct{}
}

func newCollector() *collector {
	return &collector{
		result: &ParseResult{
			Links:    make([]string, 0),
			PDFLinks: make([]string, 0),
		},
		links:    make(map[string]struct{}),
		pdfLinks: make(map[string]struct{}),
	}
}

func (c *collector) addLink(link string) {
	if _, ok := c.links[link]; ok {
		return
	}
	c.links[link] = struct{}{}
	c.result.Links = append(c.result.Links, link)
}

func (c *collector) addPDF(link string) {
	if _, ok := c.pdfLinks[link]; ok {
		return
	}
	c.pdfLinks[link] = struct{}{}
	c.result.PDFLinks = append(c.result.PDFLinks, link)
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, c *collector) {
	switch n.Data {
	case "base":
		if p.baseSeen {
			return
		}
		if href := strings.TrimSpace(getAttr(n, "href")); href != "" {
			if resolved, err := p.baseURL.Parse(href); err == nil {
				p.baseURL = resolved
				p.baseSeen = true
			}
		}

	case "title":
		// <title> inside inline SVG is not the document title
		if c.result.Title != "" || n.Namespace != "" {
			return
		}
		c.result.Title = strings.TrimSpace(textContent(n))

	case "a":
		href := strings.TrimSpace(getAttr(n, "href"))
		if href == "" {
			return
		}
		resolved := p.resolveURL(href)
		if resolved == "" {
			return
		}
		c.addLink(resolved)
		if IsPDFURL(href) {
			c.addPDF(resolved)
		}

	case "iframe", "embed", "object":
		src := strings.TrimSpace(getAttr(n, "src"))
		if src == "" && n.Data == "object" {
			src = strings.TrimSpace(getAttr(n, "data"))
		}
		if src == "" || !IsPDFURL(src) {
			return
		}
		if resolved := p.resolveURL(src); resolved != "" {
			c.addPDF(resolved)
		}
	}
}

// resolveURL resolves a relative URL against the current base URL.
// It returns an empty string for references that cannot be parsed.
func (p *Parser) resolveURL(href string) string {
	return Resolve(p.baseURL.String(), href)
}

// textContent concatenates the text nodes under n.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
