package convert

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/markdown"
)

// ErrParseHTML is returned when a page body cannot be parsed.
var ErrParseHTML = errors.New("failed to parse HTML")

// contentSelectors lists the candidate main-content regions in priority order.
// The first selector that matches wins.
var contentSelectors = []string{
	"main",
	"article",
	`div[role="main"]`,
}

// contentClassPattern matches the class attribute of a generic content div.
// It is tried after contentSelectors and before falling back to <body>.
var contentClassPattern = regexp.MustCompile(`(?i)content|main|article|post`)

// strippedTags are removed from the content region before rendering.
// Images are listed here because the renderer has its own img rule that
// Converter.Remove does not override.
var strippedTags = []string{
	"nav", "header", "footer", "aside",
	"script", "style", "noscript", "form",
	"img", "picture",
}

// strippedSelectors are class selectors for common boilerplate blocks.
var strippedSelectors = []string{
	".sidebar", ".nav", ".menu", ".breadcrumb",
	".pagination", ".footer", ".header",
}

// blankLines matches three or more consecutive newlines.
var blankLines = regexp.MustCompile(`\n{3,}`)

// Converter renders HTML pages as Markdown.
//
// Design decision: We select and clean the content region with goquery and
// hand only that selection to html-to-markdown because:
//  1. Cleaning the tree first keeps the renderer configuration simple
//  2. goquery selectors express the region rules directly
//  3. html-to-markdown accepts a *goquery.Selection without re-parsing
type Converter struct {
	renderer *md.Converter
}

// NewConverter creates a Converter with ATX headings, "-" bullets and
// images removed.
func NewConverter() *Converter {
	renderer := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
	})

	return &Converter{renderer: renderer}
}

// Convert renders an HTML page as Markdown with a provenance header.
//
// It returns an empty string when the page has no content left after
// cleaning; callers should not write a file in that case.
func (c *Converter) Convert(body []byte, pageURL string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrParseHTML, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())

	region := contentRegion(doc)
	stripBoilerplate(region)

	content := c.renderer.Convert(region)
	content = strings.TrimSpace(blankLines.ReplaceAllString(content, "\n\n"))
	if content == "" {
		return "", nil
	}

	return header(title, pageURL) + content + "\n", nil
}

// contentRegion returns the first matching main-content candidate.
func contentRegion(doc *goquery.Document) *goquery.Selection {
	for _, sel := range contentSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			return s
		}
	}

	div := doc.Find("div[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		return contentClassPattern.MatchString(class)
	}).First()
	if div.Length() > 0 {
		return div
	}

	if body := doc.Find("body").First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// stripBoilerplate removes navigation and non-content elements in place.
func stripBoilerplate(region *goquery.Selection) {
	region.Find(strings.Join(strippedTags, ", ")).Remove()
	region.Find(strings.Join(strippedSelectors, ", ")).Remove()
}

// header builds the "# title" and "> Source: url" lines that start every
// Markdown file. A page without a title uses its URL path instead.
func header(title, pageURL string) string {
	if title == "" {
		title = titleFromURL(pageURL)
	}

	var buf bytes.Buffer
	doc := markdown.NewMarkdown(&buf)
	doc.H1(title).
		PlainText("").
		Blockquote("Source: " + pageURL).
		PlainText("")

	return strings.TrimRight(doc.String(), "\n") + "\n\n"
}

// titleFromURL falls back to the URL path, or the host for the root page.
func titleFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	if p := strings.Trim(u.Path, "/"); p != "" {
		return p
	}
	if u.Host != "" {
		return u.Host
	}
	return pageURL
}
