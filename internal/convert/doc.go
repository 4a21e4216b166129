// Package convert turns crawled HTML pages into Markdown files.
//
// Conversion runs in three stages:
//  1. Pick the main content region of the page (main, article, a content
//     div, or body) so navigation chrome is not repeated in every file
//  2. Strip boilerplate elements such as nav, footer, scripts and forms
//  3. Render the region with html-to-markdown and prepend a provenance
//     header naming the page title and its source URL
//
// File names are derived deterministically from page URLs (see Filename),
// so re-crawling a site overwrites the previous Markdown instead of piling
// up copies.
package convert
