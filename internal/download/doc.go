// Package download saves PDF documents discovered during a crawl.
//
// A Downloader streams each document to disk in fixed-size chunks. The
// file name comes from the last URL path segment, decoded once, with
// ".pdf" enforced. When the name is taken, "_1", "_2" and so on are
// tried before the extension; names are reserved with O_EXCL so two runs
// sharing a directory never overwrite each other. A failed download
// leaves no partial file behind.
package download
