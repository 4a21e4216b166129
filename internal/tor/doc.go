// Package tor lets crawlmd reach onion services.
//
// Daemon starts a private Tor process through tornago and exposes its SOCKS
// port as a socks5h:// proxy URL, which the static fetcher, the PDF
// downloader and the rendered backend all accept. ValidateHost checks onion
// start URLs before any connection is attempted.
package tor
