// Package database provides the SQLite-based crawl history for crawlmd.
//
// Every finished run can be archived with its summary counters and all of
// its log entries. The history is write-once: it is listed and inspected
// by the history command but never read back to resume a crawl.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. The database is a single file under the XDG data directory
// 2. The CGO-free driver keeps cross-compilation simple
// 3. WAL mode lets concurrent batch runs write without blocking readers
package database
