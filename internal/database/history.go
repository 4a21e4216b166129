package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/crawlmd/internal/model"
)

// FileName is the name of the history database inside its directory.
const FileName = "crawlmd.db"

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("crawl run not found")

// HistoryDB provides SQLite-based storage for finished crawl runs.
//
// Design decision: We store one row per run plus one row per log entry
// rather than a single JSON blob, so the history command can list runs
// without loading every entry.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so batch crawls finishing
	// together do not block readers.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Path returns the database file path for a directory.
func Path(dbDir string) string {
	return filepath.Join(dbDir, FileName)
}

// Open opens or creates a HistoryDB in the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := Path(dbDir)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a new file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the path of the open database file.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		start_url TEXT NOT NULL,
		domain TEXT NOT NULL,
		mode TEXT NOT NULL,
		fetcher TEXT,
		output_dir TEXT,
		report_path TEXT,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		pages_found INTEGER DEFAULT 0,
		pages_crawled INTEGER DEFAULT 0,
		pdfs_found INTEGER DEFAULT 0,
		pdfs_downloaded INTEGER DEFAULT 0,
		md_files INTEGER DEFAULT 0,
		errors INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_domain ON runs(domain);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		url TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		depth INTEGER NOT NULL,
		title TEXT,
		pdf_links_count INTEGER DEFAULT 0,
		found_on TEXT,
		saved_as TEXT,
		size_kb REAL DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id, seq);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary is a stored run without its entries.
type RunSummary struct {
	ID             int64
	Target         string
	StartURL       string
	Domain         string
	Mode           model.Mode
	Fetcher        string
	OutputDir      string
	ReportPath     string
	StartedAt      time.Time
	FinishedAt     time.Time
	PagesFound     int
	PagesCrawled   int
	PDFsFound      int
	PDFsDownloaded int
	MarkdownFiles  int
	Errors         int
	Error          string
}

// SaveRun stores a finished run and all of its log entries in one
// transaction. It returns the new run ID.
func (h *HistoryDB) SaveRun(ctx context.Context, run *model.CrawlRun) (id int64, err error) {
	res := run.Results
	if res == nil {
		res = model.NewCrawlResults(run.Entries)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() //nolint:errcheck // the original error is more useful
		}
	}()

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (target, start_url, domain, mode, fetcher, output_dir, report_path,
		started_at, finished_at, pages_found, pages_crawled, pdfs_found, pdfs_downloaded,
		md_files, errors, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Target,
		run.StartURL,
		run.Domain,
		string(run.Mode),
		run.Fetcher,
		run.OutputDir,
		run.ReportPath,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		res.PagesFound,
		res.PagesCrawled,
		res.PDFsFound,
		res.PDFsDownloaded,
		len(res.MarkdownFiles),
		len(res.Errors),
		run.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO entries (run_id, seq, url, type, status, depth, title, pdf_links_count,
		found_on, saved_as, size_kb, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range run.Entries {
		if _, err = stmt.ExecContext(ctx,
			id, i, e.URL, string(e.Type), string(e.Status), e.Depth, e.Title,
			e.PDFLinksCount, e.FoundOn, e.SavedAs, e.SizeKB, e.Error,
		); err != nil {
			return 0, fmt.Errorf("failed to save entry %s: %w", e.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

const runColumns = `id, target, start_url, domain, mode, fetcher, output_dir, report_path,
	started_at, finished_at, pages_found, pages_crawled, pdfs_found, pdfs_downloaded,
	md_files, errors, error`

// ListRuns returns stored runs, newest first. An empty domain lists every
// run. A limit of zero or less returns all matching runs.
func (h *HistoryDB) ListRuns(ctx context.Context, domain string, limit int) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY started_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}

	return runs, rows.Err()
}

// GetRun returns one stored run by ID, or ErrRunNotFound.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*RunSummary, error) {
	row := h.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	return r, err
}

// GetEntries returns the log entries of a run in their original order.
func (h *HistoryDB) GetEntries(ctx context.Context, runID int64) ([]model.CrawlLogEntry, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT url, type, status, depth, title, pdf_links_count, found_on, saved_as, size_kb, error
	FROM entries
	WHERE run_id = ?
	ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get entries: %w", err)
	}
	defer rows.Close()

	entries := make([]model.CrawlLogEntry, 0)
	for rows.Next() {
		var (
			e                                 model.CrawlLogEntry
			typ, status                       string
			title, foundOn, savedAs, errorMsg sql.NullString
		)
		if err := rows.Scan(&e.URL, &typ, &status, &e.Depth, &title, &e.PDFLinksCount,
			&foundOn, &savedAs, &e.SizeKB, &errorMsg); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.Type = model.EntryType(typ)
		e.Status = model.EntryStatus(status)
		e.Title = title.String
		e.FoundOn = foundOn.String
		e.SavedAs = savedAs.String
		e.Error = errorMsg.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun reads one runs row selected with runColumns.
func scanRun(s rowScanner) (*RunSummary, error) {
	var (
		r                                  RunSummary
		mode, started, finished            string
		fetcher, outputDir, report, errMsg sql.NullString
	)
	err := s.Scan(&r.ID, &r.Target, &r.StartURL, &r.Domain, &mode, &fetcher, &outputDir, &report,
		&started, &finished, &r.PagesFound, &r.PagesCrawled, &r.PDFsFound, &r.PDFsDownloaded,
		&r.MarkdownFiles, &r.Errors, &errMsg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	r.Mode = model.Mode(mode)
	r.Fetcher = fetcher.String
	r.OutputDir = outputDir.String
	r.ReportPath = report.String
	r.Error = errMsg.String
	r.StartedAt = parseTimestamp(started)
	r.FinishedAt = parseTimestamp(finished)
	return &r, nil
}

// storeLayout is fixed-width so stored timestamps sort lexically.
const storeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp stores times as sortable UTC text.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storeLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
