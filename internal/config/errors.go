package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() while the user still gets a readable message.
var (
	// ErrNoTarget is returned when no start URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one start URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelay is returned when the request delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidSettleDelay is returned when the render settle delay is negative.
	ErrInvalidSettleDelay = errors.New("invalid settle delay: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingModes is returned when --dry-run and --pdfs-only are both set.
	ErrConflictingModes = errors.New("conflicting modes: --dry-run and --pdfs-only cannot be used together")

	// ErrInvalidFetchMode is returned for a fetch mode other than static or rendered.
	ErrInvalidFetchMode = errors.New("invalid fetch mode: must be static or rendered")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFlags is returned when --report and --no-report are both set.
	ErrConflictingReportFlags = errors.New("conflicting report flags: --report and --no-report cannot be used together")

	// ErrConflictingProxy is returned when --tor and --proxy are both set.
	ErrConflictingProxy = errors.New("conflicting proxy flags: --tor and --proxy cannot be used together")

	// ErrInvalidTorTimeout is returned when the Tor startup timeout is not positive.
	ErrInvalidTorTimeout = errors.New("invalid Tor startup timeout: must be positive")
)
