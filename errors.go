package tierkv

import "errors"

// Sentinel errors returned by engine operations. Wrap-aware: test with
// errors.Is.
var (
	// ErrNoSpace is returned when a cascading compaction reaches the
	// deepest level and finds it full. The tree does not auto-grow;
	// reopen with a larger depth or fanout.
	ErrNoSpace = errors.New("tierkv: no more space in tree")

	// ErrDBClosed is returned by operations on a closed engine.
	ErrDBClosed = errors.New("tierkv: database is closed")
)
