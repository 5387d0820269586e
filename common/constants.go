package common

import "time"

// pageSize is variable only so that tests can shrink pages to force
// splits and evictions with small datasets. Production code never
// changes it.
var pageSize = 4096

const (
	// DefaultPoolSize is the number of frames the buffer pool keeps
	// resident when no explicit capacity is given.
	DefaultPoolSize = 50

	// StringFixedLength is the padded width of every string field.
	StringFixedLength = 128
)

// LockTimeout is how long a transaction polls for a page lock before
// it is aborted as a presumed deadlock participant.
var LockTimeout = time.Second * 10

// SetLockTimeoutForTest shortens the deadlock timeout so tests can
// exercise the abort path quickly.
func SetLockTimeoutForTest(d time.Duration) (restore func()) {
	old := LockTimeout
	LockTimeout = d
	return func() { LockTimeout = old }
}

func PageSize() int {
	return pageSize
}

// SetPageSizeForTest overrides the page size. Callers must restore the
// previous value when done; pages written under one size are not
// readable under another.
func SetPageSizeForTest(size int) (restore func()) {
	old := pageSize
	pageSize = size
	return func() { pageSize = old }
}
