package logging

import "testing"

// NewTestLogger returns a debug-level logger for use in tests, matching the
// teacher's convention of threading a Logger into test setup rather than
// relying on package-level globals.
func NewTestLogger(tb testing.TB) Logger {
	return NewDebugLogger(tb.Name())
}
