// Package iox provides I/O helpers for resource cleanup and bounded reads.
package iox

import (
	"errors"
	"io"
)

// ErrLimitExceeded is returned by ReadAllLimit when the source holds more
// than the allowed number of bytes.
var ErrLimitExceeded = errors.New("read limit exceeded")

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(resp.Body)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c.
// Designed for t.Cleanup registration:
//
//	t.Cleanup(iox.CloseFunc(hub))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
// Use for non-Close cleanup calls (e.g. Flush) where errors are unactionable:
//
//	defer iox.DiscardErr(w.Flush)
func DiscardErr(fn func() error) { _ = fn() }

// ReadAllLimit reads r to EOF, failing with ErrLimitExceeded once more than
// limit bytes have been seen.
func ReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrLimitExceeded
	}
	return data, nil
}
