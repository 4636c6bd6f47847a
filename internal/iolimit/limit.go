// Package iolimit caps how many bytes may be read from an io.Reader before
// the caller gives up on it. No other package in this module imports it;
// body, upload and CGI output limits are enforced elsewhere. It uses the same one-byte
// overread trick the teacher's maxBytesReader used to distinguish "exactly
// at the limit" from "over the limit" without reading past it.
package iolimit

import (
	"errors"
	"io"
)

// ErrTooLarge is returned once the reader has delivered its limit and the
// underlying source still has more to give.
var ErrTooLarge = errors.New("iolimit: content exceeds configured limit")

// Reader wraps r so that Read never yields more than a fixed budget of
// bytes, surfacing ErrTooLarge instead of silently truncating.
type Reader struct {
	r         io.Reader
	remaining int64
	err       error
}

// New wraps r with a budget of n bytes. Grounded on the teacher's
// maxBytesReader (cli/utils.go's companion in the now-deleted root http
// package), stripped of its requestTooLarger response-writer callback since
// this server reports the limit by returning an error up the call stack
// instead of mutating a live ResponseWriter.
func New(r io.Reader, n int64) *Reader {
	return &Reader{r: r, remaining: n}
}

func (l *Reader) Read(p []byte) (int, error) {
	if l.err != nil {
		return 0, l.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.r.Read(p)

	if int64(n) <= l.remaining {
		l.remaining -= int64(n)
		l.err = err
		return n, err
	}

	n = int(l.remaining)
	l.remaining = 0
	l.err = ErrTooLarge
	return n, l.err
}
