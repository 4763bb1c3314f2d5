// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Bounded io.Writer implementations for capturing subprocess output.
//
// LimitedWriter is a symmetrical implementation to io.LimitedReader: it fails once the
// limit would be exceeded. TailWriter never fails and keeps only the most recent bytes.
package lw

import (
	"errors"
	"io"
	"sync"
)

var ErrLimitedWriterOverflow = errors.New("LimitedWriter overflow")

type LimitedWriter struct {
	// Apply limits to this Writer
	W io.Writer
	// Remaining byte budget
	N uint
}

// Write implements io.Writer for *LimitedWriter.
func (s *LimitedWriter) Write(b []byte) (int, error) {
	if uint(len(b)) > s.N {
		return 0, ErrLimitedWriterOverflow
	}
	n, err := s.W.Write(b)
	s.N -= uint(n)
	return n, err
}

func LimitWriter(w io.Writer, n uint) io.Writer {
	return &LimitedWriter{w, n}
}

// TailWriter retains the last Size bytes written to it.
//
// Safe for concurrent use, exec.Cmd may copy stdout and stderr from separate goroutines
// into the same writer.
type TailWriter struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

// NewTailWriter creates TailWriter keeping at most size bytes.
func NewTailWriter(size int) *TailWriter {
	return &TailWriter{size: size, buf: make([]byte, 0, size)}
}

// Write implements io.Writer for *TailWriter.
func (t *TailWriter) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := len(b)
	if n >= t.size {
		t.buf = append(t.buf[:0], b[n-t.size:]...)
		return n, nil
	}
	if overflow := len(t.buf) + n - t.size; overflow > 0 {
		t.buf = append(t.buf[:0], t.buf[overflow:]...)
	}
	t.buf = append(t.buf, b...)
	return n, nil
}

// Bytes returns a copy of retained data.
func (t *TailWriter) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]byte, len(t.buf))
	copy(out, t.buf)
	return out
}

func (t *TailWriter) String() string {
	return string(t.Bytes())
}
