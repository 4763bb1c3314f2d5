// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lw_test

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"testing/quick"

	"github.com/evolution-gaming/framestrip/internal/lw"
	"github.com/stretchr/testify/assert"
)

func TestWritersImplementWriter(t *testing.T) {
	var _ io.Writer = &lw.LimitedWriter{}
	var _ io.Writer = lw.NewTailWriter(1)
}

func TestLimitedWriterProp(t *testing.T) {
	qCfg := &quick.Config{MaxCount: 1000}

	writerFixture := func(size uint) (io.Writer, *bytes.Buffer) {
		buf := &bytes.Buffer{}
		return lw.LimitWriter(buf, size), buf
	}

	t.Run("Written data to large enough buffer should be equal source data", func(t *testing.T) {
		fn := func(b []byte) bool {
			w, buf := writerFixture(uint(len(b)))
			n, err := w.Write(b)
			if err != nil {
				return false
			}
			return n == len(b) && bytes.Equal(b, buf.Bytes())
		}
		if err := quick.Check(fn, qCfg); err != nil {
			t.Error(err)
		}
	})

	t.Run("Multiple writes with buffer overflow", func(t *testing.T) {
		fn := func(b []byte, c uint8) bool {
			if len(b) == 0 {
				return true
			}
			w, _ := writerFixture(uint(len(b) * int(c)))
			for i := c; i > 0; i-- {
				if n, err := w.Write(b); err != nil || n == 0 {
					return false
				}
			}
			// This next write should overflow.
			n, err := w.Write(b)
			return errors.Is(err, lw.ErrLimitedWriterOverflow) && n == 0
		}
		if err := quick.Check(fn, qCfg); err != nil {
			t.Error(err)
		}
	})
}

func TestTailWriterProp(t *testing.T) {
	qCfg := &quick.Config{MaxCount: 1000}

	t.Run("Retained data is the suffix of everything written", func(t *testing.T) {
		fn := func(chunks [][]byte, size uint8) bool {
			w := lw.NewTailWriter(int(size))
			var all []byte
			for _, c := range chunks {
				n, err := w.Write(c)
				if err != nil || n != len(c) {
					return false
				}
				all = append(all, c...)
			}
			want := all
			if len(want) > int(size) {
				want = want[len(want)-int(size):]
			}
			return bytes.Equal(want, w.Bytes())
		}
		if err := quick.Check(fn, qCfg); err != nil {
			t.Error(err)
		}
	})
}

func TestTailWriter(t *testing.T) {
	w := lw.NewTailWriter(8)
	_, _ = w.Write([]byte("frame=1\n"))
	_, _ = w.Write([]byte("Conversion failed!\n"))

	assert.Equal(t, "failed!\n", w.String())
	assert.Len(t, w.Bytes(), 8)
}
