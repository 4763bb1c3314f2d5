// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"errors"
	"os"
	"path"
	"testing"

	"github.com/evolution-gaming/framestrip/internal/video"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rotatedClipDiagnostics = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'clip.mp4':
  Metadata:
    major_brand     : qt
    creation_time   : 2022-05-11T09:12:45.000000Z
  Duration: 00:00:10.00, start: 0.000000, bitrate: 9812 kb/s
    Stream #0:0(und): Video: h264 (High) (avc1 / 0x31637661), yuv420p(tv, bt709), 1080x1920, 9680 kb/s, 30 fps, 30 tbr, 600 tbn, 60 tbc (default)
    Metadata:
      rotate          : 90
      creation_time   : 2022-05-11T09:12:45.000000Z
      handler_name    : Core Media Video
    Side data:
      displaymatrix: rotation of -90.00 degrees
    Stream #0:1(und): Audio: aac (LC) (mp4a / 0x6134706D), 44100 Hz, mono, fltp, 96 kb/s (default)
At least one output file must be specified`

// fixFakeFfmpeg fixture creates ffmpeg stand-in that prints given text to stderr and
// exits with given status.
func fixFakeFfmpeg(t *testing.T, stderr string, exitCode string) string {
	script := "#!/bin/sh\ncat >&2 <<'EOF'\n" + stderr + "\nEOF\nexit " + exitCode + "\n"
	p := path.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(p, []byte(script), 0o755))
	return p
}

// fixInputFile fixture provides an existing (fake) input video.
func fixInputFile(t *testing.T) string {
	p := path.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(p, []byte("not really a video"), 0o644))
	return p
}

func Test_Ffmpeg_ExtractMetadata(t *testing.T) {
	input := fixInputFile(t)

	t.Run("Should parse diagnostics despite non-zero exit", func(t *testing.T) {
		f := NewFfmpeg(fixFakeFfmpeg(t, rotatedClipDiagnostics, "1"))

		got, err := f.ExtractMetadata(context.Background(), input)
		require.NoError(t, err)

		want := video.Metadata{Duration: 10, Width: 1920, Height: 1080, FPS: 30, Rotate: 90, HasAudio: true}
		assert.Equal(t, want, got)
	})

	t.Run("Should parse diagnostics on zero exit", func(t *testing.T) {
		f := NewFfmpeg(fixFakeFfmpeg(t, rotatedClipDiagnostics, "0"))

		got, err := f.ExtractMetadata(context.Background(), input)
		require.NoError(t, err)
		assert.Equal(t, 90, got.Rotate)
	})
}

func Test_Ffmpeg_ExtractMetadata_Negative(t *testing.T) {
	input := fixInputFile(t)

	t.Run("Should fail for non-existent media file", func(t *testing.T) {
		f := NewFfmpeg(fixFakeFfmpeg(t, rotatedClipDiagnostics, "1"))
		_, err := f.ExtractMetadata(context.Background(), "/non/existent/path/to/file")
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("Should fail with InvalidMedia for output without duration", func(t *testing.T) {
		f := NewFfmpeg(fixFakeFfmpeg(t, "clip.mp4: Invalid data found when processing input", "1"))
		_, err := f.ExtractMetadata(context.Background(), input)
		assert.ErrorIs(t, err, video.ErrInvalidMedia)
	})

	t.Run("Should fail with LaunchError for missing binary", func(t *testing.T) {
		f := NewFfmpeg("/non/existent/ffmpeg")
		_, err := f.ExtractMetadata(context.Background(), input)

		var le *LaunchError
		require.True(t, errors.As(err, &le), "Expecting LaunchError, got %T", err)
		assert.Equal(t, "/non/existent/ffmpeg", le.Tool)
	})

	t.Run("Should fail on canceled context", func(t *testing.T) {
		f := NewFfmpeg(fixFakeFfmpeg(t, rotatedClipDiagnostics, "1"))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.ExtractMetadata(ctx, input)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
