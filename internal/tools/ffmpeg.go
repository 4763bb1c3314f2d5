// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Ffmpeg family related tools.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/evolution-gaming/framestrip/internal/logging"
	"github.com/evolution-gaming/framestrip/internal/lw"
	"github.com/evolution-gaming/framestrip/internal/video"
)

// Upper bound for captured diagnostic output of a single probe.
const diagnosticsBufferSize = 5 * 1024 * 1024

// LaunchError is returned when an external tool could not be started at all.
type LaunchError struct {
	Tool string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Tool, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// Make sure Ffmpeg implements video.MetadataExtractor interface.
var _ video.MetadataExtractor = (*Ffmpeg)(nil)

// Ffmpeg extracts video metadata from ffmpeg's input summary.
type Ffmpeg struct {
	// Path to ffmpeg executable
	Path string
}

// NewFfmpeg creates Ffmpeg for given executable path.
func NewFfmpeg(exePath string) *Ffmpeg {
	return &Ffmpeg{Path: exePath}
}

// ExtractMetadata will query video file metadata via "ffmpeg -hide_banner -i".
//
// Without an output file ffmpeg always exits with non-zero status, so exit status is
// ignored and the diagnostic stream is parsed regardless.
func (f *Ffmpeg) ExtractMetadata(ctx context.Context, videoFile string) (video.Metadata, error) {
	var vmeta video.Metadata

	if _, err := os.Stat(videoFile); err != nil {
		return vmeta, fmt.Errorf("ExtractMetadata() os.Stat: %w", err)
	}

	var buf bytes.Buffer
	out := lw.LimitWriter(&buf, diagnosticsBufferSize)

	cmd := exec.CommandContext(ctx, f.Path, "-hide_banner", "-i", videoFile) //#nosec G204
	cmd.Stdout = out
	cmd.Stderr = out
	logging.Debugf("Running: %s", cmd)

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return vmeta, fmt.Errorf("ExtractMetadata() %s: %w", videoFile, ctxErr)
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return vmeta, &LaunchError{Tool: f.Path, Err: err}
	}

	vmeta, err = video.ParseDiagnostics(buf.String())
	if err != nil {
		logging.Debugf("Unparsable ffmpeg output for %s:\n%s", videoFile, buf.String())
		return vmeta, fmt.Errorf("ExtractMetadata() %s: %w", videoFile, err)
	}
	logging.Debugf("%s %+v", videoFile, vmeta)

	return vmeta, nil
}
