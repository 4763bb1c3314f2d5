// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Video metadata related constructs.

package video

import (
	"context"
	"fmt"
)

// DefaultFPS is used when the diagnostic output of a video stream carries no explicit
// frame rate.
const DefaultFPS = 30.0

// Metadata type contains useful video metadata.
//
// Width and Height are display dimensions, i.e. already corrected for Rotate.
type Metadata struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FPS      float64 `json:"fps"`
	Rotate   int     `json:"rotate"`
	HasAudio bool    `json:"has_audio"`
}

// Validate checks that Metadata carries usable timing information: both duration and
// frame rate must be positive.
func (m Metadata) Validate() error {
	if !(m.Duration > 0) {
		return fmt.Errorf("duration %v: %w", m.Duration, ErrInvalidMedia)
	}
	if !(m.FPS > 0) {
		return fmt.Errorf("fps %v: %w", m.FPS, ErrInvalidMedia)
	}
	return nil
}

// MaxDimension returns the longer edge of the displayed picture.
func (m Metadata) MaxDimension() int {
	if m.Width > m.Height {
		return m.Width
	}
	return m.Height
}

// ExpectedFrames is the number of frames the source is expected to yield at its own
// frame rate. Used as a progress denominator only.
func (m Metadata) ExpectedFrames() float64 {
	return m.Duration * m.FPS
}

// MetadataExtractor is the interface that wraps ExtractMetadata method.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, videoFile string) (Metadata, error)
}
