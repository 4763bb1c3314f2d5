// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package transcode

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/shlex"
)

const (
	audioDirName   = "audio"
	audioFileName  = "audio.mp3"
	imageDirName   = "image"
	imageFileExt   = ".jpg"
	imagePattern   = "%d" + imageFileExt
	DefaultBitrate = "128k"
	DefaultQuality = 5
)

// Settings are ffmpeg related parameters shared by all transcodes of a Transcoder.
type Settings struct {
	// Path to ffmpeg executable
	FfmpegPath string
	// Audio bitrate, e.g. "128k"
	AudioBitrate string
	// JPEG quality scale (-q:v), 1 is best and 31 is worst
	ImageQuality int
	// Additional arguments inserted right before output file
	AudioExtraArgs []string
	ImageExtraArgs []string
}

// withDefaults fills in unset fields.
func (s Settings) withDefaults() Settings {
	if s.AudioBitrate == "" {
		s.AudioBitrate = DefaultBitrate
	}
	if s.ImageQuality == 0 {
		s.ImageQuality = DefaultQuality
	}
	return s
}

// SplitArgs splits shell-like argument string, e.g. `-vsync vfr -metadata title="a b"`.
func SplitArgs(s string) ([]string, error) {
	args, err := shlex.Split(s)
	if err != nil {
		return nil, fmt.Errorf("split arguments %q: %w", s, err)
	}
	return args, nil
}

// RotationFilter returns the filter that turns encoded picture upright, including
// trailing comma so it can be prepended to the next filter. Rotation is taken modulo 360.
func RotationFilter(rotate int) string {
	switch ((rotate % 360) + 360) % 360 {
	case 90:
		return "transpose=1,"
	case 180:
		return "vflip,"
	case 270:
		return "transpose=2,"
	}
	return ""
}

// ScaleFilter fits picture into maxLength x maxLength box preserving aspect ratio.
func ScaleFilter(maxLength int) string {
	return fmt.Sprintf("scale=w=%d:h=%d:force_original_aspect_ratio=decrease", maxLength, maxLength)
}

// MaxLength returns the long edge target size.
//
// Quality caps the long edge, it never upscales beyond original size. Without quality
// original size is preserved.
func MaxLength(quality, width, height int) int {
	orig := width
	if height > orig {
		orig = height
	}
	if quality > 0 && (orig == 0 || quality < orig) {
		return quality
	}
	return orig
}

// AudioArgs builds audio extraction stage arguments.
func AudioArgs(s Settings, input, outRoot string) []string {
	args := []string{
		"-y",
		"-i", input,
		"-vn",
		"-ab", s.AudioBitrate,
	}
	args = append(args, s.AudioExtraArgs...)
	return append(args, AudioFile(outRoot))
}

// ImageArgs builds image sequence extraction stage arguments.
func ImageArgs(s Settings, input, outRoot string, fps float64, rotate, maxLength int) []string {
	args := []string{
		"-y",
		"-i", input,
		"-q:v", strconv.Itoa(s.ImageQuality),
		"-r", strconv.FormatFloat(fps, 'f', -1, 64),
		"-threads", "0",
		"-vf", RotationFilter(rotate) + ScaleFilter(maxLength),
	}
	args = append(args, s.ImageExtraArgs...)
	return append(args, filepath.Join(ImageDir(outRoot), imagePattern))
}

// AudioDir is the audio stage output directory under origin root.
func AudioDir(outRoot string) string {
	return filepath.Join(outRoot, audioDirName)
}

// AudioFile is the extracted audio track path under origin root.
func AudioFile(outRoot string) string {
	return filepath.Join(AudioDir(outRoot), audioFileName)
}

// ImageDir is the image stage output directory under origin root.
func ImageDir(outRoot string) string {
	return filepath.Join(outRoot, imageDirName)
}

// FramePath returns path of n-th (1-indexed) frame relative to origin root.
func FramePath(n int) string {
	return filepath.Join(imageDirName, strconv.Itoa(n)+imageFileExt)
}

// CountFrames returns the number of produced image files.
func CountFrames(imageDir string) (int, error) {
	entries, err := os.ReadDir(imageDir)
	if err != nil {
		return 0, fmt.Errorf("counting frames: %w", err)
	}
	var n int
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), imageFileExt) {
			n++
		}
	}
	return n, nil
}
