// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Parsing of ffmpeg's human readable input summary.
//
// Parsing is done in two passes: first diagnostic output is split into lines and each
// interesting line is classified (duration, video stream or rotation side data), then
// typed fields are extracted from each classified line. Everything else is ignored.

package video

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidMedia is returned when input has no usable timing information.
var ErrInvalidMedia = errors.New("invalid media")

// ParseError is returned when an expected token is structurally absent from a line that
// otherwise was recognized.
type ParseError struct {
	// Field that failed to parse (duration, rotate, size, fps)
	Field string
	// Line is the offending diagnostic line
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s from %q: %v", e.Field, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type lineKind int

const (
	durationLine lineKind = iota
	videoStreamLine
	rotateLine
)

// token is a classified line of diagnostic output.
type token struct {
	kind lineKind
	text string
}

var (
	lineSplitter    = regexp.MustCompile(`[\n\r]`)
	videoStreamRe   = regexp.MustCompile(`^Stream.+Video`)
	audioStreamRe   = regexp.MustCompile(`Stream.+Audio`)
	parenthesizedRe = regexp.MustCompile(`\(.+?\)`)
)

// tokenize selects and classifies lines of interest.
func tokenize(text string) []token {
	var tokens []token
	for _, l := range lineSplitter.Split(text, -1) {
		line := strings.TrimSpace(l)
		switch {
		case strings.HasPrefix(line, "Duration"):
			tokens = append(tokens, token{durationLine, line})
		case strings.HasPrefix(line, "rotate"):
			tokens = append(tokens, token{rotateLine, line})
		case videoStreamRe.MatchString(line):
			tokens = append(tokens, token{videoStreamLine, line})
		}
	}
	return tokens
}

// ParseDiagnostics will create Metadata from ffmpeg's diagnostic output.
//
// When there are several video streams the last one wins. Frame rate defaults to
// DefaultFPS when stream line does not have one.
func ParseDiagnostics(text string) (Metadata, error) {
	var (
		meta          Metadata
		rawW, rawH    int
		haveVideo     bool
		durationFound bool
	)

	for _, tok := range tokenize(text) {
		switch tok.kind {
		case durationLine:
			d, ok, err := parseDurationLine(tok.text)
			if err != nil {
				return Metadata{}, err
			}
			if ok {
				meta.Duration = d
				durationFound = true
			}
		case rotateLine:
			r, err := parseRotateLine(tok.text)
			if err != nil {
				return Metadata{}, err
			}
			meta.Rotate = r
		case videoStreamLine:
			w, h, fps, err := parseVideoStreamLine(tok.text)
			if err != nil {
				return Metadata{}, err
			}
			rawW, rawH, meta.FPS = w, h, fps
			haveVideo = true
		}
	}
	meta.HasAudio = audioStreamRe.MatchString(text)
	meta.Width, meta.Height = resolveGeometry(rawW, rawH, meta.Rotate)

	if !durationFound {
		return Metadata{}, fmt.Errorf("no duration: %w", ErrInvalidMedia)
	}
	if !haveVideo {
		return Metadata{}, fmt.Errorf("no video stream: %w", ErrInvalidMedia)
	}
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}

	return meta, nil
}

// resolveGeometry swaps encoded dimensions into display dimensions for rotations that
// are not a multiple of 180 degrees.
func resolveGeometry(width, height, rotate int) (int, int) {
	if rotate%180 == 0 {
		return width, height
	}
	return height, width
}

// parseDurationLine handles lines like:
//
//	Duration: 00:00:10.01, start: 0.000000, bitrate: 1205 kb/s
//
// A "N/A" duration is reported as not found.
func parseDurationLine(line string) (float64, bool, error) {
	rest := strings.TrimSpace(strings.TrimPrefix(line, "Duration:"))
	field, _, found := strings.Cut(rest, ",")
	if !found || field == "" {
		return 0, false, &ParseError{Field: "duration", Line: line, Err: errors.New("missing comma terminated timestamp")}
	}
	field = strings.TrimSpace(field)
	if field == "N/A" {
		return 0, false, nil
	}
	d, err := ParseTimestamp(field)
	if err != nil {
		return 0, false, &ParseError{Field: "duration", Line: line, Err: err}
	}
	return d, true, nil
}

// ParseTimestamp converts H:MM:SS[.fraction] into seconds.
func ParseTimestamp(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("timestamp %q: want 3 colon separated parts, got %d", ts, len(parts))
	}
	var total float64
	weight := 3600.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("timestamp %q: %w", ts, err)
		}
		total += v * weight
		weight /= 60
	}
	return total, nil
}

// parseRotateLine handles rotation side data lines like "rotate          : 90".
func parseRotateLine(line string) (int, error) {
	_, value, found := strings.Cut(line, ":")
	if !found {
		return 0, &ParseError{Field: "rotate", Line: line, Err: errors.New("missing colon")}
	}
	r, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, &ParseError{Field: "rotate", Line: line, Err: err}
	}
	return r, nil
}

// parseVideoStreamLine handles lines like:
//
//	Stream #0:0(und): Video: h264 (High) (avc1 / 0x31637661), yuv420p(tv, bt709), 1920x1080 [SAR 1:1 DAR 16:9], 2997 kb/s, 29.97 fps, 29.97 tbr
//
// Parenthesized annotations are dropped first, the third comma separated field is the
// resolution.
func parseVideoStreamLine(line string) (width, height int, fps float64, err error) {
	fields := strings.Split(parenthesizedRe.ReplaceAllString(line, ""), ",")
	if len(fields) < 3 {
		return 0, 0, 0, &ParseError{Field: "size", Line: line, Err: errors.New("no resolution field")}
	}

	sizeTok := strings.Fields(fields[2])
	if len(sizeTok) == 0 {
		return 0, 0, 0, &ParseError{Field: "size", Line: line, Err: errors.New("empty resolution field")}
	}
	w, h, found := strings.Cut(sizeTok[0], "x")
	if !found {
		return 0, 0, 0, &ParseError{Field: "size", Line: line, Err: fmt.Errorf("no x separator in %q", sizeTok[0])}
	}
	if width, err = strconv.Atoi(w); err != nil || width <= 0 {
		return 0, 0, 0, &ParseError{Field: "size", Line: line, Err: fmt.Errorf("bad width %q", w)}
	}
	if height, err = strconv.Atoi(h); err != nil || height <= 0 {
		return 0, 0, 0, &ParseError{Field: "size", Line: line, Err: fmt.Errorf("bad height %q", h)}
	}

	fps = DefaultFPS
	for _, f := range fields {
		if !strings.Contains(f, "fps") {
			continue
		}
		v := strings.Fields(f)[0]
		if fps, err = strconv.ParseFloat(v, 64); err != nil {
			return 0, 0, 0, &ParseError{Field: "fps", Line: line, Err: err}
		}
		break
	}

	return width, height, fps, nil
}
