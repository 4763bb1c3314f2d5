// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Reusable helpers and fixtures for tests.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/evolution-gaming/framestrip/internal/tools"
)

const clipDiagnostics = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'clip.mp4':
  Duration: 00:00:02.00, start: 0.000000, bitrate: 4712 kb/s
    Stream #0:0(und): Video: h264 (High) (avc1 / 0x31637661), yuv420p, 1280x720 [SAR 1:1 DAR 16:9], 4577 kb/s, 25 fps, 25 tbr, 12800 tbn, 50 tbc (default)
    Stream #0:1(und): Audio: aac (LC) (mp4a / 0x6134706D), 48000 Hz, stereo, fltp, 128 kb/s (default)
At least one output file must be specified`

// fakeFfmpegScript prints DIAG when probed, otherwise writes output of a stage
// recognized by the last argument. Inputs containing "broken" fail the image stage.
const fakeFfmpegScript = `#!/bin/sh
for last; do :; done
if [ "$1" = "-hide_banner" ]; then
cat >&2 <<'EOF'
DIAG
EOF
exit 1
fi
case "$last" in
*audio.mp3)
: > "$last"
exit 0
;;
esac
case "$*" in
*broken*) echo 'Conversion failed!' >&2; exit 1 ;;
esac
dir=$(dirname "$last")
i=1
while [ $i -le FRAMES ]; do
: > "$dir/$i.jpg"
printf 'frame=%5d fps= 25 q=5.0 size=N/A\r' $i >&2
i=$((i+1))
done
exit 0
`

// fixFakeFfmpeg fixture creates fake ffmpeg producing given number of frames and
// makes it the one found by configuration auto-detection.
func fixFakeFfmpeg(t *testing.T, frames int) string {
	script := strings.NewReplacer(
		"DIAG", clipDiagnostics,
		"FRAMES", fmt.Sprint(frames),
	).Replace(fakeFfmpegScript)
	p := path.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(p, []byte(script), fs.FileMode(0o755)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	t.Setenv(tools.FfmpegEnvVar, p)
	return p
}

// fixInputFiles fixture creates (fake) input videos with given names.
func fixInputFiles(t *testing.T, names ...string) []string {
	dir := t.TempDir()
	files := make([]string, 0, len(names))
	for _, n := range names {
		p := path.Join(dir, n)
		if err := os.WriteFile(p, []byte("not really a video"), fs.FileMode(0o644)); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		files = append(files, p)
	}
	return files
}

// fixPlanConfig fixture provides transcode plan of given inputs.
func fixPlanConfig(t *testing.T, inputs ...string) (fPath string) {
	jobs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		jobs = append(jobs, fmt.Sprintf(`{"input": %q}`, in))
	}
	payload := []byte(fmt.Sprintf(`{"quality": 640, "jobs": [%s]}`, strings.Join(jobs, ", ")))
	fPath = path.Join(t.TempDir(), "plan.json")
	err := os.WriteFile(fPath, payload, fs.FileMode(0o644))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return
}

// fixPlanConfigInvalid fixture provides invalid transcode plan.
func fixPlanConfigInvalid(t *testing.T) (fPath string) {
	payload := []byte(`{
		"jobs": [
			{"input": "non-existent"}
		]
	}`)
	fPath = path.Join(t.TempDir(), "invalid.json")
	err := os.WriteFile(fPath, payload, fs.FileMode(0o644))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	return fPath
}
