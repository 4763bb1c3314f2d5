// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// framestrip tool's probe subcommand implementation.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/evolution-gaming/framestrip/internal/logging"
	"github.com/evolution-gaming/framestrip/internal/tools"
	"github.com/evolution-gaming/framestrip/internal/video"
)

func CreateProbeCommand() *ProbeApp {
	longHelp := `Subcommand "probe" prints metadata of a video file as seen by transcode:
display dimensions (corrected for rotation), duration, frame rate, rotation and audio
presence.

Examples:

  framestrip probe -i path/to/video.mp4
  framestrip probe -i path/to/video.mp4 -json`

	app := &ProbeApp{
		fs:  flag.NewFlagSet("probe", flag.ContinueOnError),
		gf:  globalFlags{},
		out: os.Stdout,
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flInFile, "i", "", "Input video file (mandatory)")
	app.fs.BoolVar(&app.flJSON, "json", false, "Print metadata as JSON")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

var _ Commander = (*ProbeApp)(nil)

// ProbeApp is subcommand application context that implements Commander interface.
type ProbeApp struct {
	out      io.Writer
	fs       *flag.FlagSet
	gf       globalFlags
	flInFile string
	flJSON   bool
}

func (a *ProbeApp) Run(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{exitCode: 2, msg: "usage error"}
	}

	a.gf.Apply()

	if a.flInFile == "" {
		a.fs.Usage()
		return &AppError{exitCode: 2, msg: "mandatory option -i is missing"}
	}

	cfg, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	logging.Debugf("Probing %s with %s", a.flInFile, cfg.FfmpegPath.Value())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	meta, err := tools.NewFfmpeg(cfg.FfmpegPath.Value()).ExtractMetadata(ctx, a.flInFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	if a.flJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(meta); err != nil {
			return &AppError{exitCode: 1, msg: err.Error()}
		}
		return nil
	}

	fmt.Fprintln(a.out, renderMetadata(a.flInFile, meta))
	return nil
}

// renderMetadata renders metadata as a two column table.
func renderMetadata(file string, m video.Metadata) string {
	rows := [][]string{
		{"file", file},
		{"duration", strconv.FormatFloat(m.Duration, 'f', 3, 64)},
		{"width", strconv.Itoa(m.Width)},
		{"height", strconv.Itoa(m.Height)},
		{"fps", strconv.FormatFloat(m.FPS, 'f', -1, 64)},
		{"rotate", strconv.Itoa(m.Rotate)},
		{"audio", strconv.FormatBool(m.HasAudio)},
		{"expected frames", strconv.FormatFloat(m.ExpectedFrames(), 'f', 0, 64)},
	}
	return renderTable([]string{"Property", "Value"}, rows)
}
