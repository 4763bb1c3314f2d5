// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// framestrip tool's transcode subcommand implementation.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/evolution-gaming/framestrip/internal/analysis"
	"github.com/evolution-gaming/framestrip/internal/logging"
	"github.com/evolution-gaming/framestrip/internal/stage"
	"github.com/evolution-gaming/framestrip/internal/transcode"
)

func CreateTranscodeCommand() *TranscodeApp {
	longHelp := `Subcommand "transcode" extracts audio track (when present) and a sequence of
JPEG frames from a single video:

  <out-dir>/<origin>/audio/audio.mp3
  <out-dir>/<origin>/image/1.jpg ... <N>.jpg

Result summary is printed as JSON to stdout, progress is reported on stderr.

Examples:

  framestrip transcode -i video.mp4 -out-dir out
  framestrip transcode -i video.mp4 -out-dir out -origin clip1 -quality 720 -no-audio
  framestrip transcode -i video.mp4 -out-dir out -plot progress.png`

	app := &TranscodeApp{
		fs:     flag.NewFlagSet("transcode", flag.ContinueOnError),
		gf:     globalFlags{},
		out:    os.Stdout,
		errOut: os.Stderr,
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flInFile, "i", "", "Input video file (mandatory)")
	app.fs.StringVar(&app.flOutDir, "out-dir", "", "Output root directory (mandatory)")
	app.fs.StringVar(&app.flOrigin, "origin", "", "Origin identifier, random UUID by default")
	app.fs.IntVar(&app.flQuality, "quality", 0, "Max length of long edge of frames, original size by default")
	app.fs.BoolVar(&app.flNoAudio, "no-audio", false, "Do not extract audio track")
	app.fs.StringVar(&app.flCwd, "cwd", "", "Working directory of ffmpeg, relative paths are resolved against it")
	app.fs.StringVar(&app.flPlot, "plot", "", "Save progress plot to given PNG file")
	app.fs.BoolVar(&app.flLock, "lock", false, "Lock origin directory while transcoding (overrides lock_origin)")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

var _ Commander = (*TranscodeApp)(nil)

// TranscodeApp is subcommand application context that implements Commander interface.
type TranscodeApp struct {
	cfg    *Config
	out    io.Writer
	errOut io.Writer
	fs     *flag.FlagSet
	gf     globalFlags

	flInFile  string
	flOutDir  string
	flOrigin  string
	flQuality int
	flNoAudio bool
	flCwd     string
	flPlot    string
	flLock    bool
}

// transcodeResult is what transcode subcommand prints.
type transcodeResult struct {
	Output transcode.Output `json:"output"`
	Info   transcode.Info   `json:"info"`
}

func (a *TranscodeApp) init(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("%s usage error", a.fs.Name()),
		}
	}

	a.gf.Apply()

	if a.flInFile == "" {
		a.fs.Usage()
		return &AppError{exitCode: 2, msg: "mandatory option -i is missing"}
	}
	if a.flOutDir == "" {
		a.fs.Usage()
		return &AppError{exitCode: 2, msg: "mandatory option -out-dir is missing"}
	}
	if a.flQuality < 0 {
		return &AppError{exitCode: 2, msg: fmt.Sprintf("negative -quality: %d", a.flQuality)}
	}

	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	a.cfg = &c

	return nil
}

func (a *TranscodeApp) request() transcode.Request {
	req := transcode.Request{
		InputPath: a.flInFile,
		OutputDir: a.flOutDir,
		OriginID:  a.flOrigin,
		Quality:   a.flQuality,
		Options: transcode.Options{
			Cwd:        a.flCwd,
			LockOrigin: a.flLock || a.cfg.LockOrigin.Value(),
		},
	}
	if a.flNoAudio {
		audio := false
		req.Options.Audio = &audio
	}
	return req
}

// Run is main entry point into TranscodeApp execution.
func (a *TranscodeApp) Run(args []string) error {
	if err := a.init(args); err != nil {
		return err
	}

	logging.Debugf("Application configuration: %#v", a.cfg)
	if err := a.cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}
	settings, err := a.cfg.TranscodeSettings()
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rec := newProgressRecorder()
	printer := newProgressPrinter(a.errOut)
	out, err := transcode.New(settings, nil).Run(ctx, a.request(), func(p stage.Progress) {
		rec.Record(p)
		printer.Print(p)
	})
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	logging.Infof("Origin %s: %d frames in %s", out.OriginID, out.FrameCount, out.Root)

	if a.flPlot != "" {
		if err := analysis.MultiPlotProgress(rec.Samples(), out.OriginID, a.flPlot); err != nil {
			return &AppError{exitCode: 1, msg: fmt.Sprintf("creating progress plot: %s", err)}
		}
		logging.Infof("Progress plot done: %s", a.flPlot)
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(transcodeResult{Output: out, Info: out.Info()}); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	return nil
}
