// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// framestrip tool's run subcommand implementation.

package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/evolution-gaming/framestrip/internal/analysis"
	"github.com/evolution-gaming/framestrip/internal/logging"
	"github.com/evolution-gaming/framestrip/internal/metric"
	"github.com/evolution-gaming/framestrip/internal/stage"
	"github.com/evolution-gaming/framestrip/internal/transcode"
	"github.com/google/uuid"
	"github.com/jszwec/csvutil"
	"golang.org/x/sync/errgroup"
)

// CreateRunCommand will create instance of App.
func CreateRunCommand() *App {
	longHelp := `Subcommand "run" will execute transcode plan according to definition in file
provided as parameter to -plan flag. Transcodes run concurrently, each one writes into
its own origin directory under -out-dir. CSV report and progress plots are saved into
-out-dir as well. Both flags are mandatory.

Examples:

  framestrip run -plan plan.json -out-dir path/to/output/dir
  framestrip run -plan plan.json -out-dir out -parallel 4`

	app := &App{
		fs:     flag.NewFlagSet("run", flag.ContinueOnError),
		gf:     globalFlags{},
		mStore: metric.NewStore(),
		out:    os.Stdout,
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flPlan, "plan", "", "Transcode plan configuration file")
	app.fs.StringVar(&app.flOutDir, "out-dir", "", "Output directory to store results")
	app.fs.IntVar(&app.flParallel, "parallel", runtime.NumCPU(), "Max number of concurrent transcodes")
	app.fs.BoolVar(&app.flDryRun, "dry-run", false, "Do not actually run, just do checks and validation")
	app.fs.BoolVar(&app.flNoPlots, "no-plots", false, "Do not create progress plots")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

// App is subcommand application context that implements Commander interface.
type App struct {
	// Configuration object
	cfg *Config
	// FlagSet instance
	fs *flag.FlagSet
	// Result table destination
	out io.Writer
	// Transcode plan file
	flPlan string
	// Output directory for transcode results
	flOutDir string
	// Global flags
	gf globalFlags
	// Dry run mode flag
	flDryRun bool
	// Concurrency limit
	flParallel int
	// Skip plots
	flNoPlots bool
	// Transcode run metric store
	mStore *metric.Store
}

var _ Commander = (*App)(nil)

// init will do App state initialization.
func (a *App) init(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("%s usage error", a.fs.Name()),
		}
	}

	a.gf.Apply()

	// Transcode plan config file is mandatory.
	if a.flPlan == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -plan is missing",
		}
	}

	// Output dir is mandatory.
	if a.flOutDir == "" {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      "mandatory option -out-dir is missing",
		}
	}

	if a.flParallel < 1 {
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("-parallel should be positive, got %d", a.flParallel),
		}
	}

	// Transcode plan config file should exist.
	if _, err := os.Stat(a.flPlan); err != nil {
		a.fs.Usage()
		return &AppError{
			exitCode: 2,
			msg:      fmt.Sprintf("transcode plan file does not exist? %s", err),
		}
	}

	// Do not write over existing output directory.
	if isNonEmptyDir(a.flOutDir) {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("non-empty out dir: %s", a.flOutDir)}
	}

	// Load application configuration.
	c, err := LoadConfig(a.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	a.cfg = &c

	return nil
}

// transcode will run all requests, at most flParallel at a time. Every request gets a
// record in mStore regardless of its outcome.
func (a *App) transcode(ctx context.Context, tc *transcode.Transcoder, reqs []transcode.Request) {
	g := new(errgroup.Group)
	g.SetLimit(a.flParallel)

	for _, req := range reqs {
		if req.OriginID == "" {
			req.OriginID = uuid.NewString()
		}
		req.Options.LockOrigin = a.cfg.LockOrigin.Value()
		// Insert upfront to keep plan order in the report.
		id := a.mStore.Insert(metric.Record{Name: req.OriginID, SourceFile: req.InputPath})

		req := req
		g.Go(func() error {
			r := transcodeOne(ctx, tc, req)
			if err := a.mStore.Update(id, r); err != nil {
				logging.Infof("Error updating record (id=%v) for %s: %s", id, req.OriginID, err)
			}
			return nil
		})
	}
	// Failures are recorded, not returned.
	_ = g.Wait()
}

// transcodeOne runs single transcode and collects its metrics.
func transcodeOne(ctx context.Context, tc *transcode.Transcoder, req transcode.Request) metric.Record {
	logging.Infof("Start transcoding %s (origin %s)", req.InputPath, req.OriginID)
	rec := newProgressRecorder()
	start := time.Now()
	out, err := tc.Run(ctx, req, rec.Record)
	elapsed := time.Since(start)

	samples := rec.Samples()
	r := metric.Record{
		Name:          req.OriginID,
		SourceFile:    req.InputPath,
		Status:        metric.StatusOK,
		HElapsed:      elapsed.Round(time.Millisecond).String(),
		Elapsed:       elapsed,
		AudioElapsed:  rec.StageElapsed(stage.Audio),
		ImageElapsed:  rec.StageElapsed(stage.Image),
		ProgressCount: len(samples),
		Timeline:      samples,
	}
	if err != nil {
		r.Status = metric.StatusFailed
		r.Error = err.Error()
		logging.Infof("Failed transcoding %s: %s", req.InputPath, err)
		return r
	}

	r.OutputRoot = out.Root
	r.VideoDuration = out.Duration
	r.Width = out.Metadata.Width
	r.Height = out.Metadata.Height
	r.FPS = out.Metadata.FPS
	r.Rotate = out.Metadata.Rotate
	r.HasAudio = out.HasAudio
	r.ExpectedFrames = out.Metadata.ExpectedFrames()
	r.FrameCount = out.FrameCount
	if s := r.ImageElapsed.Seconds(); s > 0 {
		r.ImageSpeed = float64(out.FrameCount) / s
	}
	sum := analysis.SummarizeImageStage(samples)
	r.ImageStepMean = sum.StepMean
	r.ImageStepMax = sum.StepMax
	r.ImageStepStDev = sum.StepStDev

	logging.Infof("Done transcoding %s: %d frames in %s", req.InputPath, out.FrameCount, r.HElapsed)
	return r
}

// plot will create progress plot of every successful transcode.
func (a *App) plot(outDir string) error {
	for _, r := range a.mStore.Records() {
		if r.Status != metric.StatusOK || len(r.Timeline) == 0 {
			continue
		}
		plotFile := path.Join(outDir, r.Name+"_progress.png")
		if err := analysis.MultiPlotProgress(r.Timeline, r.Name, plotFile); err != nil {
			return fmt.Errorf("creating progress plot for %s: %w", r.Name, err)
		}
		logging.Infof("Progress plot done: %s", plotFile)
	}
	return nil
}

// saveReport writes recorded metrics to report file.
func (a *App) saveReport(outDir string) error {
	report := a.mStore.Records()

	reportPath := path.Join(outDir, a.cfg.ReportFileName.Value())
	reportOut, err := os.Create(reportPath)
	if err != nil {
		return fmt.Errorf("creating CSV report file: %w", err)
	}
	defer reportOut.Close()

	w := csv.NewWriter(reportOut)
	if err := csvutil.NewEncoder(w).Encode(report); err != nil {
		return fmt.Errorf("writing CSV report: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing CSV report: %w", err)
	}
	logging.Infof("Report saved: %s", reportPath)

	return nil
}

// summary renders result table and returns statuses of all records.
func (a *App) summary() []string {
	records := a.mStore.Records()
	statuses := make([]string, 0, len(records))
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		statuses = append(statuses, r.Status)
		rows = append(rows, []string{
			r.Name,
			r.Status,
			strconv.Itoa(r.FrameCount),
			strconv.FormatFloat(r.VideoDuration, 'f', 2, 64),
			r.HElapsed,
			r.Error,
		})
	}
	fmt.Fprintln(a.out, renderTable(
		[]string{"Origin", "Status", "Frames", "Duration", "Elapsed", "Error"}, rows, 2, 3, 4))
	return statuses
}

// Run is main entry point into App execution.
func (a *App) Run(args []string) error {
	logging.Infof("framestrip version: %s", vInfo)
	if err := a.init(args); err != nil {
		return err
	}

	logging.Debugf("Application configuration: %#v", a.cfg)
	// Check if configuration is valid.
	if err := a.cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}
	settings, err := a.cfg.TranscodeSettings()
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	logging.Debugf("Transcode plan config file: %v", a.flPlan)

	pc, err := createPlanConfig(a.flPlan)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	// To avoid ambiguity, resolve output path to absolute representation.
	outDirPath, err := filepath.Abs(a.flOutDir)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}
	reqs := pc.Requests(outDirPath)

	// Early return in "dry run" mode.
	if a.flDryRun {
		for _, r := range reqs {
			logging.Infof("Would transcode %s (origin %q, quality %d)", r.InputPath, r.OriginID, r.Quality)
		}
		logging.Info("Dry run mode finished!")
		return nil
	}

	if err := os.MkdirAll(outDirPath, os.FileMode(0o755)); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("creating output dir: %s", err)}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a.transcode(ctx, transcode.New(settings, nil), reqs)

	// Save report.
	if err = a.saveReport(outDirPath); err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	if !a.flNoPlots {
		if err = a.plot(outDirPath); err != nil {
			return &AppError{exitCode: 1, msg: err.Error()}
		}
	}

	statuses := a.summary()
	if all(statuses, metric.StatusFailed) {
		return &AppError{exitCode: 1, msg: "all transcodes failed, see log for reasons"}
	}
	var failed int
	for _, s := range statuses {
		if s == metric.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("%d of %d transcodes failed, see log for reasons", failed, len(statuses))}
	}

	logging.Info("Done")
	return nil
}
