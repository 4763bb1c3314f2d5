// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Transcode orchestration: turn one input video into an optional mp3 audio track and a
// sequence of JPEG frames, streaming per-stage progress.
//
// Output layout for an origin:
//
//	<OutputDir>/<OriginID>/audio/audio.mp3
//	<OutputDir>/<OriginID>/image/1.jpg ... image/N.jpg
package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/evolution-gaming/framestrip/internal/logging"
	"github.com/evolution-gaming/framestrip/internal/stage"
	"github.com/evolution-gaming/framestrip/internal/tools"
	"github.com/evolution-gaming/framestrip/internal/video"
	"github.com/google/uuid"
)

// Request describes a single transcode.
type Request struct {
	InputPath string
	// Root under which per-origin directory is created
	OutputDir string
	// Empty OriginID is replaced with a random UUID
	OriginID string
	// Pre-fetched metadata, extracted from InputPath when nil
	Metadata *video.Metadata
	// Max length of the long edge of produced frames, 0 keeps original size
	Quality int
	Options Options
}

// Options tune a single transcode.
type Options struct {
	// Audio stage runs only if media has audio and Audio is not explicitly false
	Audio *bool
	// Cwd is working directory of ffmpeg processes, relative paths in Request are
	// resolved against it
	Cwd string
	// LockOrigin takes an exclusive lock on origin directory for the duration of run
	LockOrigin bool
}

func (o Options) audioEnabled() bool {
	return o.Audio == nil || *o.Audio
}

// Output is the summary of a successful transcode.
type Output struct {
	OriginID   string  `json:"origin_id"`
	Duration   float64 `json:"duration"`
	FrameCount int     `json:"frame_count"`
	// Root is per-origin output directory
	Root string `json:"root"`
	// HasAudio is true if audio track was extracted
	HasAudio bool           `json:"has_audio"`
	Metadata video.Metadata `json:"metadata"`
}

// Transcoder runs transcodes with common settings. It holds no per-run state, so
// transcodes of different inputs can run concurrently.
type Transcoder struct {
	settings  Settings
	extractor video.MetadataExtractor
}

// New creates a Transcoder. When extractor is nil metadata is extracted with ffmpeg from
// settings.
func New(settings Settings, extractor video.MetadataExtractor) *Transcoder {
	settings = settings.withDefaults()
	if extractor == nil {
		extractor = tools.NewFfmpeg(settings.FfmpegPath)
	}
	return &Transcoder{settings: settings, extractor: extractor}
}

// Job is a running transcode. Progress is delivered as the job advances: a caller either
// drains Progress until it is closed and then calls Wait, or calls Wait right away, in
// which case events not yet received are discarded.
type Job struct {
	// OriginID is the (possibly generated) origin identifier of this job
	OriginID string

	progress    chan stage.Progress
	discard     chan struct{}
	discardOnce sync.Once
	done        chan struct{}
	out         Output
	err         error
}

// Progress returns stream of progress events. All audio stage events precede image stage
// events. Channel is closed after the last event and before Wait returns.
func (j *Job) Progress() <-chan stage.Progress {
	return j.progress
}

// Wait blocks until the job settles and returns its outcome. Progress events not
// received by then are discarded.
func (j *Job) Wait() (Output, error) {
	j.discardOnce.Do(func() { close(j.discard) })
	<-j.done
	return j.out, j.err
}

// Start launches transcode in background and returns immediately.
func (t *Transcoder) Start(ctx context.Context, req Request) *Job {
	if req.OriginID == "" {
		req.OriginID = uuid.NewString()
	}
	j := &Job{
		OriginID: req.OriginID,
		progress: make(chan stage.Progress),
		discard:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go func() {
		defer close(j.done)
		defer close(j.progress)
		j.out, j.err = t.transcode(ctx, req, func(p stage.Progress) { j.send(ctx, p) })
		if j.err != nil {
			j.err = fmt.Errorf("transcode %s: %w", req.OriginID, j.err)
		}
	}()
	return j
}

// send delivers p to Progress unless the job is canceled or awaited without draining.
func (j *Job) send(ctx context.Context, p stage.Progress) {
	select {
	case j.progress <- p:
	case <-j.discard:
	case <-ctx.Done():
	}
}

// Run is a synchronous Start: every progress event is passed to report (which may be nil).
func (t *Transcoder) Run(ctx context.Context, req Request, report func(stage.Progress)) (Output, error) {
	j := t.Start(ctx, req)
	for p := range j.Progress() {
		if report != nil {
			report(p)
		}
	}
	return j.Wait()
}

// Metadata resolves metadata of a request: supplied value is validated, otherwise it is
// extracted from input.
func (t *Transcoder) Metadata(ctx context.Context, req Request) (video.Metadata, error) {
	if req.Metadata != nil {
		if err := req.Metadata.Validate(); err != nil {
			return video.Metadata{}, fmt.Errorf("supplied metadata: %w", err)
		}
		return *req.Metadata, nil
	}
	m, err := t.extractor.ExtractMetadata(ctx, resolvePath(req.Options.Cwd, req.InputPath))
	if err != nil {
		return video.Metadata{}, fmt.Errorf("metadata: %w", err)
	}
	return m, nil
}

// Plan returns stages a request would run, in execution order.
func (t *Transcoder) Plan(req Request, meta video.Metadata) ([]stage.Stage, error) {
	maxLength := MaxLength(req.Quality, meta.Width, meta.Height)
	if maxLength <= 0 {
		return nil, fmt.Errorf("no target size: quality %d, dimensions %dx%d: %w",
			req.Quality, meta.Width, meta.Height, video.ErrInvalidMedia)
	}
	input := resolvePath(req.Options.Cwd, req.InputPath)
	root := originRoot(req)
	frames := meta.ExpectedFrames()

	var stages []stage.Stage
	if meta.HasAudio && req.Options.audioEnabled() {
		stages = append(stages, stage.Stage{
			Name:       stage.Audio,
			ExePath:    t.settings.FfmpegPath,
			Args:       AudioArgs(t.settings, input, root),
			OutDir:     AudioDir(root),
			WorkDir:    req.Options.Cwd,
			FrameCount: frames,
		})
	}
	stages = append(stages, stage.Stage{
		Name:       stage.Image,
		ExePath:    t.settings.FfmpegPath,
		Args:       ImageArgs(t.settings, input, root, meta.FPS, meta.Rotate, maxLength),
		OutDir:     ImageDir(root),
		WorkDir:    req.Options.Cwd,
		FrameCount: frames,
	})
	return stages, nil
}

func (t *Transcoder) transcode(ctx context.Context, req Request, report func(stage.Progress)) (Output, error) {
	meta, err := t.Metadata(ctx, req)
	if err != nil {
		return Output{}, err
	}
	stages, err := t.Plan(req, meta)
	if err != nil {
		return Output{}, err
	}

	root := originRoot(req)
	if err := os.MkdirAll(root, os.FileMode(0o775)); err != nil {
		return Output{}, fmt.Errorf("creating origin dir: %w", err)
	}
	if req.Options.LockOrigin {
		unlock, err := lockOrigin(root)
		if err != nil {
			return Output{}, err
		}
		defer unlock()
	}

	out := Output{OriginID: req.OriginID, Duration: meta.Duration, Root: root, Metadata: meta}
	for _, s := range stages {
		logging.Infof("Origin %s: starting %s stage", req.OriginID, s.Name)
		e, err := stage.Run(ctx, s, report)
		if err != nil {
			return Output{}, err
		}
		logging.Infof("Origin %s: %s stage done in %s", req.OriginID, s.Name, e.Elapsed())
		logging.Debugf("Origin %s: %s stage output tail:\n%s", req.OriginID, s.Name, e.Stderr())
		if s.Name == stage.Audio {
			out.HasAudio = true
		}
	}

	out.FrameCount, err = CountFrames(ImageDir(root))
	if err != nil {
		return Output{}, err
	}
	if out.FrameCount == 0 {
		logging.Warnf("Origin %s: image stage produced no frames", req.OriginID)
	}
	return out, nil
}

func originRoot(req Request) string {
	return filepath.Join(resolvePath(req.Options.Cwd, req.OutputDir), req.OriginID)
}

// resolvePath makes relative p relative to cwd, so that it points to the same file for
// this process and for an ffmpeg process running in cwd.
func resolvePath(cwd, p string) string {
	if cwd == "" || p == "" || filepath.IsAbs(p) {
		return p
	}
	// Relative cwd is itself relative to this process.
	if abs, err := filepath.Abs(cwd); err == nil {
		cwd = abs
	}
	return filepath.Join(cwd, p)
}

// IsInvalidMedia reports whether transcode failed because input is unusable.
func IsInvalidMedia(err error) bool {
	return errors.Is(err, video.ErrInvalidMedia)
}
