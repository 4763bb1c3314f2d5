// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Execution of a single ffmpeg invocation with progress reporting.
//
// A stage execution is a two-state machine: Running while process output is consumed
// and progress is reported, Terminated once the process has exited (successfully or
// not). Progress events are delivered in the order ffmpeg emits them and a successful
// stage always ends with exactly one event of ratio 1.
package stage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/evolution-gaming/framestrip/internal/logging"
	"github.com/evolution-gaming/framestrip/internal/lw"
)

// Name of a pipeline stage.
type Name string

const (
	Audio Name = "audio"
	Image Name = "image"
)

// MaxRunningRatio caps progress of a running stage, ratio 1 is reserved for completion.
const MaxRunningRatio = 0.999

const (
	// How much of stderr is kept for error reporting.
	stderrTailSize = 4 * 1024
	// Buffered progress events before reading of process output is throttled.
	eventBufferSize = 64
	maxLineSize     = 1024 * 1024
)

var progressMarkerRe = regexp.MustCompile(`^frame=\s*(\d+)`)

// Progress is a single progress report of a stage.
type Progress struct {
	Stage Name    `json:"stage"`
	Ratio float64 `json:"ratio"`
}

// State of stage execution.
type State int32

const (
	Running State = iota + 1
	Terminated
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// Stage describes a single ffmpeg invocation.
type Stage struct {
	Name Name
	// Path to ffmpeg executable
	ExePath string
	// ffmpeg command arguments
	Args []string
	// OutDir is created (if missing) before process is launched
	OutDir string
	// WorkDir is process working directory, inherited when empty
	WorkDir string
	// FrameCount is the progress denominator
	FrameCount float64
}

// Execution is a launched Stage.
type Execution struct {
	stage   Stage
	cmd     *exec.Cmd
	events  chan Progress
	done    chan struct{}
	state   atomic.Int32
	tail    *lw.TailWriter
	started time.Time
	elapsed time.Duration
	err     error
}

// Start will launch stage process and return immediately.
//
// Returned error is non-nil only if process could not be launched, in which case no
// progress events are produced.
func Start(ctx context.Context, s Stage) (*Execution, error) {
	if s.OutDir != "" {
		if err := os.MkdirAll(s.OutDir, os.FileMode(0o775)); err != nil {
			return nil, fmt.Errorf("%s stage: creating output dir: %w", s.Name, err)
		}
	}

	cmd := exec.CommandContext(ctx, s.ExePath, s.Args...) //#nosec G204
	cmd.Dir = s.WorkDir
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Stage: s.Name, Err: err}
	}

	logging.Debugf("Running: %s", cmd)
	e := &Execution{
		stage:  s,
		cmd:    cmd,
		events: make(chan Progress, eventBufferSize),
		done:   make(chan struct{}),
		tail:   lw.NewTailWriter(stderrTailSize),
	}
	e.started = time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Stage: s.Name, Err: err}
	}
	e.state.Store(int32(Running))

	go e.run(ctx, stderr)

	return e, nil
}

// Run will start stage, pass every progress event to report and wait for termination.
// Returned Execution is nil only if stage could not be launched.
func Run(ctx context.Context, s Stage, report func(Progress)) (*Execution, error) {
	e, err := Start(ctx, s)
	if err != nil {
		return nil, err
	}
	for p := range e.Events() {
		if report != nil {
			report(p)
		}
	}
	return e, e.Wait()
}

// Events returns progress event channel. Channel is closed when execution terminates.
// Once ctx of Start is done undelivered events are dropped.
func (e *Execution) Events() <-chan Progress {
	return e.events
}

// Wait blocks until execution is Terminated and returns its outcome.
func (e *Execution) Wait() error {
	<-e.done
	return e.err
}

// State returns current execution state.
func (e *Execution) State() State {
	return State(e.state.Load())
}

// Elapsed returns wall time of a terminated execution.
func (e *Execution) Elapsed() time.Duration {
	<-e.done
	return e.elapsed
}

// Stderr returns the retained tail of process diagnostic output.
func (e *Execution) Stderr() string {
	return e.tail.String()
}

func (e *Execution) run(ctx context.Context, stderr io.Reader) {
	defer close(e.done)
	defer e.state.Store(int32(Terminated))
	defer close(e.events)

	e.consume(ctx, stderr)

	err := e.cmd.Wait()
	e.elapsed = time.Since(e.started)
	switch {
	case ctx.Err() != nil:
		e.err = &FailureError{Stage: e.stage.Name, Err: ctx.Err(), Stderr: e.tail.String()}
	case err != nil:
		e.err = &FailureError{Stage: e.stage.Name, Err: err, Stderr: e.tail.String()}
	default:
		e.emit(ctx, Progress{Stage: e.stage.Name, Ratio: 1})
	}
	if e.err != nil {
		logging.Infof("%s stage failed after %s: %s", e.stage.Name, e.elapsed, e.err)
		logging.Debugf("Stderr: %s", e.tail.String())
	}
}

// consume reads process output until EOF and emits progress for every progress marker.
func (e *Execution) consume(ctx context.Context, stderr io.Reader) {
	var last float64
	scanner := bufio.NewScanner(io.TeeReader(stderr, e.tail))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLinesWithCR)
	for scanner.Scan() {
		frame, ok := parseProgressMarker(scanner.Text())
		if !ok {
			continue
		}
		last = math.Max(last, progressRatio(frame, e.stage.FrameCount))
		if !e.emit(ctx, Progress{Stage: e.stage.Name, Ratio: last}) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		logging.Warnf("%s stage: reading output: %s", e.stage.Name, err)
	}
	// Process must not block on a full pipe, so drain whatever is left.
	_, _ = io.Copy(e.tail, stderr)
}

// emit delivers p unless ctx is done first.
func (e *Execution) emit(ctx context.Context, p Progress) bool {
	select {
	case e.events <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

// parseProgressMarker extracts frame number from a "frame=  123 fps=..." line.
func parseProgressMarker(line string) (int64, bool) {
	m := progressMarkerRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// progressRatio returns min(MaxRunningRatio, frame/frameCount).
func progressRatio(frame int64, frameCount float64) float64 {
	if !(frameCount > 0) {
		return 0
	}
	return math.Min(MaxRunningRatio, float64(frame)/frameCount)
}

// scanLinesWithCR handles both \r and \n as line delimiters, ffmpeg rewrites its progress
// line with \r.
func scanLinesWithCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	for i := 0; i < len(data); i++ {
		if data[i] == '\r' || data[i] == '\n' {
			advance = i + 1
			for advance < len(data) && (data[advance] == '\r' || data[advance] == '\n') {
				advance++
			}
			return advance, data[0:i], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// IsCanceled reports whether err is a stage failure caused by cancellation.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
