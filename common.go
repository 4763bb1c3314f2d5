// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Reusable parts of framestrip application and subcommand infrastructure.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/evolution-gaming/framestrip/internal/logging"
	"github.com/evolution-gaming/framestrip/internal/metric"
	"github.com/evolution-gaming/framestrip/internal/plan"
	"github.com/evolution-gaming/framestrip/internal/stage"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// Commander interface should be implemented by commands and sub-commands.
type Commander interface {
	Run([]string) error
}

// AppError a custom error returned from CLI application.
//
// AppError is handy error type envisioned to be used in CLI's main.
// ExitCode() should be used as argument for os.Exit().
type AppError struct {
	msg      string
	exitCode int
}

// Error implements error interface for AppError.
func (e *AppError) Error() string {
	return e.msg
}

// ExitCode returns CLI application's exit code.
func (e *AppError) ExitCode() int {
	return e.exitCode
}

// printSubCommandUsage helper to format ad print subcommand's usage.
func printSubCommandUsage(longHelp string, fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage of sub-command %s:\n\n", fs.Name())
	fmt.Fprintf(fs.Output(), "%s\n\n", longHelp)
	fs.PrintDefaults()
}

// createPlanConfig creates a PlanConfig instance from JSON configuration.
func createPlanConfig(cfgFile string) (plan.PlanConfig, error) {
	pc, err := plan.NewPlanConfigFromFile(cfgFile)
	if err != nil {
		ev := &plan.PlanConfigError{}
		if errors.As(err, &ev) {
			logging.Debugf(
				"PlanConfig validation failures:\n%s",
				strings.Join(ev.Reasons(), "\n"))
			return pc, fmt.Errorf("PlanConfig not valid: %w", err)
		}
		return pc, fmt.Errorf("cannot create PlanConfig: %w", err)
	}
	return pc, nil
}

// isNonEmptyDir will check if given directory is non-empty.
func isNonEmptyDir(path string) bool {
	fs, err := os.Open(path)
	if err != nil {
		return false
	}
	defer fs.Close()

	n, _ := fs.Readdirnames(1)
	return len(n) == 1
}

// all reports whether every element of non-empty s equals v.
func all[T comparable](s []T, v T) bool {
	if len(s) == 0 {
		return false
	}
	for _, e := range s {
		if e != v {
			return false
		}
	}
	return true
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// renderTable renders rows as a table, columns listed in rightAligned are right aligned.
func renderTable(headers []string, rows [][]string, rightAligned ...int) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(rightAligned))
	for _, c := range rightAligned {
		configs = append(configs, table.ColumnConfig{
			Number:      c + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// progressRecorder keeps timeline of progress events of a single transcode.
type progressRecorder struct {
	mu      sync.Mutex
	start   time.Time
	samples []metric.Sample
	// Stage completion offsets
	done map[stage.Name]time.Duration
}

func newProgressRecorder() *progressRecorder {
	return &progressRecorder{start: time.Now(), done: make(map[stage.Name]time.Duration)}
}

func (r *progressRecorder) Record(p stage.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	offset := time.Since(r.start)
	r.samples = append(r.samples, metric.Sample{Stage: string(p.Stage), Offset: offset, Ratio: p.Ratio})
	if p.Ratio == 1 {
		r.done[p.Stage] = offset
	}
}

func (r *progressRecorder) Samples() []metric.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metric.Sample(nil), r.samples...)
}

// StageElapsed returns wall time of a completed stage. Stage is assumed to start when
// the previous one completed.
func (r *progressRecorder) StageElapsed(s stage.Name) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	end, ok := r.done[s]
	if !ok {
		return 0
	}
	if s == stage.Image {
		return end - r.done[stage.Audio]
	}
	return end
}

// progressPrinter renders progress of a single transcode. On a terminal a single
// line is rewritten in place, otherwise every 10% step is logged.
type progressPrinter struct {
	w        io.Writer
	tty      bool
	lastStep map[stage.Name]int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w, tty: isTerminal(w), lastStep: make(map[stage.Name]int)}
}

func (p *progressPrinter) Print(e stage.Progress) {
	if p.tty {
		fmt.Fprintf(p.w, "\r%-6s %5.1f%%", e.Stage, e.Ratio*100)
		if e.Ratio == 1 {
			fmt.Fprintln(p.w)
		}
		return
	}
	step := int(e.Ratio * 10)
	if last, seen := p.lastStep[e.Stage]; seen && step <= last {
		return
	}
	p.lastStep[e.Stage] = step
	logging.Infof("%s stage: %.1f%%", e.Stage, e.Ratio*100)
}
