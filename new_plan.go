// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// framestrip tool's new-plan subcommand implementation.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/evolution-gaming/framestrip/internal/plan"
)

// inputFiles implements flag.Value interface.
type inputFiles []string

func (i *inputFiles) String() string {
	return strings.Join(*i, ", ")
}

func (i *inputFiles) Set(value string) error {
	*i = append(*i, value)
	return nil
}

func CreateNewPlanCommand() *NewPlanApp {
	longHelp := `Subcommand "new-plan" helps create a new transcode plan configuration file template.
Origin identifiers are derived from input file names.

Examples:

  framestrip new-plan -i path/to/input/video.mp4 -o plan.json
  framestrip new-plan -i video1.mp4 -i video2.mp4 -quality 720 -o plan.json`

	app := &NewPlanApp{
		fs: flag.NewFlagSet("new-plan", flag.ContinueOnError),
	}
	app.fs.StringVar(&app.flOutFile, "o", "", "Output file (stdout by default).")
	app.fs.Var(&app.flInputFiles, "i", "Source video files. Use multiple times for multiple files.")
	app.fs.IntVar(&app.flQuality, "quality", 0, "Plan level max length of long edge of frames")

	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

type NewPlanApp struct {
	// FlagSet instance
	fs *flag.FlagSet
	// Output file to save plan to
	flOutFile string
	// Video input files
	flInputFiles inputFiles
	// Plan level quality
	flQuality int
}

func (a *NewPlanApp) Run(args []string) error {
	if err := a.fs.Parse(args); err != nil {
		return &AppError{
			msg:      "usage error",
			exitCode: 2,
		}
	}

	// In case no input video provided we will use some placeholder string.
	if len(a.flInputFiles) == 0 {
		a.flInputFiles = []string{"path/to/source/video.mp4"}
	}

	if a.flQuality < 0 {
		return &AppError{
			msg:      fmt.Sprintf("negative -quality: %d", a.flQuality),
			exitCode: 2,
		}
	}

	// Create a PlanConfig instance from which we shall create a JSON plan.
	pc := plan.Template(a.flInputFiles)
	pc.Quality = a.flQuality

	var out io.Writer
	switch a.flOutFile {
	case "":
		out = os.Stdout
	default:
		fd, err := os.Create(a.flOutFile)
		if err != nil {
			return &AppError{
				msg:      fmt.Sprintf("output file error: %s", err),
				exitCode: 1,
			}
		}
		defer fd.Close()
		out = fd
	}

	e := json.NewEncoder(out)
	e.SetIndent("", "  ")
	if err := e.Encode(pc); err != nil {
		return &AppError{
			msg:      "JSON marshal error",
			exitCode: 1,
		}
	}

	return nil
}
