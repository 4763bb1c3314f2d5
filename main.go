// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Main entrypoint for framestrip application

package main

import (
	"fmt"
	"os"

	"github.com/evolution-gaming/framestrip/internal/logging"
)

// root represents top level of framestrip command, including dispatching to subcommands.
func root(args []string) error {
	usage := `Framestrip - video to frame strip transcoder

Usage:

    framestrip <command> [arguments] [-h|-help]

The commands are:

    probe       print metadata of given video file
    transcode   extract audio track and frame images of a single video
    run         batch execute transcodes according to "transcode plan"
    new-plan    create a new transcode plan template
    dump-conf   output actual application configuration
    version     print framestrip version and exit

Use "framestrip <command> -h|-help" for more information about command.`

	if len(args) < 1 {
		fmt.Println(usage)
		return &AppError{msg: "please, specify command", exitCode: 2}
	}

	switch args[0] {
	case "probe":
		return CreateProbeCommand().Run(args[1:])
	case "transcode":
		return CreateTranscodeCommand().Run(args[1:])
	case "run":
		return CreateRunCommand().Run(args[1:])
	case "new-plan":
		return CreateNewPlanCommand().Run(args[1:])
	case "dump-conf", "dump":
		return CreateDumpConfCommand().Run(args[1:])
	case "version":
		printVersion()
		return nil
	case "-h", "-help", "--help", "?":
		fmt.Println(usage)
		return &AppError{
			exitCode: 2,
		}
	default:
		// No commands were matched at this point, so bail out with default usage message.
		fmt.Println(usage)
		return &AppError{
			msg:      "unknown command/flag",
			exitCode: 2,
		}
	}
}

func main() {
	// Enable info logger by default and early enough.
	logging.EnableInfoLogger()

	if err := root(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		switch e := err.(type) {
		case *AppError:
			os.Exit(e.ExitCode())
		default:
			os.Exit(1)
		}
	}
	os.Exit(0)
}
