// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"

	"github.com/evolution-gaming/framestrip/internal/logging"
)

// globalFlags are flags shared by subcommands that load application configuration.
type globalFlags struct {
	ConfFile string
	Debug    bool
}

func (g *globalFlags) Register(fs *flag.FlagSet) {
	fs.BoolVar(&g.Debug, "debug", false, "Enable debug logging, ffmpeg command lines included (optional)")
	fs.StringVar(&g.ConfFile, "conf", "", "Application configuration file path, .json, .toml or .yaml (optional)")
}

// Apply enables logging requested by flags, call it after flags are parsed.
func (g *globalFlags) Apply() {
	if g.Debug {
		logging.EnableDebugLogger()
	}
}
