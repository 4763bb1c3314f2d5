// Copyright ©2022 Evolution. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Application configuration structures.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/evolution-gaming/framestrip/internal/tools"
	"github.com/evolution-gaming/framestrip/internal/transcode"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig  = errors.New("invalid configuration")
	defaultReportFile = "report.csv"
)

// Valid range of JPEG quality scale.
const (
	minImageQuality = 1
	maxImageQuality = 31
)

// Config represent application configuration.
type Config struct {
	FfmpegPath     ConfigVal[string] `json:"ffmpeg_path,omitempty"`
	AudioBitrate   ConfigVal[string] `json:"audio_bitrate,omitempty"`
	ImageQuality   ConfigVal[int]    `json:"image_quality,omitempty"`
	AudioExtraArgs ConfigVal[string] `json:"audio_extra_args,omitempty"`
	ImageExtraArgs ConfigVal[string] `json:"image_extra_args,omitempty"`
	ReportFileName ConfigVal[string] `json:"report_file_name,omitempty"`
	LockOrigin     ConfigVal[bool]   `json:"lock_origin,omitempty"`
}

// Verify will check that configuration is valid.
//
// Will check that configuration option values are sensible.
func (c *Config) Verify() error {
	msgs := []string{}
	// Check that ffmpeg exists.
	if !fileExists(c.FfmpegPath.Value()) {
		msgs = append(msgs, "invalid ffmpeg path")
	}
	if c.AudioBitrate.Value() == "" {
		msgs = append(msgs, "empty audio bitrate")
	}
	if q := c.ImageQuality.Value(); q < minImageQuality || q > maxImageQuality {
		msgs = append(msgs, fmt.Sprintf("image quality %d not in range %d..%d", q, minImageQuality, maxImageQuality))
	}
	if _, err := transcode.SplitArgs(c.AudioExtraArgs.Value()); err != nil {
		msgs = append(msgs, "invalid audio extra args")
	}
	if _, err := transcode.SplitArgs(c.ImageExtraArgs.Value()); err != nil {
		msgs = append(msgs, "invalid image extra args")
	}
	// Report file should not be nil.
	if c.ReportFileName.Value() == "" {
		msgs = append(msgs, "empty report file name")
	}

	if len(msgs) != 0 {
		return fmt.Errorf("%s: %w", strings.Join(msgs, ", "), ErrInvalidConfig)
	}
	return nil
}

// TranscodeSettings converts configuration into transcode.Settings.
func (c *Config) TranscodeSettings() (transcode.Settings, error) {
	audioExtra, err := transcode.SplitArgs(c.AudioExtraArgs.Value())
	if err != nil {
		return transcode.Settings{}, fmt.Errorf("audio_extra_args: %w", err)
	}
	imageExtra, err := transcode.SplitArgs(c.ImageExtraArgs.Value())
	if err != nil {
		return transcode.Settings{}, fmt.Errorf("image_extra_args: %w", err)
	}
	return transcode.Settings{
		FfmpegPath:     c.FfmpegPath.Value(),
		AudioBitrate:   c.AudioBitrate.Value(),
		ImageQuality:   c.ImageQuality.Value(),
		AudioExtraArgs: audioExtra,
		ImageExtraArgs: imageExtra,
	}, nil
}

// OverrideFrom will overwrite fields from given Config object.
//
// Only fields that are "not-nil" (as per IsNil() method) in src Config object will be
// overwritten.
func (c *Config) OverrideFrom(src Config) {
	// TODO: some way to iterate over fields and set them (reflection?) otherwise need to
	// remember to update this method when new  fields are added.
	if !src.FfmpegPath.IsNil() {
		c.FfmpegPath = src.FfmpegPath
	}
	if !src.AudioBitrate.IsNil() {
		c.AudioBitrate = src.AudioBitrate
	}
	if !src.ImageQuality.IsNil() {
		c.ImageQuality = src.ImageQuality
	}
	if !src.AudioExtraArgs.IsNil() {
		c.AudioExtraArgs = src.AudioExtraArgs
	}
	if !src.ImageExtraArgs.IsNil() {
		c.ImageExtraArgs = src.ImageExtraArgs
	}
	if !src.ReportFileName.IsNil() {
		c.ReportFileName = src.ReportFileName
	}
	if !src.LockOrigin.IsNil() {
		c.LockOrigin = src.LockOrigin
	}
}

// loadDefaultConfig will create a default configuration.
//
// For some configuration options a default value will be specified, for others an
// auto-detection mechanism will populate option values.
func loadDefaultConfig() (Config, error) {
	var cfg Config

	// For default configuration attempt to locate ffmpeg binary.
	ffmpeg, err := tools.FfmpegPath()
	if err != nil {
		return cfg, fmt.Errorf("DefaultConfig: %w", err)
	}

	cfg = Config{
		FfmpegPath:     NewConfigVal(ffmpeg),
		AudioBitrate:   NewConfigVal(transcode.DefaultBitrate),
		ImageQuality:   NewConfigVal(transcode.DefaultQuality),
		AudioExtraArgs: NewConfigVal(""),
		ImageExtraArgs: NewConfigVal(""),
		ReportFileName: NewConfigVal(defaultReportFile),
		LockOrigin:     NewConfigVal(false),
	}

	return cfg, nil
}

// loadConfigFromFile will load configuration from file, format is picked by file
// extension.
func loadConfigFromFile(f string) (cfg Config, err error) {
	fileExt := strings.ToLower(filepath.Ext(f))
	switch fileExt {
	case ".json":
		return loadJSON(f)
	case ".toml":
		return loadTOML(f)
	case ".yaml", ".yml":
		return loadYAML(f)
	default:
		return cfg, fmt.Errorf("unknown config format: %s", fileExt)
	}
}

// LoadConfig will return merged default config and config from file. This is main
// function to use for config loading. Configuration file is optional e.g. can be "".
func LoadConfig(configFile string) (cfg Config, err error) {
	// Initialize default configuration.
	cfg, err = loadDefaultConfig()
	if err != nil {
		return cfg, err
	}

	// Load configuration from file and override default configuration options.
	if configFile != "" {
		c, err := loadConfigFromFile(configFile)
		if err != nil {
			return cfg, err
		}
		// Configuration file can specify full set or partial set of configuration
		// options. So we only want to override those options that have been specified in
		// config file, rest will remain as per default config.
		cfg.OverrideFrom(c)
	}

	return cfg, nil
}

// readConfigFile reads non-empty configuration file.
func readConfigFile(f, format string) ([]byte, error) {
	b, err := os.ReadFile(f)
	if err != nil {
		return nil, fmt.Errorf("config from %s file: %w", format, err)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("%s file is empty: %w", format, ErrInvalidConfig)
	}
	return b, nil
}

func loadJSON(f string) (cfg Config, err error) {
	b, err := readConfigFile(f, "JSON")
	if err != nil {
		return cfg, err
	}

	if err = json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config from JSON document: %w", err)
	}

	return cfg, nil
}

func loadTOML(f string) (cfg Config, err error) {
	b, err := readConfigFile(f, "TOML")
	if err != nil {
		return cfg, err
	}

	var fc fileConfig
	d := toml.NewDecoder(bytes.NewReader(b))
	d.DisallowUnknownFields()
	if err = d.Decode(&fc); err != nil {
		return cfg, fmt.Errorf("config from TOML document: %w", err)
	}

	return fc.config(), nil
}

func loadYAML(f string) (cfg Config, err error) {
	b, err := readConfigFile(f, "YAML")
	if err != nil {
		return cfg, err
	}

	var fc fileConfig
	d := yaml.NewDecoder(bytes.NewReader(b))
	d.KnownFields(true)
	if err = d.Decode(&fc); err != nil {
		return cfg, fmt.Errorf("config from YAML document: %w", err)
	}

	return fc.config(), nil
}

// fileConfig mirrors Config for TOML and YAML documents, nil pointer means option is
// not specified.
type fileConfig struct {
	FfmpegPath     *string `toml:"ffmpeg_path,omitempty" yaml:"ffmpeg_path,omitempty"`
	AudioBitrate   *string `toml:"audio_bitrate,omitempty" yaml:"audio_bitrate,omitempty"`
	ImageQuality   *int    `toml:"image_quality,omitempty" yaml:"image_quality,omitempty"`
	AudioExtraArgs *string `toml:"audio_extra_args,omitempty" yaml:"audio_extra_args,omitempty"`
	ImageExtraArgs *string `toml:"image_extra_args,omitempty" yaml:"image_extra_args,omitempty"`
	ReportFileName *string `toml:"report_file_name,omitempty" yaml:"report_file_name,omitempty"`
	LockOrigin     *bool   `toml:"lock_origin,omitempty" yaml:"lock_origin,omitempty"`
}

func (f fileConfig) config() Config {
	return Config{
		FfmpegPath:     ConfigVal[string]{v: f.FfmpegPath},
		AudioBitrate:   ConfigVal[string]{v: f.AudioBitrate},
		ImageQuality:   ConfigVal[int]{v: f.ImageQuality},
		AudioExtraArgs: ConfigVal[string]{v: f.AudioExtraArgs},
		ImageExtraArgs: ConfigVal[string]{v: f.ImageExtraArgs},
		ReportFileName: ConfigVal[string]{v: f.ReportFileName},
		LockOrigin:     ConfigVal[bool]{v: f.LockOrigin},
	}
}

func newFileConfig(c Config) fileConfig {
	return fileConfig{
		FfmpegPath:     c.FfmpegPath.v,
		AudioBitrate:   c.AudioBitrate.v,
		ImageQuality:   c.ImageQuality.v,
		AudioExtraArgs: c.AudioExtraArgs.v,
		ImageExtraArgs: c.ImageExtraArgs.v,
		ReportFileName: c.ReportFileName.v,
		LockOrigin:     c.LockOrigin.v,
	}
}

// In order to support Config overriding we have to implement wrapper type for Config
// fields. Otherwise it is hard to distinguish skipped fields, for instance when loading
// partial configuration from file: in that case it would be impossible to  distinguish
// between say string fields zero value and empty string values as explicitly specified in
// configuration file.

// NewConfigVal is constructor for ConfigVal. It will wrap its argument into ConfigVal.
func NewConfigVal[T any](v T) ConfigVal[T] {
	return ConfigVal[T]{v: &v}
}

// ConfigVal is a wrapper for Config field value.
type ConfigVal[T any] struct {
	// Store wrapped value as pointer in order to have ability to distinguish between
	// unspecified ConfigVal and a value that is the same as zero value for wrapped type.
	// In this case a zero value for pointer is nil.
	//
	// For example a zero value for string is "" which is impossible to distinguish from
	// explicit empty string "".
	v *T
}

// Value will return wrapped value.
//
// In case field has not been defined e.g. is zero value, then appropriate zero value of
// wrapped type will be returned.
func (o *ConfigVal[T]) Value() T {
	if o.IsNil() {
		var v T
		return v
	}
	return *o.v
}

// IsNil check if wrapped value is nil.
func (o *ConfigVal[T]) IsNil() bool {
	// Zero value for pointer type is nil.
	return o.v == nil
}

// UnmarshalJSON implements json.Unmarshaler interface for ConfigVal.
func (o *ConfigVal[T]) UnmarshalJSON(b []byte) error {
	var val T
	err := json.Unmarshal(b, &val)
	if err != nil {
		return err
	}
	o.v = &val
	return nil
}

// MarshalJSON implements json.Marshaler interface for ConfigVal.
func (o ConfigVal[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Value())
}

// fileExists checks that path exists and is a regular file.
func fileExists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}

func CreateDumpConfCommand() *DumpConfApp {
	longHelp := `Command "dump-conf" will print actual application configuration taking into account
configuration file provided and default configuration values.

Examples:

	framestrip dump-conf
	framestrip dump-conf -conf path/to/config.toml -format yaml`

	app := &DumpConfApp{
		fs:  flag.NewFlagSet("dump-conf", flag.ContinueOnError),
		gf:  globalFlags{},
		out: os.Stdout,
	}
	app.gf.Register(app.fs)
	app.fs.StringVar(&app.flFormat, "format", "json", "Output format: json, toml or yaml")
	app.fs.Usage = func() {
		printSubCommandUsage(longHelp, app.fs)
	}

	return app
}

// Also define command "dump-conf" here.

// Make sure App implements Commander interface.
var _ Commander = (*DumpConfApp)(nil)

// DumpConfApp is subcommand application context that implements Commander interface.
// Although this is very simple application, but for consistency sake is is implemented in
// similar style as other subcommands.
type DumpConfApp struct {
	out      io.Writer
	fs       *flag.FlagSet
	gf       globalFlags
	flFormat string
}

// Run is main entry point into DumpConfApp execution.
func (d *DumpConfApp) Run(args []string) error {
	if err := d.fs.Parse(args); err != nil {
		return &AppError{
			exitCode: 2,
			msg:      "usage error",
		}
	}

	d.gf.Apply()

	// Load application configuration.
	cfg, err := LoadConfig(d.gf.ConfFile)
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	switch strings.ToLower(d.flFormat) {
	case "json":
		enc := json.NewEncoder(d.out)
		enc.SetIndent("", "  ")
		err = enc.Encode(cfg)
	case "toml":
		err = toml.NewEncoder(d.out).Encode(newFileConfig(cfg))
	case "yaml", "yml":
		enc := yaml.NewEncoder(d.out)
		enc.SetIndent(2)
		err = enc.Encode(newFileConfig(cfg))
		if err == nil {
			err = enc.Close()
		}
	default:
		return &AppError{exitCode: 2, msg: fmt.Sprintf("unknown format: %s", d.flFormat)}
	}
	if err != nil {
		return &AppError{exitCode: 1, msg: err.Error()}
	}

	// Also, report if configuration is valid.
	if err := cfg.Verify(); err != nil {
		return &AppError{exitCode: 1, msg: fmt.Sprintf("configuration validation: %s", err)}
	}

	return nil
}
