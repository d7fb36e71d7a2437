// Package config provides configuration management for psbuild using Viper
// for loading from files, environment variables, and command-line flags.
//
// The configuration system supports YAML files and environment variable
// overrides with the PSBUILD_ prefix. It names the project files the
// pipeline reads and writes, the compile task layout, and the template
// documents that get cachebusted. Every key has a default matching the
// client repository's layout, so a project without a config file works.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/conneroisu/psbuild/internal/build"
	"github.com/conneroisu/psbuild/internal/cachebust"
	perrors "github.com/conneroisu/psbuild/internal/errors"
)

type Config struct {
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths" json:"paths"`
	Compile   CompileConfig   `mapstructure:"compile" yaml:"compile" json:"compile"`
	Cachebust CachebustConfig `mapstructure:"cachebust" yaml:"cachebust" json:"cachebust"`
	Version   VersionConfig   `mapstructure:"version" yaml:"version" json:"version"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch" json:"watch"`
}

// PathsConfig holds root-relative locations of the pipeline's inputs and
// outputs.
type PathsConfig struct {
	Routes     string `mapstructure:"routes" yaml:"routes" json:"routes"`
	Config     string `mapstructure:"config" yaml:"config" json:"config"`
	ConfigCopy string `mapstructure:"config_copy" yaml:"config_copy" json:"config_copy"`
	Package    string `mapstructure:"package" yaml:"package" json:"package"`
	Babelrc    string `mapstructure:"babelrc" yaml:"babelrc" json:"babelrc"`
	CacheDir   string `mapstructure:"cache_dir" yaml:"cache_dir" json:"cache_dir"`
}

type CompileConfig struct {
	Command       string     `mapstructure:"command" yaml:"command" json:"command"`
	Ignore        []string   `mapstructure:"ignore" yaml:"ignore" json:"ignore"`
	Client        TaskConfig `mapstructure:"client" yaml:"client" json:"client"`
	Replays       TaskConfig `mapstructure:"replays" yaml:"replays" json:"replays"`
	BattleData    TaskConfig `mapstructure:"battle_data" yaml:"battle_data" json:"battle_data"`
	Graphics      TaskConfig `mapstructure:"graphics" yaml:"graphics" json:"graphics"`
	ChatFormatter TaskConfig `mapstructure:"chat_formatter" yaml:"chat_formatter" json:"chat_formatter"`
}

// TaskConfig overrides one compile task. Empty fields keep the default.
type TaskConfig struct {
	Source  string   `mapstructure:"source" yaml:"source,omitempty" json:"source,omitempty"`
	Sources []string `mapstructure:"sources" yaml:"sources,omitempty" json:"sources,omitempty"`
	Output  string   `mapstructure:"output" yaml:"output,omitempty" json:"output,omitempty"`
}

type CachebustConfig struct {
	ReplayDir string           `mapstructure:"replay_dir" yaml:"replay_dir" json:"replay_dir"`
	Documents []DocumentConfig `mapstructure:"documents" yaml:"documents" json:"documents"`
}

type DocumentConfig struct {
	Template string `mapstructure:"template" yaml:"template" json:"template"`
	Mode     string `mapstructure:"mode" yaml:"mode" json:"mode"`
}

type VersionConfig struct {
	Upstream string `mapstructure:"upstream" yaml:"upstream" json:"upstream"`
}

type WatchConfig struct {
	Debounce string `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

// EnvPrefix prefixes environment variables that override config keys.
const EnvPrefix = "PSBUILD"

// keys lists every scalar and list key so environment overrides reach
// Unmarshal without a config file declaring them.
var keys = []string{
	"paths.routes",
	"paths.config",
	"paths.config_copy",
	"paths.package",
	"paths.babelrc",
	"paths.cache_dir",
	"compile.command",
	"compile.ignore",
	"cachebust.replay_dir",
	"version.upstream",
	"watch.debounce",
}

// EnvKeyReplacer maps "paths.cache_dir" to PSBUILD_PATHS_CACHE_DIR.
func EnvKeyReplacer() *strings.Replacer {
	return strings.NewReplacer(".", "_")
}

// BindEnv binds every config key to its environment variable.
func BindEnv(v *viper.Viper) {
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// Load reads the configuration from the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v, applies defaults and validates
// the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		invalid := perrors.NewValidationError("CONFIG_INVALID", "invalid configuration")
		invalid.Cause = err
		return nil, invalid
	}

	return config, nil
}

// Decode reads the configuration from v and applies defaults without
// validating it.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle ignore set via viper (workaround for viper slice handling)
	if v.IsSet("compile.ignore") && len(config.Compile.Ignore) == 0 {
		config.Compile.Ignore = v.GetStringSlice("compile.ignore")
	}

	applyDefaults(&config, v.IsSet("compile.ignore"))

	return &config, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	var config Config
	applyDefaults(&config, false)
	return &config
}

func applyDefaults(config *Config, ignoreSet bool) {
	if config.Paths.Routes == "" {
		config.Paths.Routes = "config/routes.json"
	}
	if config.Paths.Config == "" {
		config.Paths.Config = "config/config.js"
	}
	if config.Paths.ConfigCopy == "" {
		config.Paths.ConfigCopy = "play.pokemonshowdown.com/config/config.js"
	}
	if config.Paths.Package == "" {
		config.Paths.Package = "package.json"
	}
	if config.Paths.Babelrc == "" {
		config.Paths.Babelrc = ".babelrc"
	}
	if config.Paths.CacheDir == "" {
		config.Paths.CacheDir = ".psbuild/cache"
	}

	if config.Compile.Command == "" {
		config.Compile.Command = build.DefaultCommand
	}
	// An explicitly empty ignore list is kept: it compiles the animation
	// sources on every run.
	if !ignoreSet && len(config.Compile.Ignore) == 0 {
		config.Compile.Ignore = append([]string(nil), build.DefaultIgnore...)
	}

	if config.Cachebust.ReplayDir == "" {
		config.Cachebust.ReplayDir = "replay.pokemonshowdown.com"
	}
	if len(config.Cachebust.Documents) == 0 {
		for _, doc := range cachebust.DefaultDocuments() {
			config.Cachebust.Documents = append(config.Cachebust.Documents, DocumentConfig{
				Template: doc.Template,
				Mode:     doc.Mode.String(),
			})
		}
	}

	if config.Version.Upstream == "" {
		config.Version.Upstream = "origin/master"
	}

	if config.Watch.Debounce == "" {
		config.Watch.Debounce = "200ms"
	}
}

// Layout returns the compile task set with the configured overrides
// applied to the default layout.
func (c *Config) Layout() build.Layout {
	layout := build.DefaultLayout()
	layout.Client = c.Compile.Client.apply(layout.Client)
	layout.Replays = c.Compile.Replays.apply(layout.Replays)
	layout.BattleData = c.Compile.BattleData.apply(layout.BattleData)
	layout.Graphics = c.Compile.Graphics.apply(layout.Graphics)
	layout.ChatFormatter = c.Compile.ChatFormatter.apply(layout.ChatFormatter)

	return layout
}

func (tc TaskConfig) apply(task build.Task) build.Task {
	if tc.Source != "" {
		task.Source = tc.Source
	}
	if len(tc.Sources) > 0 {
		task.Sources = append([]string(nil), tc.Sources...)
	}
	if tc.Output != "" {
		task.Output = tc.Output
	}

	return task
}

// Documents returns the configured template documents.
func (c *Config) Documents() ([]cachebust.Document, error) {
	docs := make([]cachebust.Document, 0, len(c.Cachebust.Documents))
	for _, dc := range c.Cachebust.Documents {
		mode, ok := cachebust.ParseMode(dc.Mode)
		if !ok {
			return nil, fmt.Errorf("document %s: unknown mode %q", dc.Template, dc.Mode)
		}
		docs = append(docs, cachebust.Document{Template: dc.Template, Mode: mode})
	}

	return docs, nil
}
