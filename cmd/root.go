// Package cmd provides the psbuild command-line interface.
//
// Configuration System:
//
//	The CLI reads configuration from several sources with clear precedence:
//	1. Command-line flags (--root, --config, --log-level) - highest priority
//	2. PSBUILD_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (PSBUILD_PATHS_ROUTES, etc.)
//	4. Configuration file (.psbuild.yml in the project root) - lowest priority
//
// A .env file in the working directory is loaded before the environment is
// consulted, so the variables above may also live there.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/psbuild/internal/build"
	"github.com/conneroisu/psbuild/internal/config"
	"github.com/conneroisu/psbuild/internal/console"
	"github.com/conneroisu/psbuild/internal/logging"
	"github.com/conneroisu/psbuild/internal/pipeline"
)

var (
	cfgFile   string
	rootDir   string
	logLevel  string
	logFormat string

	// compilerOverride replaces the babel compiler when set.
	compilerOverride build.Compiler
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "psbuild [full]",
	Short: "Build the client's static assets",
	Long: `psbuild stamps the runtime config with the build version and route table,
compiles the client sources with babel, and rewrites the HTML and script
templates so every asset reference carries a content-hash cachebuster.

Running without arguments performs a routine build: the animation sources
are only compiled when their bundle is missing. "full" compiles everything,
including the chat formatter.

Examples:
  psbuild                      Routine build
  psbuild full                 Full rebuild
  psbuild watch                Rebuild on changes
  psbuild routes -o json       Print the route table
  psbuild version              Print the build version`,
	Args:          cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs:     []string{"full"},
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runBuild,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// SIGINT and SIGTERM cancel the command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
	}
	return err
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "project root")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is .psbuild.yml in the root, can also use PSBUILD_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	AddFlagValidation(rootCmd.PersistentFlags(), "log-level", ValidateLogLevel)
	AddFlagValidation(rootCmd.PersistentFlags(), "log-format", OneOf("text", "json"))
}

// initConfig initializes the configuration system.
//
// Configuration Loading Priority (highest to lowest):
//  1. --config flag
//  2. PSBUILD_CONFIG_FILE environment variable
//  3. .psbuild.yml in the project root, when present
func initConfig() {
	// Missing .env is the common case.
	_ = godotenv.Load()

	viper.Reset()

	switch {
	case cfgFile != "":
		viper.SetConfigFile(cfgFile)
	case os.Getenv(config.EnvPrefix+"_CONFIG_FILE") != "":
		viper.SetConfigFile(os.Getenv(config.EnvPrefix + "_CONFIG_FILE"))
	default:
		viper.AddConfigPath(rootDir)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".psbuild")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(config.EnvKeyReplacer())
	viper.AutomaticEnv()
	config.BindEnv(viper.GetViper())
}

// loadConfig reads the config file, if any, and returns the resolved
// configuration. An explicitly named file must exist.
func loadConfig() (*config.Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

func newLogger(cmd *cobra.Command) (logging.Logger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}

	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    logFormat,
		Output:    cmd.ErrOrStderr(),
		Component: "psbuild",
	}), nil
}

// newPipeline wires a pipeline for the current flags and configuration.
func newPipeline(cmd *cobra.Command) (*pipeline.Pipeline, logging.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, nil, err
	}

	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving project root: %w", err)
	}

	p := pipeline.New(root, cfg, console.New(cmd.OutOrStdout()), logger)
	if compilerOverride != nil {
		p.Compiler = compilerOverride
	}
	logger.Debug(cmd.Context(), "configuration loaded", "root", root, "config", viper.ConfigFileUsed())

	return p, logger, nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	p, _, err := newPipeline(cmd)
	if err != nil {
		return err
	}

	full := len(args) == 1 && args[0] == "full"
	_, err = p.Run(cmd.Context(), full)

	return err
}
