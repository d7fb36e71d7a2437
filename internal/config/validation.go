package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/conneroisu/psbuild/internal/build"
	"github.com/conneroisu/psbuild/internal/cachebust"
	"github.com/conneroisu/psbuild/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(title string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(title + ":\n")
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  - %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    hint: %s\n", suggestion))
			}
		}
	}

	write("Validation errors", vr.Errors)
	write("Validation warnings", vr.Warnings)

	return builder.String()
}

// ValidateConfigWithDetails performs comprehensive validation with detailed feedback
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{
		Errors:   []ValidationError{},
		Warnings: []ValidationError{},
	}

	validatePathsConfigDetails(&config.Paths, result)
	validateCompileConfigDetails(config, result)
	validateCachebustConfigDetails(&config.Cachebust, result)
	validateWatchConfigDetails(&config.Watch, result)

	result.Valid = !result.HasErrors()

	return result
}

// validateConfig returns the first validation error, if any.
func validateConfig(config *Config) error {
	result := ValidateConfigWithDetails(config)
	if result.HasErrors() {
		return &result.Errors[0]
	}

	return nil
}

func validatePathsConfigDetails(config *PathsConfig, result *ValidationResult) {
	fields := []struct {
		name, value string
	}{
		{"paths.routes", config.Routes},
		{"paths.config", config.Config},
		{"paths.config_copy", config.ConfigCopy},
		{"paths.package", config.Package},
		{"paths.babelrc", config.Babelrc},
		{"paths.cache_dir", config.CacheDir},
	}

	for _, f := range fields {
		if err := validatePath(f.value); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   f.name,
				Value:   f.value,
				Message: err.Error(),
				Suggestions: []string{
					"Use a path relative to the project root",
					"Avoid parent directory references (..)",
				},
			})
		}
	}

	if config.Config != "" && config.Config == config.ConfigCopy {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "paths.config_copy",
			Value:   config.ConfigCopy,
			Message: "config copy is the same file as the config",
		})
	}
}

func validateCompileConfigDetails(config *Config, result *ValidationResult) {
	if err := build.ValidateCommandName(config.Compile.Command); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "compile.command",
			Value:   config.Compile.Command,
			Message: err.Error(),
			Suggestions: []string{
				fmt.Sprintf("Use '%s' after running npm install", build.DefaultCommand),
				"Use 'npx' to run babel through npm",
			},
		})
	}

	for _, ignored := range config.Compile.Ignore {
		if err := validatePath(ignored); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "compile.ignore",
				Value:   ignored,
				Message: err.Error(),
			})
		}
	}

	layout := config.Layout()
	tasks := []struct {
		field string
		task  build.Task
	}{
		{"compile.client", layout.Client},
		{"compile.replays", layout.Replays},
		{"compile.battle_data", layout.BattleData},
		{"compile.graphics", layout.Graphics},
		{"compile.chat_formatter", layout.ChatFormatter},
	}
	for _, t := range tasks {
		paths := append([]string{t.task.Output}, t.task.Sources...)
		if t.task.Kind == build.TaskDir {
			paths = append(paths, t.task.Source)
		}
		for _, p := range paths {
			if err := validatePath(p); err != nil {
				result.Errors = append(result.Errors, ValidationError{
					Field:   t.field,
					Value:   p,
					Message: err.Error(),
				})
			}
		}
	}
}

func validateCachebustConfigDetails(config *CachebustConfig, result *ValidationResult) {
	if err := validatePath(config.ReplayDir); err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "cachebust.replay_dir",
			Value:   config.ReplayDir,
			Message: err.Error(),
		})
	}

	for _, doc := range config.Documents {
		if err := validatePath(doc.Template); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Field:   "cachebust.documents",
				Value:   doc.Template,
				Message: err.Error(),
			})
			continue
		}
		if _, ok := cachebust.ParseMode(doc.Mode); !ok {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "cachebust.documents",
				Value:       doc.Mode,
				Message:     fmt.Sprintf("unknown mode %q for %s", doc.Mode, doc.Template),
				Suggestions: []string{"Use 'rewrite' or 'domains'"},
			})
		}
		if cachebust.OutputName(doc.Template) == doc.Template {
			result.Errors = append(result.Errors, ValidationError{
				Field:       "cachebust.documents",
				Value:       doc.Template,
				Message:     "template name has no .template. infix, output would overwrite it",
				Suggestions: []string{"Name templates like index.template.html"},
			})
		}
	}
}

func validateWatchConfigDetails(config *WatchConfig, result *ValidationResult) {
	d, err := time.ParseDuration(config.Debounce)
	if err != nil || d < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:       "watch.debounce",
			Value:       config.Debounce,
			Message:     "debounce must be a non-negative duration",
			Suggestions: []string{"Use a value like '200ms'"},
		})
		return
	}

	if d > 5*time.Second {
		result.Warnings = append(result.Warnings, ValidationError{
			Field:   "watch.debounce",
			Value:   config.Debounce,
			Message: "long debounce delays rebuilds noticeably",
		})
	}
}

// validatePath validates a root-relative file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	return validation.ValidateArgument(path)
}

// DebounceDuration returns the parsed watch debounce.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return 200 * time.Millisecond
	}

	return d
}
