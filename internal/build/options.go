package build

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"

	"github.com/tidwall/jsonc"

	perrors "github.com/conneroisu/psbuild/internal/errors"
)

// DefaultIgnore holds the generated animation sources that routine runs skip.
var DefaultIgnore = []string{
	"src/battle-animations.ts",
	"src/battle-animations-moves.ts",
}

// Options configures a compile invocation.
type Options struct {
	// ConfigFile is the shared compiler options file, relative to the root.
	ConfigFile string
	// Raw is the parsed content of ConfigFile. It is shared between copies
	// and must not be modified.
	Raw map[string]any
	// Ignore lists root-relative paths that are never compiled.
	Ignore []string
	// Incremental reuses previous output when the source is unchanged.
	Incremental bool
	// NoBabelrc disables discovery of config files in ancestor directories,
	// which would otherwise pick up the build config of vendored caches.
	NoBabelrc bool
}

// WithoutIgnore returns a copy of o with the ignore set removed.
func (o Options) WithoutIgnore() Options {
	o.Ignore = nil
	return o
}

// Ignores reports whether rel (root-relative, slash separated) is in the
// ignore set or below an ignored directory.
func (o Options) Ignores(rel string) bool {
	rel = filepath.ToSlash(filepath.Clean(rel))
	for _, ignored := range o.Ignore {
		ignored = filepath.ToSlash(filepath.Clean(ignored))
		if rel == ignored || (len(rel) > len(ignored) && rel[:len(ignored)] == ignored && rel[len(ignored)] == '/') {
			return true
		}
	}

	return false
}

// LoadOptions derives the base options from the shared compiler options
// file. The file may contain comments and trailing commas. A missing or
// malformed file is fatal.
func LoadOptions(root, configFile string, ignore []string) (Options, error) {
	data, err := os.ReadFile(filepath.Join(root, configFile))
	if err != nil {
		return Options{}, perrors.NewConfigError("COMPILER_OPTIONS_UNREADABLE",
			"cannot read compiler options", err).WithFile(configFile)
	}

	var raw map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &raw); err != nil {
		return Options{}, perrors.NewConfigError("COMPILER_OPTIONS_MALFORMED",
			"cannot parse compiler options", err).WithFile(configFile)
	}
	if raw == nil {
		return Options{}, perrors.NewConfigError("COMPILER_OPTIONS_MALFORMED",
			"compiler options must be an object", nil).WithFile(configFile)
	}

	if ignore == nil {
		ignore = DefaultIgnore
	}

	return Options{
		ConfigFile:  configFile,
		Raw:         raw,
		Ignore:      slices.Clone(ignore),
		Incremental: true,
		NoBabelrc:   true,
	}, nil
}
