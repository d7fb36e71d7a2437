package version

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	perrors "github.com/conneroisu/psbuild/internal/errors"
	"github.com/conneroisu/psbuild/internal/logging"
	"github.com/conneroisu/psbuild/internal/routes"
)

const (
	BeginMarker = "/*** Begin automatically generated configuration ***/"
	EndMarker   = "/*** End automatically generated configuration ***/"
)

// generatedBlock spans the first begin marker to the last end marker, so
// stacked blocks collapse into one.
var generatedBlock = regexp.MustCompile(
	`(?s)` + regexp.QuoteMeta(BeginMarker) + `.*` + regexp.QuoteMeta(EndMarker) + `\r?\n?`,
)

// Block renders the generated configuration block, markers included.
func Block(version string, t routes.Table) string {
	literal, err := json.Marshal(version)
	if err != nil {
		// strings always marshal
		literal = []byte(`""`)
	}

	var b strings.Builder
	b.WriteString(BeginMarker + "\n")
	b.WriteString("Config.version = " + string(literal) + ";\n")
	b.WriteString("\n")
	b.WriteString("Config.routes = {\n")
	for _, key := range routes.Keys {
		value, _ := t.Get(key)
		b.WriteString("\t" + key + ": '" + value + "',\n")
	}
	b.WriteString("};\n")
	b.WriteString(EndMarker + "\n")

	return b.String()
}

// Splice replaces the first generated block in existing with block, or
// appends block when existing has none.
func Splice(existing, block string) string {
	if loc := generatedBlock.FindStringIndex(existing); loc != nil {
		return existing[:loc[0]] + block + existing[loc[1]:]
	}

	if existing != "" && !strings.HasSuffix(existing, "\n") {
		existing += "\n"
	}

	return existing + block
}

// Stamper writes the generated block into the runtime config file and its
// deployed copy.
type Stamper struct {
	Root       string
	ConfigPath string
	CopyPath   string
	Release    string
	Upstream   string
	Revisions  RevisionSource
	Logger     logging.Logger
}

// Stamp resolves the build version, splices it into the config file and
// duplicates the result byte for byte. It returns the version written.
func (s *Stamper) Stamp(ctx context.Context, t routes.Table) (string, error) {
	version := Resolve(ctx, s.Release, s.Revisions, s.Upstream)

	configFile := filepath.Join(s.Root, s.ConfigPath)
	existing, err := os.ReadFile(configFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", perrors.NewIOError("CONFIG_UNREADABLE", "cannot read runtime config", err).
			WithFile(s.ConfigPath)
	}

	updated := []byte(Splice(string(existing), Block(version, t)))

	if err := writeFile(configFile, updated); err != nil {
		return "", perrors.NewIOError("CONFIG_WRITE_FAILED", "cannot write runtime config", err).
			WithFile(s.ConfigPath)
	}
	if s.CopyPath != "" {
		if err := writeFile(filepath.Join(s.Root, s.CopyPath), updated); err != nil {
			return "", perrors.NewIOError("CONFIG_WRITE_FAILED", "cannot write runtime config copy", err).
				WithFile(s.CopyPath)
		}
	}

	if s.Logger != nil {
		s.Logger.Debug(ctx, "stamped runtime config", "version", version, "config", s.ConfigPath, "copy", s.CopyPath)
	}

	return version, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
