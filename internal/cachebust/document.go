package cachebust

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	perrors "github.com/conneroisu/psbuild/internal/errors"
	"github.com/conneroisu/psbuild/internal/logging"
	"github.com/conneroisu/psbuild/internal/validation"
)

// Mode selects how a template document is rewritten.
type Mode int

const (
	// ModeRewrite rewrites each asset reference and appends cachebusters.
	ModeRewrite Mode = iota
	// ModeDomains only substitutes the client domain literal.
	ModeDomains
)

// String returns the string representation of the Mode
func (m Mode) String() string {
	switch m {
	case ModeRewrite:
		return "rewrite"
	case ModeDomains:
		return "domains"
	default:
		return "unknown"
	}
}

// ParseMode parses the configuration spelling of a Mode.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(s) {
	case "", "rewrite":
		return ModeRewrite, true
	case "domains":
		return ModeDomains, true
	default:
		return ModeRewrite, false
	}
}

// Document is a template whose rewritten form is served.
type Document struct {
	// Template is the root-relative path of the ".template." source.
	Template string
	Mode     Mode
}

// Output returns the root-relative path the document is emitted to.
func (d Document) Output() string {
	return OutputName(d.Template)
}

// DefaultDocuments returns the client's template documents.
func DefaultDocuments() []Document {
	return []Document{
		{Template: "play.pokemonshowdown.com/index.template.html", Mode: ModeRewrite},
		{Template: "play.pokemonshowdown.com/preactalpha.template.html", Mode: ModeRewrite},
		{Template: "play.pokemonshowdown.com/crossprotocol.template.html", Mode: ModeRewrite},
		{Template: "replay.pokemonshowdown.com/index.template.php", Mode: ModeRewrite},
		{Template: "play.pokemonshowdown.com/js/replay-embed.template.js", Mode: ModeDomains},
	}
}

// OutputName drops the ".template" infix from the file name of template.
func OutputName(template string) string {
	dir, file := path.Split(filepath.ToSlash(template))
	return dir + strings.Replace(file, ".template.", ".", 1)
}

// Processor rewrites and emits documents below a project root.
type Processor struct {
	Root     string
	Rewriter *Rewriter
	Logger   logging.Logger
}

// Process reads doc's template, rewrites it and writes the served file.
// A missing template or a failed write is fatal.
func (p *Processor) Process(ctx context.Context, doc Document) error {
	src, err := validation.WithinRoot(p.Root, doc.Template)
	if err != nil {
		return perrors.NewIOError("TEMPLATE_INVALID", "invalid template path", err).
			WithPhase("cachebust").WithFile(doc.Template)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return perrors.NewIOError("TEMPLATE_UNREADABLE", "cannot read template", err).
			WithPhase("cachebust").WithFile(doc.Template)
	}

	var text string
	switch doc.Mode {
	case ModeDomains:
		text = RewriteDomains(string(data), p.Rewriter.routes)
	default:
		text = p.Rewriter.Rewrite(string(data))
	}

	out := doc.Output()
	if err := Emit(p.Root, out, text); err != nil {
		return perrors.NewIOError("TEMPLATE_WRITE_FAILED", "cannot write document", err).
			WithPhase("cachebust").WithFile(out)
	}

	if p.Logger != nil {
		p.Logger.Debug(ctx, "emitted document", "template", doc.Template, "output", out, "mode", doc.Mode.String())
	}

	return nil
}

// Emit atomically writes text to rel below root.
func Emit(root, rel, text string) error {
	target, err := validation.WithinRoot(root, rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.WriteString(tmp, text); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), target)
}

// DirReader reads files below a directory through os.Root, so names that
// would escape the directory fail like missing files.
type DirReader struct {
	root *os.Root
}

// OpenDir opens dir for reading.
func OpenDir(dir string) (*DirReader, error) {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, err
	}
	return &DirReader{root: root}, nil
}

// ReadFile implements FileReader.
func (d *DirReader) ReadFile(name string) ([]byte, error) {
	f, err := d.root.Open(filepath.FromSlash(name))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// Close releases the directory handle.
func (d *DirReader) Close() error {
	return d.root.Close()
}
