package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/conneroisu/psbuild/internal/logging"
	"github.com/conneroisu/psbuild/internal/validation"
)

// DefaultCommand is the babel executable installed by the client's npm
// dependencies.
const DefaultCommand = "node_modules/.bin/babel"

var allowedCommands = map[string]bool{
	DefaultCommand: true,
	"babel":        true,
	"npx":          true,
}

// ValidateCommandName reports whether command may be used as the compiler.
func ValidateCommandName(command string) error {
	return validation.ValidateCommand(command, allowedCommands)
}

var sourceExtensions = map[string]bool{
	".js":  true,
	".jsx": true,
	".ts":  true,
	".tsx": true,
}

// runFunc runs name with args in dir and returns its combined output.
type runFunc func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// ExecCompiler compiles tasks by running the babel CLI in the project root.
type ExecCompiler struct {
	root     string
	command  string
	prefix   []string
	manifest *Manifest
	logger   logging.Logger
	run      runFunc
}

// NewExecCompiler creates a compiler rooted at root. command defaults to
// DefaultCommand; "npx" runs babel through npx. manifest may be nil, in
// which case incremental runs always recompile.
func NewExecCompiler(root, command string, manifest *Manifest, logger logging.Logger) *ExecCompiler {
	if command == "" {
		command = DefaultCommand
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var prefix []string
	if command == "npx" {
		prefix = []string{"babel"}
	}

	return &ExecCompiler{
		root:     root,
		command:  command,
		prefix:   prefix,
		manifest: manifest,
		logger:   logger.WithComponent("compiler"),
		run:      runCommand,
	}
}

func runCommand(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	return cmd.CombinedOutput()
}

// Compile implements Compiler.
func (c *ExecCompiler) Compile(ctx context.Context, task Task, opts Options) (int, error) {
	if err := ValidateCommandName(c.command); err != nil {
		return 0, fmt.Errorf("command validation failed: %w", err)
	}

	var (
		n   int
		err error
	)
	switch task.Kind {
	case TaskDir:
		n, err = c.compileDir(ctx, task, opts)
	case TaskFiles:
		n, err = c.compileFiles(ctx, task, opts)
	default:
		return 0, fmt.Errorf("task %s: unknown kind %d", task.Name, task.Kind)
	}
	if err != nil {
		return 0, err
	}

	if c.manifest != nil {
		if err := c.manifest.Save(); err != nil {
			return n, fmt.Errorf("saving compile manifest: %w", err)
		}
	}

	return n, nil
}

type source struct {
	rel         string
	fingerprint string
}

func (c *ExecCompiler) compileDir(ctx context.Context, task Task, opts Options) (int, error) {
	sources, single, err := c.collect(task.Source, opts)
	if err != nil {
		return 0, fmt.Errorf("task %s: %w", task.Name, err)
	}

	incremental := opts.Incremental && c.manifest != nil && c.manifest.Known(task.Output)

	// First build of this output: one babel run over the whole tree.
	if !incremental && !single {
		args := []string{task.Source, "--out-dir", task.Output, "--extensions", ".ts,.tsx,.js,.jsx"}
		if len(opts.Ignore) > 0 {
			args = append(args, "--ignore", strings.Join(opts.Ignore, ","))
		}
		if err := c.invoke(ctx, task.Output, args, opts); err != nil {
			return 0, fmt.Errorf("task %s: %w", task.Name, err)
		}
		for _, s := range sources {
			c.record(task.Output, s)
		}
		return len(sources), nil
	}

	base := task.Source
	if single {
		base = filepath.Dir(task.Source)
	}

	compiled := 0
	for _, s := range sources {
		rel, err := filepath.Rel(base, s.rel)
		if err != nil {
			return compiled, fmt.Errorf("task %s: %w", task.Name, err)
		}
		out := filepath.Join(task.Output, strings.TrimSuffix(rel, filepath.Ext(rel))+".js")

		if incremental && c.manifest.Fresh(task.Output, s.rel, s.fingerprint) &&
			fileExists(filepath.Join(c.root, out)) {
			continue
		}

		if err := c.invoke(ctx, out, []string{s.rel, "--out-file", out}, opts); err != nil {
			return compiled, fmt.Errorf("task %s: %w", task.Name, err)
		}
		c.record(task.Output, s)
		compiled++
	}

	return compiled, nil
}

func (c *ExecCompiler) compileFiles(ctx context.Context, task Task, opts Options) (int, error) {
	var sources []source
	for _, rel := range task.Sources {
		if opts.Ignores(rel) {
			continue
		}
		s, err := c.fingerprint(rel)
		if err != nil {
			return 0, fmt.Errorf("task %s: %w", task.Name, err)
		}
		sources = append(sources, s)
	}
	if len(sources) == 0 {
		return 0, nil
	}

	if opts.Incremental && c.manifest != nil && fileExists(filepath.Join(c.root, task.Output)) {
		fresh := true
		for _, s := range sources {
			if !c.manifest.Fresh(task.Output, s.rel, s.fingerprint) {
				fresh = false
				break
			}
		}
		if fresh {
			return 0, nil
		}
	}

	args := make([]string, 0, len(sources)+2)
	for _, s := range sources {
		args = append(args, s.rel)
	}
	args = append(args, "--out-file", task.Output)

	if err := c.invoke(ctx, task.Output, args, opts); err != nil {
		return 0, fmt.Errorf("task %s: %w", task.Name, err)
	}
	for _, s := range sources {
		c.record(task.Output, s)
	}

	return len(sources), nil
}

// collect lists the compilable sources under src, which may be a single
// file. The boolean result reports the single-file case.
func (c *ExecCompiler) collect(src string, opts Options) ([]source, bool, error) {
	abs, err := validation.WithinRoot(c.root, src)
	if err != nil {
		return nil, false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, false, err
	}

	if !info.IsDir() {
		if opts.Ignores(src) {
			return nil, true, nil
		}
		s, err := c.fingerprint(src)
		if err != nil {
			return nil, true, err
		}
		return []source{s}, true, nil
	}

	var sources []source
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		if opts.Ignores(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !compilable(path) {
			return nil
		}

		s, err := c.fingerprint(rel)
		if err != nil {
			return err
		}
		sources = append(sources, s)

		return nil
	})

	return sources, false, err
}

func compilable(path string) bool {
	if strings.HasSuffix(path, ".d.ts") {
		return false
	}
	return sourceExtensions[filepath.Ext(path)]
}

func (c *ExecCompiler) fingerprint(rel string) (source, error) {
	abs, err := validation.WithinRoot(c.root, rel)
	if err != nil {
		return source{}, err
	}
	fp, err := Fingerprint(abs)
	if err != nil {
		return source{}, err
	}

	return source{rel: filepath.ToSlash(rel), fingerprint: fp}, nil
}

func (c *ExecCompiler) record(output string, s source) {
	if c.manifest != nil {
		c.manifest.Record(output, s.rel, s.fingerprint)
	}
}

// invoke runs the compiler with args plus the option flags. out is the
// output path whose parent directory must exist beforehand.
func (c *ExecCompiler) invoke(ctx context.Context, out string, args []string, opts Options) error {
	if opts.NoBabelrc {
		args = append(args, "--no-babelrc")
	}
	if opts.ConfigFile != "" {
		args = append(args, "--config-file", "./"+filepath.ToSlash(opts.ConfigFile))
	}
	args = append(append([]string{}, c.prefix...), args...)

	for _, arg := range args {
		if err := validation.ValidateArgument(arg); err != nil {
			return fmt.Errorf("invalid argument '%s': %w", arg, err)
		}
	}

	target, err := validation.WithinRoot(c.root, out)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	c.logger.Debug(ctx, "running compiler", "command", c.command, "args", strings.Join(args, " "))

	output, err := c.run(ctx, c.root, c.command, args...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s timed out: %w", c.command, ctx.Err())
		}
		return fmt.Errorf("%s failed: %w\nOutput: %s", c.command, err, output)
	}

	return nil
}
