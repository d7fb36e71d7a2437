// Package pipeline runs the build phases in order: load the route table,
// stamp the runtime config, compile the sources, then rewrite and emit the
// template documents.
package pipeline

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/conneroisu/psbuild/internal/build"
	"github.com/conneroisu/psbuild/internal/cachebust"
	"github.com/conneroisu/psbuild/internal/config"
	"github.com/conneroisu/psbuild/internal/console"
	perrors "github.com/conneroisu/psbuild/internal/errors"
	"github.com/conneroisu/psbuild/internal/logging"
	"github.com/conneroisu/psbuild/internal/routes"
	"github.com/conneroisu/psbuild/internal/version"
)

// ManifestName is the file name of the incremental compile manifest inside
// the cache directory.
const ManifestName = "compile-manifest.cbor"

// Result reports what a run produced.
type Result struct {
	Version   string
	Summary   build.Summary
	Documents []string
}

// Pipeline runs the build phases against one project root. Runs are
// serialised, so a Pipeline may be shared between goroutines.
type Pipeline struct {
	Root   string
	Config *config.Config

	// Compiler defaults to an ExecCompiler backed by the manifest in the
	// configured cache directory.
	Compiler build.Compiler
	// Revisions defaults to git in Root.
	Revisions version.RevisionSource

	Console *console.Console
	Logger  logging.Logger

	mu sync.Mutex
}

// New creates a pipeline with the default compiler and revision source.
func New(root string, cfg *config.Config, con *console.Console, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Pipeline{
		Root:    root,
		Config:  cfg,
		Console: con,
		Logger:  logger.WithComponent("pipeline"),
	}
}

// Run executes every phase. In full mode the ignore set is dropped and the
// chat formatter is compiled as well.
func (p *Pipeline) Run(ctx context.Context, full bool) (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var result Result

	table, err := routes.Load(p.Root, p.Config.Paths.Routes)
	if err != nil {
		return result, perrors.InPhase(err, "routes")
	}

	p.Console.Step("Updating version")
	result.Version, err = p.stamp(ctx, table)
	if err != nil {
		p.Console.Failed()
		return result, perrors.InPhase(err, "version")
	}
	p.Console.Done("")

	p.Console.Step("Compiling TS files")
	result.Summary, err = p.compile(ctx, full)
	if err != nil {
		p.Console.Failed()
		return result, perrors.InPhase(err, "compile")
	}
	p.Console.Done(result.Summary.String())

	p.Console.Step("Updating cachebusters and URLs")
	result.Documents, err = p.cachebust(ctx, table)
	if err != nil {
		p.Console.Failed()
		return result, err
	}
	p.Console.Done("")

	p.Logger.Info(ctx, "build complete",
		"version", result.Version,
		"files", result.Summary.Files,
		"tasks", result.Summary.Tasks,
		"documents", len(result.Documents))

	return result, nil
}

// Cachebust runs only the rewrite and emit phase.
func (p *Pipeline) Cachebust(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	table, err := routes.Load(p.Root, p.Config.Paths.Routes)
	if err != nil {
		return nil, perrors.InPhase(err, "routes")
	}

	p.Console.Step("Updating cachebusters and URLs")
	docs, err := p.cachebust(ctx, table)
	if err != nil {
		p.Console.Failed()
		return nil, err
	}
	p.Console.Done("")

	return docs, nil
}

// Version computes the build version without writing anything.
func (p *Pipeline) Version(ctx context.Context) (string, error) {
	release, err := version.ReadRelease(p.Root, p.Config.Paths.Package)
	if err != nil {
		return "", err
	}

	return version.Resolve(ctx, release, p.revisions(), p.Config.Version.Upstream), nil
}

func (p *Pipeline) stamp(ctx context.Context, table routes.Table) (string, error) {
	release, err := version.ReadRelease(p.Root, p.Config.Paths.Package)
	if err != nil {
		return "", err
	}

	stamper := &version.Stamper{
		Root:       p.Root,
		ConfigPath: p.Config.Paths.Config,
		CopyPath:   p.Config.Paths.ConfigCopy,
		Release:    release,
		Upstream:   p.Config.Version.Upstream,
		Revisions:  p.revisions(),
		Logger:     p.Logger,
	}

	return stamper.Stamp(ctx, table)
}

func (p *Pipeline) compile(ctx context.Context, full bool) (build.Summary, error) {
	opts, err := build.LoadOptions(p.Root, p.Config.Paths.Babelrc, p.Config.Compile.Ignore)
	if err != nil {
		return build.Summary{}, err
	}

	orchestrator := &build.Orchestrator{
		Root:     p.Root,
		Layout:   p.Config.Layout(),
		Options:  opts,
		Compiler: p.compiler(),
		Logger:   p.Logger,
	}

	return orchestrator.Run(ctx, full)
}

func (p *Pipeline) cachebust(ctx context.Context, table routes.Table) ([]string, error) {
	docs, err := p.Config.Documents()
	if err != nil {
		return nil, perrors.NewConfigError("DOCUMENTS_INVALID", "invalid document list", err).
			WithPhase("cachebust")
	}

	reader, err := cachebust.OpenDir(p.Root)
	if err != nil {
		return nil, perrors.NewIOError("ROOT_UNREADABLE", "cannot open project root", err).
			WithPhase("cachebust")
	}
	defer reader.Close()

	processor := &cachebust.Processor{
		Root:     p.Root,
		Rewriter: cachebust.NewRewriter(table, reader, p.Config.Cachebust.ReplayDir),
		Logger:   p.Logger,
	}

	emitted := make([]string, 0, len(docs))
	for _, doc := range docs {
		if err := processor.Process(ctx, doc); err != nil {
			return emitted, err
		}
		emitted = append(emitted, doc.Output())
	}

	return emitted, nil
}

func (p *Pipeline) compiler() build.Compiler {
	if p.Compiler != nil {
		return p.Compiler
	}

	manifest := build.LoadManifest(filepath.Join(p.Root, p.Config.Paths.CacheDir, ManifestName))
	p.Compiler = build.NewExecCompiler(p.Root, p.Config.Compile.Command, manifest, p.Logger)

	return p.Compiler
}

func (p *Pipeline) revisions() version.RevisionSource {
	if p.Revisions != nil {
		return p.Revisions
	}

	return version.GitRevisions{Root: p.Root}
}
