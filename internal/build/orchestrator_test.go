package build

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/conneroisu/psbuild/internal/errors"
)

type compileCall struct {
	task Task
	opts Options
}

// recordingCompiler records calls instead of compiling.
type recordingCompiler struct {
	calls  []compileCall
	counts map[string]int
	failOn string
}

func (r *recordingCompiler) Compile(_ context.Context, task Task, opts Options) (int, error) {
	r.calls = append(r.calls, compileCall{task: task, opts: opts})
	if task.Name == r.failOn {
		return 0, errors.New("SyntaxError: unexpected token")
	}
	if n, ok := r.counts[task.Name]; ok {
		return n, nil
	}
	return 1, nil
}

func (r *recordingCompiler) names() []string {
	names := make([]string, len(r.calls))
	for i, c := range r.calls {
		names[i] = c.task.Name
	}
	return names
}

func newOrchestrator(t *testing.T, graphicsPresent bool) (*Orchestrator, *recordingCompiler) {
	t.Helper()
	root := t.TempDir()
	layout := DefaultLayout()

	if graphicsPresent {
		path := filepath.Join(root, layout.Graphics.Output)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("/* graphics */"), 0o644))
	}

	compiler := &recordingCompiler{}
	return &Orchestrator{
		Root:   root,
		Layout: layout,
		Options: Options{
			ConfigFile:  ".babelrc",
			Ignore:      DefaultIgnore,
			Incremental: true,
			NoBabelrc:   true,
		},
		Compiler: compiler,
	}, compiler
}

func TestOrchestrator_RoutineWithGraphicsPresent(t *testing.T) {
	o, compiler := newOrchestrator(t, true)

	summary, err := o.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"client", "replays", "battledata"}, compiler.names())
	for _, call := range compiler.calls {
		assert.Equal(t, DefaultIgnore, call.opts.Ignore, call.task.Name)
		assert.True(t, call.opts.Incremental)
		assert.True(t, call.opts.NoBabelrc)
	}
	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, []string{"client", "replays", "battledata"}, summary.Tasks)
}

func TestOrchestrator_RoutineWithGraphicsMissing(t *testing.T) {
	o, compiler := newOrchestrator(t, false)

	_, err := o.Run(context.Background(), false)
	require.NoError(t, err)

	assert.Equal(t, []string{"client", "replays", "battledata", "graphics"}, compiler.names())
	for _, call := range compiler.calls {
		assert.Empty(t, call.opts.Ignore, call.task.Name)
	}
	// The base options are left untouched for the next run.
	assert.Equal(t, DefaultIgnore, o.Options.Ignore)
}

func TestOrchestrator_Full(t *testing.T) {
	o, compiler := newOrchestrator(t, true)
	compiler.counts = map[string]int{"client": 40, "replays": 3, "battledata": 5, "graphics": 2, "chat-formatter": 1}

	summary, err := o.Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, []string{"client", "replays", "battledata", "graphics", "chat-formatter"}, compiler.names())
	for _, call := range compiler.calls {
		assert.Empty(t, call.opts.Ignore, call.task.Name)
	}
	assert.Equal(t, 51, summary.Files)

	graphics := compiler.calls[3].task
	assert.Equal(t, TaskFiles, graphics.Kind)
	assert.Equal(t, DefaultIgnore, graphics.Sources, "graphics bundle is built from the ignored animation sources")
}

func TestOrchestrator_FailureStopsRun(t *testing.T) {
	o, compiler := newOrchestrator(t, true)
	compiler.failOn = "replays"

	summary, err := o.Run(context.Background(), false)
	require.Error(t, err)

	assert.True(t, perrors.IsBuildError(err))
	assert.Contains(t, err.Error(), "unexpected token")
	assert.Equal(t, []string{"client", "replays"}, compiler.names(), "no task may run after a failure")
	assert.Equal(t, 1, summary.Files)
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	o, compiler := newOrchestrator(t, true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Run(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, compiler.calls)
}

func TestSummary_String(t *testing.T) {
	s := Summary{Files: 12, Elapsed: 1234567 * time.Microsecond}
	assert.Equal(t, "12 files in 1.235s", s.String())

	assert.Equal(t, "0 files in 0.000s", Summary{}.String())
}

func TestTaskKind_String(t *testing.T) {
	assert.Equal(t, "dir", TaskDir.String())
	assert.Equal(t, "files", TaskFiles.String())
	assert.Equal(t, "unknown", TaskKind(9).String())
}
