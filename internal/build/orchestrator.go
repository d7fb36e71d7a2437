// Package build orchestrates compilation of the client sources into the
// deployable script bundles.
//
// The compiler itself is an external collaborator reached through the
// Compiler interface. The orchestrator only decides which tasks run, in
// which order, and with which options.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	perrors "github.com/conneroisu/psbuild/internal/errors"
	"github.com/conneroisu/psbuild/internal/logging"
)

// TaskKind distinguishes the two shapes of compile task.
type TaskKind int

const (
	// TaskDir compiles a directory (or a single file) into an output directory.
	TaskDir TaskKind = iota
	// TaskFiles merges an ordered list of files into one output file.
	TaskFiles
)

// String returns the string representation of the TaskKind
func (k TaskKind) String() string {
	switch k {
	case TaskDir:
		return "dir"
	case TaskFiles:
		return "files"
	default:
		return "unknown"
	}
}

// Task is one compile invocation. Paths are relative to the project root.
type Task struct {
	Name    string
	Kind    TaskKind
	Source  string
	Sources []string
	Output  string
}

// Compiler compiles a task and reports how many source files it compiled.
type Compiler interface {
	Compile(ctx context.Context, task Task, opts Options) (int, error)
}

// Layout holds the fixed task set.
type Layout struct {
	Client        Task
	Replays       Task
	BattleData    Task
	Graphics      Task
	ChatFormatter Task
}

// DefaultLayout returns the client repository's task set.
func DefaultLayout() Layout {
	return Layout{
		Client: Task{
			Name:   "client",
			Kind:   TaskDir,
			Source: "src",
			Output: "play.pokemonshowdown.com/js",
		},
		Replays: Task{
			Name:   "replays",
			Kind:   TaskDir,
			Source: "replay.pokemonshowdown.com/src",
			Output: "replay.pokemonshowdown.com/js",
		},
		BattleData: Task{
			Name: "battledata",
			Kind: TaskFiles,
			Sources: []string{
				"src/battle-dex.ts",
				"src/battle-dex-data.ts",
				"src/battle-log.ts",
				"src/battle-log-misc.js",
				"src/battle-text-parser.ts",
			},
			Output: "play.pokemonshowdown.com/js/battledata.js",
		},
		Graphics: Task{
			Name: "graphics",
			Kind: TaskFiles,
			Sources: []string{
				"src/battle-animations.ts",
				"src/battle-animations-moves.ts",
			},
			Output: "play.pokemonshowdown.com/data/graphics.js",
		},
		ChatFormatter: Task{
			Name:   "chat-formatter",
			Kind:   TaskDir,
			Source: "caches/pokemon-showdown/server/chat-formatter.ts",
			Output: "play.pokemonshowdown.com/js/server",
		},
	}
}

// Summary reports what a run compiled. It is informational only.
type Summary struct {
	Files   int
	Elapsed time.Duration
	Tasks   []string
}

// String formats the summary as "<n> files in <s.sss>s".
func (s Summary) String() string {
	return fmt.Sprintf("%d files in %.3fs", s.Files, s.Elapsed.Seconds())
}

// Orchestrator runs the task set against a Compiler.
type Orchestrator struct {
	Root     string
	Layout   Layout
	Options  Options
	Compiler Compiler
	Logger   logging.Logger
}

// Plan returns the tasks a run would execute and the options it would use.
// In full mode, or when the graphics bundle is missing, the ignore set is
// dropped so the animation sources are compiled.
func (o *Orchestrator) Plan(full bool) ([]Task, Options) {
	opts := o.Options
	dropIgnore := full
	if !full && !o.exists(o.Layout.Graphics.Output) {
		dropIgnore = true
	}
	if dropIgnore {
		opts = opts.WithoutIgnore()
	}

	tasks := []Task{o.Layout.Client, o.Layout.Replays, o.Layout.BattleData}
	if dropIgnore {
		tasks = append(tasks, o.Layout.Graphics)
	}
	if full {
		tasks = append(tasks, o.Layout.ChatFormatter)
	}

	return tasks, opts
}

// Run executes the planned tasks in order. The first failure stops the run
// and is returned; no later task is attempted.
func (o *Orchestrator) Run(ctx context.Context, full bool) (Summary, error) {
	start := time.Now()
	tasks, opts := o.Plan(full)

	var summary Summary
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		n, err := o.Compiler.Compile(ctx, task, opts)
		if err != nil {
			return summary, perrors.NewBuildError("COMPILE_FAILED",
				fmt.Sprintf("compiling %s", task.Name), err).
				WithPhase("compile").
				WithFile(task.Output)
		}

		summary.Files += n
		summary.Tasks = append(summary.Tasks, task.Name)
		o.logger().Debug(ctx, "compiled task", "task", task.Name, "files", n, "output", task.Output)
	}

	summary.Elapsed = time.Since(start)

	return summary, nil
}

func (o *Orchestrator) exists(rel string) bool {
	_, err := os.Stat(filepath.Join(o.Root, rel))
	return err == nil
}

func (o *Orchestrator) logger() logging.Logger {
	if o.Logger == nil {
		return logging.NewNop()
	}
	return o.Logger
}
