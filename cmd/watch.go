package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/psbuild/internal/config"
	"github.com/conneroisu/psbuild/internal/logging"
	"github.com/conneroisu/psbuild/internal/pipeline"
	"github.com/conneroisu/psbuild/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Rebuild when sources or templates change",
	Long: `Run a routine build, then watch the compile sources and the template
documents. A template change reruns the cachebust phase; a source change
reruns the whole routine build. Build errors are reported and watching
continues.

Examples:
  psbuild watch                    # Watch with the configured debounce
  psbuild watch --debounce 500ms   # Wait longer for bursts of changes
  psbuild watch --verbose          # List every changed file`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchVerbose  bool
	watchDebounce time.Duration
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Verbose output")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Debounce delay (default from watch.debounce)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	p, logger, err := newPipeline(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if _, err := p.Run(ctx, false); err != nil {
		logger.Error(ctx, err, "initial build failed")
	}

	delay := watchDebounce
	if delay <= 0 {
		delay = p.Config.DebounceDuration()
	}

	fileWatcher, err := watcher.NewFileWatcher(p.Root, delay, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	scope := watchScope(p.Config)
	fileWatcher.AddFilter(watcher.NoGitFilter)
	fileWatcher.AddFilter(watcher.NoNodeModulesFilter)
	fileWatcher.AddFilter(scope.Filter)
	fileWatcher.AddHandler(rebuildHandler(p, scope, logger))

	flat, recursive := scope.Dirs()
	for _, dir := range recursive {
		if err := fileWatcher.AddRecursive(dir); err != nil {
			logger.Warn(ctx, err, "failed to watch directory", "path", dir)
		}
	}
	for _, dir := range flat {
		if err := fileWatcher.AddPath(dir); err != nil {
			logger.Warn(ctx, err, "failed to watch directory", "path", dir)
		}
	}

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	p.Console.Println("Watching for changes... (Press Ctrl+C to stop)")
	<-ctx.Done()
	p.Console.Println("Stopping file watcher...")

	return nil
}

// watchScope covers the template documents and the sources of a routine
// build. The chat formatter is only compiled in full mode and is left out.
func watchScope(cfg *config.Config) watcher.Scope {
	layout := cfg.Layout()

	scope := watcher.Scope{}
	for _, doc := range cfg.Cachebust.Documents {
		scope.Templates = append(scope.Templates, doc.Template)
	}
	scope.Sources = append(scope.Sources, layout.Client.Source, layout.Replays.Source)
	scope.Sources = append(scope.Sources, layout.BattleData.Sources...)
	scope.Sources = append(scope.Sources, layout.Graphics.Sources...)

	return scope
}

// rebuildHandler reruns the phases a batch of changes invalidates.
func rebuildHandler(p *pipeline.Pipeline, scope watcher.Scope, logger logging.Logger) watcher.ChangeHandler {
	return func(ctx context.Context, events []watcher.ChangeEvent) error {
		if watchVerbose {
			for _, event := range events {
				p.Console.Println(fmt.Sprintf("  %s: %s", event.Type, event.Path))
			}
		}

		change := scope.Summarize(events)
		logger.Info(ctx, "changes detected", "files", len(events), "change", change.String())

		switch change {
		case watcher.ChangeSource:
			_, err := p.Run(ctx, false)
			return err
		case watcher.ChangeTemplate:
			_, err := p.Cachebust(ctx)
			return err
		default:
			return nil
		}
	}
}
