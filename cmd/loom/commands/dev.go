package commands

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/config"
)

func newDevCommand(version string) *cobra.Command {
	var debounceMS int

	cmd := &cobra.Command{
		Use:   "dev <pipeline.yaml>",
		Short: "Run a pipeline and re-run it on change",
		Long: `Watch a pipeline file and re-run it whenever it changes.

The pipeline runs once immediately; every subsequent save triggers a
fresh run against the same host, so persistent state (SQLite KV,
execution history, circuit breakers) carries across runs the way it
would in production.`,
		Example: `  # Watch and re-run a pipeline
  loom dev ./pipeline.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), version)
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			return watchAndRun(cmd.Context(), rt, args[0], time.Duration(debounceMS)*time.Millisecond)
		},
	}

	cmd.Flags().IntVar(&debounceMS, "debounce", 250, "milliseconds to coalesce rapid file events")
	return cmd
}

// watchAndRun runs the pipeline, then re-runs it on every write to the
// file until the context is cancelled. Editors often emit bursts of
// events per save; a debounce timer coalesces them into one run.
func watchAndRun(ctx context.Context, rt *runtime, path string, debounce time.Duration) error {
	runOnce := func() {
		pipeline, err := config.LoadPipeline(path)
		if err != nil {
			rt.logger.Error().Err(err).Str("path", path).Msg("pipeline load failed")
			return
		}
		if err := runPipeline(ctx, rt, pipeline); err != nil {
			rt.logger.Error().Err(err).Msg("pipeline run failed")
		}
	}

	runOnce()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory, not the file: editors that rename-on-save
	// would otherwise drop the watch after the first write.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	target, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name, _ := filepath.Abs(event.Name)
			if name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			rt.logger.Warn().Err(err).Msg("watch error")
		case <-pending:
			rt.logger.Info().Str("path", path).Msg("pipeline changed, re-running")
			runOnce()
		}
	}
}
