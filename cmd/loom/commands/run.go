package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/stores"
)

func newRunCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml>",
		Short: "Run a pipeline",
		Long: `Run the steps of a pipeline file sequentially. Each step's output
becomes the next step's base payload, so pipelines thread values the
same way the compose helpers do.`,
		Example: `  # Run a pipeline
  loom run ./pipeline.yaml

  # Run with a host configuration
  loom run -c ./loom.yaml ./pipeline.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), version)
			if err != nil {
				return err
			}
			defer rt.close(context.Background())

			pipeline, err := config.LoadPipeline(args[0])
			if err != nil {
				return err
			}
			return runPipeline(cmd.Context(), rt, pipeline)
		},
	}
	return cmd
}

// runPipeline executes the pipeline's steps in order, threading each
// output into the next step's base payload and recording the outcome
// in the execution history when the host carries a store.
func runPipeline(ctx context.Context, rt *runtime, pipeline config.Pipeline) error {
	logger := rt.logger.With().Str("pipeline", pipeline.Name).Logger()
	logger.Info().Int("steps", len(pipeline.Steps)).Msg("pipeline starting")

	var base any
	for _, spec := range pipeline.Steps {
		step, err := buildStep(spec)
		if err != nil {
			return err
		}

		started := time.Now()
		value, err := rt.engine.Execute(ctx, step, base)
		record(ctx, rt, logger, stores.ExecRecord{
			ExecID:     uuid.NewString(),
			Step:       step.Name,
			Status:     statusOf(err),
			Error:      errText(err),
			DurationMS: time.Since(started).Milliseconds(),
			StartedAt:  started,
		})
		if err != nil {
			return fmt.Errorf("step %q failed: %w", step.Name, err)
		}

		if jsonOutput {
			if data, jerr := json.Marshal(map[string]any{"step": step.Name, "value": value}); jerr == nil {
				fmt.Println(string(data))
			}
		} else {
			logger.Info().Str("step", step.Name).Interface("value", value).Msg("step succeeded")
		}
		base = value
	}

	logger.Info().Msg("pipeline completed")
	return nil
}

func statusOf(err error) stores.ExecStatus {
	if err != nil {
		return stores.ExecStatusError
	}
	return stores.ExecStatusOK
}

func errText(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}

// record appends to the execution history; history is best-effort and
// never fails the pipeline.
func record(ctx context.Context, rt *runtime, logger zerolog.Logger, rec stores.ExecRecord) {
	store := rt.host.Store()
	if store == nil {
		return
	}
	if err := store.RecordExecution(ctx, rec); err != nil {
		logger.Warn().Err(err).Str("step", rec.Step).Msg("failed to record execution")
	}
}
