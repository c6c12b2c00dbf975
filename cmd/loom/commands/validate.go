package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/loomworks/loom/pkg/config"
	"github.com/loomworks/loom/pkg/macros"
	"github.com/loomworks/loom/pkg/meta"
)

func newValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <pipeline.yaml>",
		Short: "Validate a pipeline file",
		Long: `Validate a pipeline file without running it.

This command checks:
  - YAML syntax and step shape (names, actions)
  - Metadata decoding, unknown keys, policy value constraints
  - With --strict, that every declared capability has a registered macro`,
		Example: `  # Validate a pipeline
  loom validate ./pipeline.yaml

  # Reject capability keys no macro satisfies
  loom validate --strict ./pipeline.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := config.LoadPipeline(args[0])
			if err != nil {
				return err
			}

			if strict {
				registry := macros.DefaultRegistry(nil)
				known := registry.Keys()
				for _, spec := range pipeline.Steps {
					m, err := spec.BuildMeta()
					if err != nil {
						return fmt.Errorf("step %q: %w", spec.Name, err)
					}
					for _, key := range m.DeclaredKeys() {
						if !registry.Has(key) {
							return fmt.Errorf("step %q: %w", spec.Name, meta.UnknownKeyError(key, known))
						}
					}
				}
			}

			for _, spec := range pipeline.Steps {
				if _, ok := actions[spec.Action]; !ok {
					return fmt.Errorf("step %q: unknown action %q", spec.Name, spec.Action)
				}
			}

			log.Info().
				Str("pipeline", args[0]).
				Int("steps", len(pipeline.Steps)).
				Bool("strict", strict).
				Msg("Pipeline is valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "reject capability keys no registered macro satisfies")
	return cmd
}
