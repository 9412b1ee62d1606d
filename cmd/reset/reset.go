package reset

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/migration"
)

// Command creates the command that clears phase checkpoints so a pipeline
// (or a single phase) can be rerun.
func Command(settings *conf.Settings) *cobra.Command {
	var phaseName string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset pipeline checkpoints",
		Long:  "Clear all phase checkpoints back to not-started, or a single phase when --phase is given. Staging rows are untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := migration.NewPipeline(settings)
			if err != nil {
				return err
			}
			defer func() { _ = pipeline.Close() }()

			if phaseName == "" {
				return pipeline.Worker.Reset(cmd.Context())
			}
			phase, ok := datastore.ParsePhase(phaseName)
			if !ok {
				return fmt.Errorf("unknown phase %q, expected one of %v", phaseName, datastore.Phases())
			}
			return pipeline.Worker.ResetPhase(cmd.Context(), phase)
		},
	}

	cmd.Flags().StringVar(&phaseName, "phase", "", "Reset only this phase (FolderDiscovery, DocumentDiscovery, FolderPreparation, Move)")

	return cmd
}
