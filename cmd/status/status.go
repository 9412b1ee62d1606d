package status

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/datastore"
	"github.com/dkovacevic/dossier-migrate/internal/migration"
)

// Command creates the command that prints the pipeline state derived from
// the phase checkpoints.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pipeline progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := migration.NewPipeline(settings)
			if err != nil {
				return err
			}
			defer func() { _ = pipeline.Close() }()

			ctx := cmd.Context()
			overall, err := pipeline.Worker.GetStatus(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Phase:    %s\n", overall.CurrentPhase)
			fmt.Printf("Status:   %s\n", overall.Status)
			fmt.Printf("Progress: %.1f%%\n", overall.ProgressPercent)
			if overall.Elapsed > 0 {
				fmt.Printf("Elapsed:  %s\n", overall.Elapsed.Round(time.Second))
			}
			if overall.ErrorMessage != "" {
				fmt.Printf("Error:    %s\n", overall.ErrorMessage)
			}

			checkpoints, err := pipeline.Checkpoints.All(ctx)
			if err != nil {
				return err
			}
			fmt.Println()
			for i := range checkpoints {
				cp := &checkpoints[i]
				line := fmt.Sprintf("  %-18s %-12s processed=%d", cp.Phase.String(), cp.Status, cp.TotalProcessed)
				if cp.TotalItems != nil {
					line += fmt.Sprintf("/%d", *cp.TotalItems)
				}
				fmt.Println(line)
			}

			ready, err := pipeline.Store.CountReadyDocs(ctx)
			if err != nil {
				return err
			}
			done, err := pipeline.Store.CountDocs(ctx, datastore.DocDone)
			if err != nil {
				return err
			}
			failed, err := pipeline.Store.CountDocs(ctx, datastore.DocFailed)
			if err != nil {
				return err
			}
			fmt.Printf("\nDocuments: ready=%d done=%d failed=%d\n", ready, done, failed)
			return nil
		},
	}
}
