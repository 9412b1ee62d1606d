package run

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/migration"
)

// Command creates the command that runs the full migration pipeline.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the migration pipeline",
		Long:  "Execute all pending pipeline phases in order: folder discovery, document discovery, folder preparation and move. Completed phases are skipped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := migration.NewPipeline(settings)
			if err != nil {
				return err
			}
			defer func() { _ = pipeline.Close() }()

			return pipeline.Worker.Run(cmd.Context())
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.Pipeline.FolderNameFilter, "namefilter", viper.GetString("pipeline.foldernamefilter"), "Name filter for source folder discovery")
	cmd.Flags().BoolVar(&settings.Pipeline.CleanupIncomplete, "cleanup", viper.GetBool("pipeline.cleanupincomplete"), "Delete rows stuck in transient states before discovery")
	cmd.Flags().IntVar(&settings.Pipeline.FolderBatchSize, "folderbatch", viper.GetInt("pipeline.folderbatchsize"), "Folders claimed per document-discovery cycle")
	cmd.Flags().IntVar(&settings.Pipeline.DocBatchSize, "docbatch", viper.GetInt("pipeline.docbatchsize"), "Documents claimed per move cycle")

	return viper.BindPFlags(cmd.Flags())
}
