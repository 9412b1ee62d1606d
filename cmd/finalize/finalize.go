package finalize

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/migration"
)

// Command creates the command that runs the post-move property update pass.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Apply final document types after the move phase",
		Long:  "Restore the final document type on the most recently created document of every (core id, document type) group.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := migration.NewPipeline(settings)
			if err != nil {
				return err
			}
			defer func() { _ = pipeline.Close() }()

			return pipeline.PropertyUpdate.Run(cmd.Context())
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Pipeline.UpdateParallelism, "parallelism", viper.GetInt("pipeline.updateparallelism"), "Concurrent property update calls")

	return viper.BindPFlags(cmd.Flags())
}
