package search

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkovacevic/dossier-migrate/internal/conf"
	"github.com/dkovacevic/dossier-migrate/internal/migration"
)

// Command creates the command that runs the typed document search, the
// alternate discovery strategy that stages folders and documents directly
// from search results.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Discover documents by type code",
		Long:  "Page through documents matching the configured type codes across the DOSSIERS-{TYPE} roots and stage both the documents and their parent folders. The loop ends once every type has been exhausted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pipeline, err := migration.NewPipeline(settings)
			if err != nil {
				return err
			}
			defer func() { _ = pipeline.Close() }()

			return pipeline.Search.RunLoop(cmd.Context())
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringSliceVar(&settings.Pipeline.DocumentTypeCodes, "codes", viper.GetStringSlice("pipeline.documenttypecodes"), "Document type codes to search for")
	cmd.Flags().StringSliceVar(&settings.Pipeline.DossierTypes, "types", viper.GetStringSlice("pipeline.dossiertypes"), "Dossier type letters to traverse")
	cmd.Flags().StringVar(&settings.Pipeline.SearchCreatedFrom, "from", viper.GetString("pipeline.searchcreatedfrom"), "Creation-date lower bound (yyyy-MM-dd)")
	cmd.Flags().StringVar(&settings.Pipeline.SearchCreatedTo, "to", viper.GetString("pipeline.searchcreatedto"), "Creation-date upper bound (yyyy-MM-dd)")

	return viper.BindPFlags(cmd.Flags())
}
