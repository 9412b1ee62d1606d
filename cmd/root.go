package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dkovacevic/dossier-migrate/cmd/finalize"
	"github.com/dkovacevic/dossier-migrate/cmd/reset"
	"github.com/dkovacevic/dossier-migrate/cmd/run"
	"github.com/dkovacevic/dossier-migrate/cmd/search"
	"github.com/dkovacevic/dossier-migrate/cmd/status"
	"github.com/dkovacevic/dossier-migrate/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dossier-migrate",
		Short: "Dossier migration pipeline CLI",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		run.Command(settings),
		search.Command(settings),
		finalize.Command(settings),
		status.Command(settings),
		reset.Command(settings),
	)

	return rootCmd
}

// setupFlags defines the global flags for the root command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.MappingFile, "mappings", viper.GetString("mappingfile"), "Path to the document mapping table (yaml)")
	cmd.PersistentFlags().StringVar(&settings.Database.SQLite.Path, "staging-db", viper.GetString("database.sqlite.path"), "Path to the SQLite staging database")

	_ = viper.BindPFlags(cmd.PersistentFlags())
}
