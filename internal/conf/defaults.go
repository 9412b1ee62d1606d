// defaults.go: viper defaults for all settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers the default value for every setting so that a missing
// config file still yields a runnable (if inert) configuration.
func setDefaults() {
	viper.SetDefault("debug", false)

	// Logging
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.maxsizemb", 100)
	viper.SetDefault("log.maxbackups", 3)
	viper.SetDefault("log.maxagedays", 28)

	// Staging database
	viper.SetDefault("database.sqlite.enabled", true)
	viper.SetDefault("database.sqlite.path", "staging.db")
	viper.SetDefault("database.mysql.enabled", false)
	viper.SetDefault("database.mysql.username", "migrate")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", "3306")
	viper.SetDefault("database.mysql.database", "dossier_migrate")

	// Content repository
	viper.SetDefault("repository.baseurl", "")
	viper.SetDefault("repository.username", "")
	viper.SetDefault("repository.password", "")
	viper.SetDefault("repository.timeout", 60*time.Second)
	viper.SetDefault("repository.pagesize", 100)
	viper.SetDefault("repository.migrationroot", "")
	viper.SetDefault("repository.dossierroot", "")
	viper.SetDefault("repository.foldercachettl", 30*time.Minute)

	// Enrichment services
	viper.SetDefault("enrichment.enabled", false)
	viper.SetDefault("enrichment.clientapiurl", "")
	viper.SetDefault("enrichment.offerapiurl", "")
	viper.SetDefault("enrichment.apikey", "")
	viper.SetDefault("enrichment.timeout", 30*time.Second)
	viper.SetDefault("enrichment.cachettl", 15*time.Minute)

	// Pipeline tuning
	viper.SetDefault("pipeline.foldernamefilter", "")
	viper.SetDefault("pipeline.folderbatchsize", 10)
	viper.SetDefault("pipeline.docbatchsize", 100)
	viper.SetDefault("pipeline.idledelay", 5*time.Second)
	viper.SetDefault("pipeline.emptybatchlimit", 3)
	viper.SetDefault("pipeline.prepareparallelism", 50)
	viper.SetDefault("pipeline.checkpointinterval", 1000)
	viper.SetDefault("pipeline.updateparallelism", 5)
	viper.SetDefault("pipeline.documenttypecodes", []string{})
	viper.SetDefault("pipeline.dossiertypes", []string{"PI", "LE", "ACC", "D"})
	viper.SetDefault("pipeline.searchcreatedfrom", "")
	viper.SetDefault("pipeline.searchcreatedto", "")
	viper.SetDefault("pipeline.cleanupincomplete", false)
	viper.SetDefault("pipeline.retentionruleenabled", false)

	// Error tracker thresholds
	viper.SetDefault("tracker.maxtimeouts", 100)
	viper.SetDefault("tracker.maxretryexhausted", 50)
	viper.SetDefault("tracker.maxtotal", 200)

	// Reference data
	viper.SetDefault("mappingfile", "document-mappings.yaml")
}
