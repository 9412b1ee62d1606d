// config.go: settings struct for the migration pipeline and the viper-based loader.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yaml
var configFiles embed.FS

// DatabaseSettings selects and configures the staging database backend.
type DatabaseSettings struct {
	SQLite SQLiteSettings // embedded staging database, used for development and tests
	MySQL  MySQLSettings  // production staging database, supports SKIP LOCKED claims
}

// SQLiteSettings contains settings for the SQLite staging store.
type SQLiteSettings struct {
	Enabled bool
	Path    string // path to database file
}

// MySQLSettings contains settings for the MySQL staging store.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

// RepositorySettings configures the content repository client.
type RepositorySettings struct {
	BaseURL        string        // content repository REST endpoint
	Username       string        // basic auth username
	Password       string        // basic auth password
	Timeout        time.Duration // per-request timeout
	PageSize       int           // search page size for discovery queries
	MigrationRoot  string        // node id of the destination migration root folder
	DossierRoot    string        // node id of the folder holding DOSSIERS-{TYPE} subfolders
	FolderCacheTTL time.Duration // TTL for resolved folder id cache entries
}

// EnrichmentSettings configures the external client and offer lookup services.
type EnrichmentSettings struct {
	Enabled      bool   // when false, staged folders are not enriched
	ClientAPIURL string // client master-data service endpoint
	OfferAPIURL  string // deposit offer service endpoint
	APIKey       string
	Timeout      time.Duration
	CacheTTL     time.Duration // client data cache TTL
}

// PipelineSettings tunes the migration phases.
type PipelineSettings struct {
	FolderNameFilter     string        // name filter for source folder discovery
	FolderBatchSize      int           // folders claimed per document-discovery cycle
	DocBatchSize         int           // documents claimed per move cycle
	IdleDelay            time.Duration // sleep between empty poll cycles
	EmptyBatchLimit      int           // consecutive empty batches before document search stops
	PrepareParallelism   int           // concurrent folder creation tasks
	CheckpointInterval   int           // folders between checkpoint writes during preparation
	UpdateParallelism    int           // concurrent property update calls per batch
	DocumentTypeCodes    []string      // type codes queried by document search
	DossierTypes         []string      // dossier type letters traversed by document search
	SearchCreatedFrom    string        // optional creation-date lower bound (yyyy-MM-dd)
	SearchCreatedTo      string        // optional creation-date upper bound (yyyy-MM-dd)
	CleanupIncomplete    bool          // delete incomplete staging rows before discovery
	RetentionRuleEnabled bool          // apply the retention-policy inactivity rule
}

// TrackerSettings holds the advisory stop thresholds for the error tracker.
type TrackerSettings struct {
	MaxTimeouts       int
	MaxRetryExhausted int
	MaxTotal          int
}

// LogSettings contains logging configuration.
type LogSettings struct {
	Level      string // debug, info, warn, error
	File       string // optional log file path, rotated by size
	MaxSizeMB  int    // rotation threshold
	MaxBackups int
	MaxAgeDays int
}

// Settings is the root configuration for the migration pipeline.
type Settings struct {
	Debug       bool
	Log         LogSettings
	Database    DatabaseSettings
	Repository  RepositorySettings
	Enrichment  EnrichmentSettings
	Pipeline    PipelineSettings
	Tracker     TrackerSettings
	MappingFile string // path to the document mapping reference table (yaml)
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration, merging the embedded defaults, an optional
// config.yaml from the default paths, environment variables and any flags
// already bound to viper. The result is cached as the package singleton.
func Load() (*Settings, error) {
	var loadErr error
	once.Do(func() {
		settings := &Settings{}

		if err := initViper(); err != nil {
			loadErr = fmt.Errorf("error initializing viper: %w", err)
			return
		}

		if err := viper.Unmarshal(settings); err != nil {
			loadErr = fmt.Errorf("error unmarshaling config into struct: %w", err)
			return
		}

		if err := settings.Validate(); err != nil {
			loadErr = err
			return
		}

		settingsMutex.Lock()
		settingsInstance = settings
		settingsMutex.Unlock()
	})
	if loadErr != nil {
		return nil, loadErr
	}
	return Setting(), nil
}

// Setting returns the loaded settings singleton, or nil before Load.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// initViper wires viper to the default config paths and the environment.
func initViper() error {
	viper.SetConfigType("yaml")
	viper.SetConfigName("config")

	viper.SetEnvPrefix("DOSSIER_MIGRATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// No user config found, seed one from the embedded defaults.
		if createErr := createDefaultConfig(configPaths[0]); createErr != nil {
			log.Printf("warning: unable to write default config file: %v", createErr)
		}
	}
	return nil
}

// GetDefaultConfigPaths returns the candidate directories for config.yaml,
// in lookup priority order.
func GetDefaultConfigPaths() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("error fetching user home directory: %w", err)
	}

	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("error fetching executable path: %w", err)
	}

	return []string{
		filepath.Join(homeDir, ".config", "dossier-migrate"),
		filepath.Dir(exePath),
		".",
	}, nil
}

// createDefaultConfig writes the embedded default config.yaml into configDir.
func createDefaultConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return nil // never overwrite an existing config
	}

	defaultConfig, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	log.Printf("created default config file at %s", configPath)
	return viper.ReadInConfig()
}

// Validate checks settings for values the pipeline cannot run without.
func (s *Settings) Validate() error {
	if !s.Database.SQLite.Enabled && !s.Database.MySQL.Enabled {
		return fmt.Errorf("no staging database enabled, enable either sqlite or mysql")
	}
	if s.Database.SQLite.Enabled && s.Database.MySQL.Enabled {
		return fmt.Errorf("both sqlite and mysql staging databases enabled, pick one")
	}
	if s.Repository.BaseURL == "" {
		return fmt.Errorf("repository.baseurl is required")
	}
	if s.Pipeline.FolderBatchSize <= 0 || s.Pipeline.DocBatchSize <= 0 {
		return fmt.Errorf("pipeline batch sizes must be positive")
	}
	if s.Pipeline.PrepareParallelism <= 0 {
		return fmt.Errorf("pipeline.prepareparallelism must be positive")
	}
	if s.Enrichment.Enabled && s.Enrichment.ClientAPIURL == "" {
		return fmt.Errorf("enrichment enabled but enrichment.clientapiurl is empty")
	}
	return nil
}

// GetBasePath resolves a possibly relative directory against the working
// directory and ensures it exists.
func GetBasePath(dir string) string {
	if dir == "" {
		dir = "."
	}
	if !filepath.IsAbs(dir) {
		if wd, err := os.Getwd(); err == nil {
			dir = filepath.Join(wd, dir)
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("warning: unable to create directory %s: %v", dir, err)
	}
	return dir
}
