package internal

import (
	"fmt"
	"path/filepath"

	"github.com/grabberapp/grabber/internal/api"
	"github.com/grabberapp/grabber/internal/database"
	"github.com/grabberapp/grabber/internal/extractor"
	"github.com/grabberapp/grabber/internal/files"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

// GrabberConfig is the struct used to contain the various user config
// supplied by file or by process environment.
type GrabberConfig struct {
	Rest           api.RestConfig      `yaml:"api"`
	Database       database.Config     `yaml:"database" env-required:"true"`
	Extractor      extractor.Config    `yaml:"extractor"`
	Janitor        files.JanitorConfig `yaml:"janitor"`
	DownloadFolder string              `yaml:"download_folder" env:"DOWNLOAD_FOLDER"`
}

// LoadFromFile loads a configuration file formatted in YAML into a
// GrabberConfig, with environment variables taking precedence.
func (config *GrabberConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	return nil
}

// LoadFromEnv populates the config from the process environment alone.
func (config *GrabberConfig) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return nil
}

// getDownloadFolder returns the configured shared download folder,
// deriving a default under the user's home directory when unset. If the
// default cannot be derived, a panic will occur.
func (config *GrabberConfig) getDownloadFolder() string {
	if config.DownloadFolder != "" {
		return config.DownloadFolder
	}

	dir, err := homedir.Dir()
	if err != nil {
		panic(fmt.Sprintf("FAILURE to derive user home dir %s", err))
	}

	return filepath.Join(dir, GRABBER_USER_DIR_SUFFIX, "downloads")
}
