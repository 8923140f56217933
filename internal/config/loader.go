package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrLoadConfig indicates a failure to read or parse the YAML configuration.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// Config represents the top-level YAML configuration file.
type Config struct {
	Backup    BackupConfig    `mapstructure:"backup"    yaml:"backup"`
	Docker    DockerConfig    `mapstructure:"docker"    yaml:"docker"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Retry     RetryConfig     `mapstructure:"retry"     yaml:"retry"`
	Log       LogConfig       `mapstructure:"log"       yaml:"log"`
}

// BackupConfig holds the directory layout of a run.
type BackupConfig struct {
	// SourceDir contains one subdirectory per managed service's config.
	SourceDir string `mapstructure:"source_dir" yaml:"source_dir"`
	// StagingDir receives fresh copies before they are zipped.
	StagingDir string `mapstructure:"staging_dir" yaml:"staging_dir"`
	// ArchiveDir is where the dated zip files end up.
	ArchiveDir string `mapstructure:"archive_dir" yaml:"archive_dir"`
}

// DockerConfig locates the compose projects owning the config directories.
type DockerConfig struct {
	ProjectsDir string `mapstructure:"projects_dir" yaml:"projects_dir"`
}

// RetentionConfig specifies how many archives to keep.
type RetentionConfig struct {
	KeepLast int `mapstructure:"keep_last" yaml:"keep_last"`
}

// RetryConfig controls the stop/retry/start recovery flow.
type RetryConfig struct {
	// QuiescenceDelay is how long to wait after stopping a service before
	// retrying the copy, so its file handles can close.
	QuiescenceDelay time.Duration `mapstructure:"quiescence_delay" yaml:"quiescence_delay"`
}

// LogConfig holds logging destinations.
type LogConfig struct {
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Load reads the configuration from the given YAML file using Viper and
// unmarshals into the Config struct.
func (c *Config) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("retention.keep_last", 7)
	v.SetDefault("retry.quiescence_delay", 10*time.Second)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("%w: read config %s: %v", ErrLoadConfig, path, err)
	}

	if err := v.UnmarshalExact(c); err != nil {
		return fmt.Errorf("%w: unmarshal config: %v", ErrLoadConfig, err)
	}

	return c.Validate()
}

// Validate checks that the configuration is usable for a run.
func (c *Config) Validate() error {
	switch {
	case c.Backup.SourceDir == "":
		return fmt.Errorf("%w: backup.source_dir is required", ErrValidateConfig)
	case c.Backup.StagingDir == "":
		return fmt.Errorf("%w: backup.staging_dir is required", ErrValidateConfig)
	case c.Backup.ArchiveDir == "":
		return fmt.Errorf("%w: backup.archive_dir is required", ErrValidateConfig)
	case c.Docker.ProjectsDir == "":
		return fmt.Errorf("%w: docker.projects_dir is required", ErrValidateConfig)
	case c.Retention.KeepLast < 1:
		return fmt.Errorf("%w: retention.keep_last must be at least 1", ErrValidateConfig)
	case c.Retry.QuiescenceDelay < 0:
		return fmt.Errorf("%w: retry.quiescence_delay cannot be negative", ErrValidateConfig)
	}
	return nil
}
