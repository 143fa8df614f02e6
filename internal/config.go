package internal

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/hbomb79/Tome/internal/api"
	"github.com/hbomb79/Tome/internal/catalog"
	"github.com/hbomb79/Tome/internal/ffmpeg"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/mitchellh/go-homedir"
)

// TomeConfig is the struct used to contain the
// various user config supplied by file, or
// via the environment.
type TomeConfig struct {
	Library    catalog.Config `yaml:"library"`
	Probe      ffmpeg.Config  `yaml:"probe"`
	RestConfig api.RestConfig `yaml:"rest"`

	// Charset is the encoding that text tags read from media
	// containers are assumed to be in. They are converted to UTF-8.
	Charset  string `yaml:"charset" env:"TOME_CHARSET" env-default:"utf-8" validate:"required"`
	LogLevel string `yaml:"log_level" env:"TOME_LOG_LEVEL" env-default:"info" validate:"oneof=verbose debug info warning warn error"`
}

// LoadFromFile loads a configuration file formatted in YAML in to the
// TomeConfig. Environment variables override values found in the file.
func (config *TomeConfig) LoadFromFile(configPath string) error {
	if err := cleanenv.ReadConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	return config.finalise()
}

// LoadFromEnv populates the TomeConfig from the environment alone,
// falling back to the defaults for any variables not set.
func (config *TomeConfig) LoadFromEnv() error {
	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("failed to load configuration from environment: %w", err)
	}

	return config.finalise()
}

// finalise expands any home-relative paths and validates the result.
func (config *TomeConfig) finalise() error {
	for _, path := range []*string{&config.Library.LibraryPath, &config.Probe.FfprobeBinaryPath} {
		expanded, err := homedir.Expand(*path)
		if err != nil {
			return fmt.Errorf("failed to expand path %s: %w", *path, err)
		}

		*path = expanded
	}

	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	return nil
}
