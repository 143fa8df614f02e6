package catalog

import "time"

// Config contains configuration options that allow
// customization of how Tome populates its catalog.
type Config struct {
	// The path to the directory the populator should monitor
	// for media files.
	LibraryPath string `yaml:"library_path" env:"LIBRARY_PATH" env-default:"~/Media" validate:"required"`

	// An array of regular expressions that can be used to RESTRICT
	// the files catalogued. If any expression matches the name
	// of the file, it is ignored.
	Blacklist []string `yaml:"blacklist" env:"LIBRARY_BLACKLIST" env-separator:","`

	// The populator uses a directory watcher, but a
	// 'force' sync is performed on a regular interval
	// to protect against the watcher failing.
	ForceSyncSeconds int `yaml:"force_sync_seconds" env:"LIBRARY_FORCE_SYNC_SECONDS" env-default:"300" validate:"min=1"`

	// A file which has just appeared (or just changed) is likely still being
	// written, for example by a download in progress. Such files are HELD
	// until their modtime is at least this many seconds in the past.
	RequiredModTimeAgeSeconds int `yaml:"required_modtime_age_seconds" env:"LIBRARY_REQUIRED_MODTIME_AGE_SECONDS" env-default:"10" validate:"min=0"`

	// Controls the number of workers that can probe files concurrently.
	Parallelism int `yaml:"parallelism" env:"LIBRARY_PARALLELISM" env-default:"2" validate:"min=1"`

	// The longest a single file may be probed for before the probe
	// is abandoned and the item marked as FAILED.
	ProbeTimeoutSeconds int `yaml:"probe_timeout_seconds" env:"LIBRARY_PROBE_TIMEOUT_SECONDS" env-default:"30" validate:"min=1"`
}

func (config *Config) ForceSyncDuration() time.Duration {
	return time.Duration(config.ForceSyncSeconds) * time.Second
}

func (config *Config) RequiredModTimeAgeDuration() time.Duration {
	return time.Duration(config.RequiredModTimeAgeSeconds) * time.Second
}

func (config *Config) ProbeTimeout() time.Duration {
	return time.Duration(config.ProbeTimeoutSeconds) * time.Second
}
