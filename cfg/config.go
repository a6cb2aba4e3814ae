// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cfg holds the configuration knobs for a blockfs mount: cache
// sizing, background flush cadence, read-ahead, the backing device image,
// and logging. A Config is assembled by BindFlags/Load from command-line
// flags and a YAML file, a flag overriding the file; environment
// variables are not read.
package cfg

// ResolvedPath is a filesystem path that has been expanded (e.g. "~"
// expansion) and validated non-empty where required. A distinct type so
// a bare string can't be passed where a validated path is expected.
type ResolvedPath string

// Config is the root configuration object for a blockfs mount.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// DeviceConfig describes the backing block device image.
type DeviceConfig struct {
	// ImagePath is the path to the file-backed device image. `blockfsctl
	// mount` and `fsck` reject an empty path; `blockfsctl bench` ignores
	// it and always uses an in-memory device.
	ImagePath ResolvedPath `yaml:"image-path"`

	// TotalSectors is the size of the device in sectors: the size a fresh
	// image is formatted with, and the size an existing image is opened
	// with (Mount checks it against the superblock).
	TotalSectors uint32 `yaml:"total-sectors"`
}

// CacheConfig tunes the buffer cache.
type CacheConfig struct {
	// Capacity is the number of cache slots, 64 by default; exposed so
	// tests can shrink it to exercise eviction cheaply.
	Capacity int `yaml:"capacity"`

	// FlushIntervalTicks is how often the background flush task runs,
	// expressed in timer ticks.
	FlushIntervalTicks int `yaml:"flush-interval-ticks"`

	// TickDuration is the wall-clock duration of one tick.
	TickDuration MillisDuration `yaml:"tick-duration-ms"`

	// ReadAheadEnabled toggles the best-effort successor-sector prefetch.
	ReadAheadEnabled bool `yaml:"read-ahead-enabled"`

	// ReadAheadConcurrency bounds how many read-ahead fetches may be in
	// flight at once.
	ReadAheadConcurrency int64 `yaml:"read-ahead-concurrency"`
}

// MillisDuration is a duration expressed in milliseconds in config files,
// avoiding a dependency on time.Duration's string-parsing quirks in YAML.
type MillisDuration int

// LoggingConfig configures internal/logger.
type LoggingConfig struct {
	// Severity is one of TRACE, DEBUG, INFO, WARNING, ERROR, OFF.
	Severity string `yaml:"severity"`

	// Format is "text" or "json".
	Format string `yaml:"format"`

	// FilePath, if non-empty, routes logs to a rotated file via
	// lumberjack instead of stderr.
	FilePath ResolvedPath `yaml:"file-path"`

	LogRotate LogRotateConfig `yaml:"log-rotate"`
}

// LogRotateConfig mirrors lumberjack.Logger's knobs.
type LogRotateConfig struct {
	MaxFileSizeMB   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

// DefaultLogRotateConfig returns the log-rotation defaults.
func DefaultLogRotateConfig() LogRotateConfig {
	return LogRotateConfig{
		MaxFileSizeMB:   512,
		BackupFileCount: 10,
		Compress:        false,
	}
}

// DefaultConfig returns a Config suitable for an in-memory, default-sized
// mount, as used by tests and `blockfsctl bench`.
func DefaultConfig() Config {
	return Config{
		Device: DeviceConfig{
			TotalSectors: 1 << 16,
		},
		Cache: CacheConfig{
			Capacity:             64,
			FlushIntervalTicks:   5,
			TickDuration:         MillisDuration(1000),
			ReadAheadEnabled:     true,
			ReadAheadConcurrency: 8,
		},
		Logging: LoggingConfig{
			Severity:  "INFO",
			Format:    "json",
			LogRotate: DefaultLogRotateConfig(),
		},
	}
}
