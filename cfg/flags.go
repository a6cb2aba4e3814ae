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

package cfg

import (
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers the flags blockfsctl exposes and binds each of them
// into viper under the same key used by the YAML tags above, so that a
// flag set on the command line overrides the config file. Environment
// variables are not bound.
func BindFlags(v *viper.Viper, flagSet *pflag.FlagSet) error {
	flagSet.String("device.image-path", "", "Path to the block device image file.")
	flagSet.Uint32("device.total-sectors", 1<<16, "Sector count to format a fresh image with.")

	flagSet.Int("cache.capacity", 64, "Number of buffer cache slots.")
	flagSet.Int("cache.flush-interval-ticks", 5, "Background flush period, in ticks.")
	flagSet.Int("cache.tick-duration-ms", 1000, "Duration of one tick, in milliseconds.")
	flagSet.Bool("cache.read-ahead-enabled", true, "Enable successor-sector read-ahead.")
	flagSet.Int64("cache.read-ahead-concurrency", 8, "Max in-flight read-ahead fetches.")

	flagSet.String("logging.severity", "INFO", "TRACE, DEBUG, INFO, WARNING, ERROR, or OFF.")
	flagSet.String("logging.format", "json", "text or json.")
	flagSet.String("logging.file-path", "", "Log file path; empty logs to stderr.")

	return v.BindPFlags(flagSet)
}

// Load decodes the bound viper state into a Config, starting from
// DefaultConfig so unset fields keep sane defaults. Decoding keys by the
// yaml tag keeps the flag names, config-file keys and struct fields in
// one vocabulary.
func Load(v *viper.Viper) (Config, error) {
	c := DefaultConfig()
	if err := v.Unmarshal(&c, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	}); err != nil {
		return Config{}, err
	}
	return c, nil
}
