// Copyright 2025 Google LLC
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

// blockfsctl is a harness for exercising the blockfs library against a
// device image: format/mount a file-backed device, check an image's
// superblock and root inode, or run a quick in-memory benchmark. The
// importable packages themselves carry no CLI or environment surface;
// it all lives here.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/blockfs-labs/blockfs/cfg"
	"github.com/blockfs-labs/blockfs/internal/logger"
)

var (
	v       = viper.New()
	cfgFile string
	bindErr error

	// config holds the fully loaded, validated configuration every
	// subcommand runs against. Populated in PersistentPreRunE.
	config cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "blockfsctl",
	Short: "Inspect and exercise blockfs device images",
	Long: `blockfsctl formats, mounts, checks and benchmarks blockfs device
images. It is a development harness for the blockfs library, not a
production mount tool.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if bindErr != nil {
			return bindErr
		}
		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config file: %w", err)
			}
		}
		c, err := cfg.Load(v)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(&c); err != nil {
			return err
		}
		config = c
		return logger.Init(c.Logging)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to a YAML config file.")
	bindErr = cfg.BindFlags(v, rootCmd.PersistentFlags())

	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(fsckCmd)
	rootCmd.AddCommand(benchCmd)
}
