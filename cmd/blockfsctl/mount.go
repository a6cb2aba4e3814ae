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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blockfs-labs/blockfs/blockdev"
	"github.com/blockfs-labs/blockfs/fs"
	"github.com/blockfs-labs/blockfs/internal/logger"
)

var formatImage bool

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount a device image and hold it open until interrupted",
	Long: `Mount opens the configured device image, starts the background
flush loop, and blocks until SIGINT/SIGTERM, at which point it unmounts
cleanly (final flush + allocator sync). With --format, the image is laid
out fresh first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Device.ImagePath == "" {
			return fmt.Errorf("mount requires --device.image-path")
		}

		dev, err := openOrCreateDevice()
		if err != nil {
			return err
		}
		defer dev.Close()

		if formatImage {
			if err := fs.Format(dev, config); err != nil {
				return err
			}
			logger.Infof("formatted %s: %d sectors", config.Device.ImagePath, dev.TotalSectors())
		}

		f, err := fs.Mount(dev, config, nil)
		if err != nil {
			return err
		}
		logger.Infof("mounted %s", config.Device.ImagePath)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Infof("unmounting %s", config.Device.ImagePath)
		return f.Unmount()
	},
}

func openOrCreateDevice() (*blockdev.FileDevice, error) {
	path := string(config.Device.ImagePath)
	if formatImage {
		return blockdev.CreateFileDevice(path, config.Device.TotalSectors)
	}
	return blockdev.OpenFileDevice(path, config.Device.TotalSectors)
}

func init() {
	mountCmd.Flags().BoolVar(&formatImage, "format", false, "Lay the image out fresh before mounting.")
}
