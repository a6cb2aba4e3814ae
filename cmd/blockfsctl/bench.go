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
	"time"

	"github.com/spf13/cobra"

	"github.com/blockfs-labs/blockfs/blockdev"
	"github.com/blockfs-labs/blockfs/fs"
)

var (
	benchFileCount int
	benchFileSize  int
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run a write/read benchmark against an in-memory device",
	Long: `Bench formats an in-memory device, mounts it, writes N files of
the given size through the full cache/inode stack, reads them back,
verifies the contents and prints throughput. Nothing touches disk.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev := blockdev.NewMemDevice(config.Device.TotalSectors)
		if err := fs.Format(dev, config); err != nil {
			return err
		}
		f, err := fs.Mount(dev, config, nil)
		if err != nil {
			return err
		}
		defer f.Unmount()

		root, err := f.OpenRoot()
		if err != nil {
			return err
		}
		defer f.Close(root)

		payload := make([]byte, benchFileSize)
		for i := range payload {
			payload[i] = byte(i)
		}

		sectors := make([]uint32, 0, benchFileCount)
		start := time.Now()
		for i := 0; i < benchFileCount; i++ {
			file, err := f.CreateFile(root)
			if err != nil {
				return err
			}
			n, err := file.WriteAt(payload, 0)
			if err != nil {
				return err
			}
			if n < benchFileSize {
				return fmt.Errorf("bench: short write: %d of %d bytes (device full?)", n, benchFileSize)
			}
			sectors = append(sectors, file.Sector())
			if err := f.Close(file); err != nil {
				return err
			}
		}
		writeElapsed := time.Since(start)

		buf := make([]byte, benchFileSize)
		start = time.Now()
		for _, sector := range sectors {
			file, err := f.Open(sector)
			if err != nil {
				return err
			}
			n, err := file.ReadAt(buf, 0)
			if err != nil {
				return err
			}
			if n < benchFileSize {
				return fmt.Errorf("bench: short read: %d of %d bytes", n, benchFileSize)
			}
			for j, b := range buf {
				if b != byte(j) {
					return fmt.Errorf("bench: corrupt byte %d in file at sector %d", j, sector)
				}
			}
			if err := f.Close(file); err != nil {
				return err
			}
		}
		readElapsed := time.Since(start)

		total := float64(benchFileCount * benchFileSize)
		fmt.Printf("wrote %d files x %d B in %v (%.1f MiB/s)\n",
			benchFileCount, benchFileSize, writeElapsed, total/writeElapsed.Seconds()/(1<<20))
		fmt.Printf("read  %d files x %d B in %v (%.1f MiB/s)\n",
			benchFileCount, benchFileSize, readElapsed, total/readElapsed.Seconds()/(1<<20))
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchFileCount, "files", 64, "Number of files to write and read back.")
	benchCmd.Flags().IntVar(&benchFileSize, "file-size", 64*1024, "Size of each file, in bytes.")
}
