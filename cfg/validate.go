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

import "fmt"

const (
	CacheCapacityInvalidValueError     = "the value of cache.capacity must be at least 1"
	FlushIntervalInvalidValueError     = "the value of cache.flush-interval-ticks must be at least 1"
	ReadAheadConcurrencyInvalidError   = "the value of cache.read-ahead-concurrency must be at least 1 when read-ahead is enabled"
	TotalSectorsTooSmallError          = "the value of device.total-sectors must be large enough to hold a superblock and at least one data sector"
	minTotalSectorsForSuperblockAndMap = 3
)

// Validate range-checks a Config: plain errors, no panics, checked once
// at mount time.
func Validate(c *Config) error {
	if c.Cache.Capacity < 1 {
		return fmt.Errorf(CacheCapacityInvalidValueError)
	}
	if c.Cache.FlushIntervalTicks < 1 {
		return fmt.Errorf(FlushIntervalInvalidValueError)
	}
	if c.Cache.ReadAheadEnabled && c.Cache.ReadAheadConcurrency < 1 {
		return fmt.Errorf(ReadAheadConcurrencyInvalidError)
	}
	if c.Device.TotalSectors < minTotalSectorsForSuperblockAndMap {
		return fmt.Errorf(TotalSectorsTooSmallError)
	}
	if err := isValidLogRotateConfig(&c.Logging.LogRotate); err != nil {
		return err
	}
	return nil
}

func isValidLogRotateConfig(config *LogRotateConfig) error {
	if config.MaxFileSizeMB <= 0 {
		return fmt.Errorf("max-file-size-mb should be atleast 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("backup-file-count should be 0 (to retain all backup files) or a positive value")
	}
	return nil
}
