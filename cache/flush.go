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

package cache

import (
	"context"
	"time"

	"github.com/blockfs-labs/blockfs/clock"
	"github.com/blockfs-labs/blockfs/internal/logger"
)

// RunBackgroundFlush loops, sleeping for interval and then calling
// Flush(halt=false), until ctx is cancelled. It is meant to be launched
// as one goroutine of the owning Filesystem's errgroup.Group, so
// Unmount can cancel ctx and Wait for this loop to return before doing
// a final halting flush.
func (c *Cache) RunBackgroundFlush(ctx context.Context, clk clock.Clock, interval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-clk.After(interval):
			if err := c.Flush(false); err != nil {
				logger.Errorf("cache: background flush: %v", err)
				return err
			}
		}
	}
}
