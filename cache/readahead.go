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
	"golang.org/x/sync/semaphore"

	"github.com/blockfs-labs/blockfs/common"
)

// EnableReadAhead turns on ReadAhead for this Cache, bounding the number
// of concurrently draining prefetch workers to concurrency. Until called,
// ReadAhead is a no-op (cfg.CacheConfig.ReadAheadEnabled = false).
func (c *Cache) EnableReadAhead(concurrency int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.raSem = semaphore.NewWeighted(concurrency)
	c.raQueue = common.NewLinkedListQueue[uint32]()
}

// ReadAhead schedules a best-effort asynchronous prefetch of sector+1.
// It never blocks the caller and never fails user-visibly: the request
// is queued and drained by a worker goroutine; a saturated worker pool
// leaves the request queued for whichever worker gets to it, and a
// saturated queue drops it outright.
func (c *Cache) ReadAhead(sector uint32) {
	c.mu.Lock()
	sem, q := c.raSem, c.raQueue
	if q == nil || q.Len() >= c.capacity {
		c.mu.Unlock()
		return
	}
	q.Push(sector + 1)
	c.mu.Unlock()

	if !sem.TryAcquire(1) {
		// Every worker slot is busy; one of them will drain the request
		// we just queued before exiting.
		return
	}
	go func() {
		defer sem.Release(1)
		c.drainReadAhead()
	}()
}

// drainReadAhead pops queued prefetch sectors until the queue is empty,
// fetching each one that is not already resident. Prefetching never
// evicts: once the cache is full, the remaining queue entries are
// dropped rather than force out sectors someone actually asked for.
func (c *Cache) drainReadAhead() {
	for {
		c.mu.Lock()
		if c.raQueue.IsEmpty() {
			c.mu.Unlock()
			return
		}
		next := c.raQueue.Pop()
		if next >= c.dev.TotalSectors() {
			c.mu.Unlock()
			continue
		}
		if c.residentLocked(next) {
			c.mu.Unlock()
			continue
		}
		if len(c.slots) >= c.capacity {
			c.mu.Unlock()
			continue
		}
		s := &Slot{sector: next}
		if err := c.dev.ReadSector(next, s.buf[:]); err != nil {
			c.mu.Unlock()
			return
		}
		s.accessed = true
		c.slots = append(c.slots, s)
		c.index[next] = s
		c.mu.Unlock()
	}
}
