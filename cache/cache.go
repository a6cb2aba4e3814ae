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

// Package cache is the buffer cache: a bounded pool of sector-sized
// slots over a blockdev.Device, with clock-hand eviction, pin-count-based
// safety, dirty write-back, background flushing and best-effort
// read-ahead.
package cache

import (
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/blockfs-labs/blockfs/blockdev"
	"github.com/blockfs-labs/blockfs/common"
	"github.com/blockfs-labs/blockfs/internal/metrics"
)

// Cache is the buffer cache. The zero value is not usable; construct one
// with New. A Cache is safe for concurrent use.
type Cache struct {
	dev      blockdev.Device
	capacity int
	metrics  *metrics.CacheMetrics

	mu    sync.Mutex
	slots []*Slot          // insertion order; clock-hand sweeps this slice
	index map[uint32]*Slot // sector -> slot, for O(1) hit lookup
	hand  int              // next candidate slot for eviction

	// Read-ahead state, nil until EnableReadAhead. raQueue holds pending
	// prefetch sectors (guarded by mu); raSem bounds the drain workers.
	raSem   *semaphore.Weighted
	raQueue common.Queue[uint32]
}

// New constructs a Cache of the given slot capacity backed by dev. A
// mount uses 64 slots; tests shrink the capacity to exercise eviction
// cheaply.
func New(dev blockdev.Device, capacity int, m *metrics.CacheMetrics) *Cache {
	if m == nil {
		m = metrics.NewNoopCacheMetrics()
	}
	return &Cache{
		dev:      dev,
		capacity: capacity,
		metrics:  m,
		index:    make(map[uint32]*Slot, capacity),
	}
}

// Get returns a pinned handle whose buffer is current for sector. If
// markDirty, the slot is marked dirty atomically with the pinning.
// Callers must call Unpin exactly once for every successful Get.
//
// Device I/O failures panic; Get never returns a non-nil error with
// the Device implementations shipped here, but keeps the signature so
// a future Device that surfaces recoverable errors does not need to
// change this API.
func (c *Cache) Get(sector uint32, markDirty bool) (*Slot, error) {
	c.mu.Lock()

	if s, ok := c.index[sector]; ok {
		s.pinCount++
		if markDirty {
			s.dirty = true
		}
		s.accessed = true
		c.mu.Unlock()
		c.metrics.Hits.Inc()
		return s, nil
	}
	c.metrics.Misses.Inc()

	if len(c.slots) < c.capacity {
		s := &Slot{sector: sector}
		if err := c.dev.ReadSector(sector, s.buf[:]); err != nil {
			c.mu.Unlock()
			return nil, err
		}
		s.pinCount = 1
		s.accessed = true
		s.dirty = markDirty
		c.slots = append(c.slots, s)
		c.index[sector] = s
		c.mu.Unlock()
		return s, nil
	}

	return c.evictLocked(sector, markDirty)
}

// evictLocked runs the second-chance clock sweep and returns a freshly
// repurposed, pinned slot for sector. Called with c.mu held; returns
// with c.mu released.
//
// If every slot is pinned the sweep spins indefinitely, yielding
// between passes. Callers are required to unpin promptly, which keeps
// the spin short-lived; a condition variable signaled on Unpin would
// remove it entirely (see DESIGN.md).
func (c *Cache) evictLocked(sector uint32, markDirty bool) (*Slot, error) {
	for {
		for i := 0; i < len(c.slots); i++ {
			idx := c.hand
			c.hand = (c.hand + 1) % len(c.slots)
			cand := c.slots[idx]

			if cand.pinCount > 0 {
				continue
			}
			if cand.accessed {
				cand.accessed = false
				continue
			}

			if cand.dirty {
				if err := c.dev.WriteSector(cand.sector, cand.buf[:]); err != nil {
					c.mu.Unlock()
					return nil, err
				}
				c.metrics.Writebacks.Inc()
				cand.dirty = false
			}
			delete(c.index, cand.sector)

			cand.sector = sector
			if err := c.dev.ReadSector(sector, cand.buf[:]); err != nil {
				c.mu.Unlock()
				return nil, err
			}
			// A repurposed slot starts pinned exactly once; carrying any
			// stale pin count forward would leave it permanently
			// unevictable.
			cand.pinCount = 1
			cand.accessed = true
			cand.dirty = markDirty
			c.index[sector] = cand

			c.metrics.Evictions.Inc()
			c.mu.Unlock()
			return cand, nil
		}
		// A full pass found no victim (every slot was pinned or only lost
		// its second chance): release and yield rather than spin holding
		// the lock, then retry the sweep.
		c.mu.Unlock()
		runtime.Gosched()
		c.mu.Lock()
	}
}

// Unpin releases a pin acquired by Get. Panics if the slot is not
// currently pinned.
func (c *Cache) Unpin(s *Slot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.pinCount <= 0 {
		panic("cache: Unpin called on a slot with pinCount <= 0")
	}
	s.pinCount--
}

// Flush writes every dirty slot back to its sector. If halt, every slot
// is also evacuated (sector cleared from the index); this is the
// unmount path, after which the Cache must not be used again.
func (c *Cache) Flush(halt bool) error {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() { c.metrics.FlushDuration.Observe(time.Since(start).Seconds()) }()
	return c.flushLocked(halt)
}

func (c *Cache) flushLocked(halt bool) error {
	for _, s := range c.slots {
		if s.dirty {
			if err := c.dev.WriteSector(s.sector, s.buf[:]); err != nil {
				return err
			}
			c.metrics.Writebacks.Inc()
			s.dirty = false
		}
	}
	if halt {
		c.slots = nil
		c.index = make(map[uint32]*Slot)
		c.hand = 0
	}
	return nil
}

// residentLocked reports whether sector is currently cached. Callers
// must hold c.mu.
func (c *Cache) residentLocked(sector uint32) bool {
	_, ok := c.index[sector]
	return ok
}

// Capacity returns the configured slot bound.
func (c *Cache) Capacity() int { return c.capacity }
