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

// Package fs assembles the pieces into a mountable filesystem: the
// cache, the open-inode table, the cache lock and the background flush
// task are owned by a Filesystem constructed at Mount and torn down at
// Unmount, never by package-level globals.
package fs

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blockfs-labs/blockfs/alloc"
	"github.com/blockfs-labs/blockfs/blockdev"
	"github.com/blockfs-labs/blockfs/cache"
	"github.com/blockfs-labs/blockfs/cfg"
	"github.com/blockfs-labs/blockfs/clock"
	"github.com/blockfs-labs/blockfs/inode"
	"github.com/blockfs-labs/blockfs/internal/logger"
	"github.com/blockfs-labs/blockfs/internal/metrics"
)

// Filesystem bundles the device, allocator, cache and open-inode table
// that make up a mounted blockfs image, plus the background flush
// goroutine's lifecycle.
type Filesystem struct {
	dev   blockdev.Device
	alloc *alloc.Allocator
	cache *cache.Cache
	table *inode.Table
	clk   clock.Clock
	cfg   cfg.Config

	rootSector uint32

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Format lays out a fresh device: a superblock, a free-sector bitmap,
// and a root directory inode, whose sector is stamped back into the
// superblock so Mount can find it regardless of how large the bitmap
// turned out to be for this device's size. It must be called before
// the first Mount of a new image.
func Format(dev blockdev.Device, c cfg.Config) error {
	total := dev.TotalSectors()
	if _, err := blockdev.Format(dev, total); err != nil {
		return fmt.Errorf("fs: format superblock: %w", err)
	}
	a, err := alloc.Format(dev, total)
	if err != nil {
		return fmt.Errorf("fs: format allocator: %w", err)
	}

	cm := metrics.NewNoopCacheMetrics()
	ca := cache.New(dev, c.Cache.Capacity, cm)
	table := inode.NewTable(dev, ca, a, clock.SystemClock{})

	root, err := table.Create(true, 0)
	if err != nil {
		return fmt.Errorf("fs: format root directory: %w", err)
	}
	rootSector := root.Sector()
	if err := table.Close(root); err != nil {
		return fmt.Errorf("fs: format root directory: %w", err)
	}

	if err := blockdev.SetRootSector(dev, rootSector); err != nil {
		return fmt.Errorf("fs: format: stamp root sector: %w", err)
	}
	return a.Sync()
}

// Mount opens an already-formatted device and starts the background
// flush loop. Callers must call Unmount when done.
func Mount(dev blockdev.Device, c cfg.Config, clk clock.Clock) (*Filesystem, error) {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	total := dev.TotalSectors()
	sb, err := blockdev.ReadSuperblock(dev)
	if err != nil {
		return nil, fmt.Errorf("fs: mount: %w", err)
	}
	if sb.TotalSectors != total {
		return nil, fmt.Errorf("fs: mount: device has %d sectors but superblock says %d", total, sb.TotalSectors)
	}
	a, err := alloc.Load(dev, total)
	if err != nil {
		return nil, fmt.Errorf("fs: mount: load allocator: %w", err)
	}

	cm := metrics.NewCacheMetrics(nil)
	ca := cache.New(dev, c.Cache.Capacity, cm)
	if c.Cache.ReadAheadEnabled {
		ca.EnableReadAhead(c.Cache.ReadAheadConcurrency)
	}
	table := inode.NewTable(dev, ca, a, clk)

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	interval := time.Duration(c.Cache.FlushIntervalTicks) * time.Duration(c.Cache.TickDuration) * time.Millisecond
	group.Go(func() error {
		return ca.RunBackgroundFlush(gctx, clk, interval)
	})

	return &Filesystem{
		dev:        dev,
		alloc:      a,
		cache:      ca,
		table:      table,
		clk:        clk,
		cfg:        c,
		rootSector: sb.RootSector,
		cancel:     cancel,
		group:      group,
	}, nil
}

// Unmount stops the background flush goroutine, performs one final
// halting flush and persists the allocator bitmap.
func (f *Filesystem) Unmount() error {
	f.cancel()
	if err := f.group.Wait(); err != nil {
		logger.Errorf("fs: unmount: background flush: %v", err)
	}
	if err := f.cache.Flush(true); err != nil {
		return fmt.Errorf("fs: unmount: final flush: %w", err)
	}
	if err := f.alloc.Sync(); err != nil {
		return fmt.Errorf("fs: unmount: allocator sync: %w", err)
	}
	return nil
}

// OpenRoot opens the root directory inode.
func (f *Filesystem) OpenRoot() (*inode.Inode, error) {
	return f.table.Open(f.rootSector)
}

// Open opens the inode at sector.
func (f *Filesystem) Open(sector uint32) (*inode.Inode, error) {
	return f.table.Open(sector)
}

// CreateFile allocates a new file inode whose parent is parent's
// sector. Linking a name to it in parent's directory contents is a
// caller responsibility; directory-entry encoding lives above this
// module.
func (f *Filesystem) CreateFile(parent *inode.Inode) (*inode.Inode, error) {
	return f.table.Create(false, parent.Sector())
}

// CreateDir allocates a new, empty directory inode whose parent is
// parent's sector.
func (f *Filesystem) CreateDir(parent *inode.Inode) (*inode.Inode, error) {
	return f.table.Create(true, parent.Sector())
}

// Remove marks in for deletion; its sectors are released once the last
// opener closes it.
func (f *Filesystem) Remove(in *inode.Inode) {
	f.table.Remove(in)
}

// Close releases a reference to in, persisting or deallocating it once
// the last reference is gone.
func (f *Filesystem) Close(in *inode.Inode) error {
	return f.table.Close(in)
}

// DenyWrite / AllowWrite toggle in's deny-write count.
func (f *Filesystem) DenyWrite(in *inode.Inode) { f.table.DenyWrite(in) }
func (f *Filesystem) AllowWrite(in *inode.Inode) { f.table.AllowWrite(in) }

// Cache exposes the underlying buffer cache, e.g. for fsck/bench CLI
// diagnostics.
func (f *Filesystem) Cache() *cache.Cache { return f.cache }

// Allocator exposes the underlying free-sector allocator.
func (f *Filesystem) Allocator() *alloc.Allocator { return f.alloc }
