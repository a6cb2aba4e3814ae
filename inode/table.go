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

package inode

import (
	"fmt"
	"sync"

	"github.com/blockfs-labs/blockfs/alloc"
	"github.com/blockfs-labs/blockfs/blockdev"
	"github.com/blockfs-labs/blockfs/cache"
	"github.com/blockfs-labs/blockfs/clock"
)

// Table is the open-inode table: a per-mount set of in-memory inodes
// keyed by sector number.
//
// The double-open invariant (at most one in-memory Inode per sector at
// any time, all openers sharing it) is the reason Table exists at all;
// it is what makes DenyWrite/AllowWrite counting meaningful across
// concurrent openers.
type Table struct {
	dev   blockdev.Device
	cache *cache.Cache
	alloc *alloc.Allocator
	clk   clock.Clock

	mu   sync.Mutex // guards only the open map below
	open map[uint32]*Inode
}

// NewTable constructs an open-inode table over dev/cache/alloc. clk may
// be nil, in which case ModTime stamping uses clock.SystemClock.
func NewTable(dev blockdev.Device, c *cache.Cache, a *alloc.Allocator, clk clock.Clock) *Table {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Table{
		dev:   dev,
		cache: c,
		alloc: a,
		clk:   clk,
		open:  make(map[uint32]*Inode),
	}
}

// Open returns the in-memory inode for sector, reference-counted. If
// the sector is already open, the existing *Inode is returned;
// identity-equality across callers is load-bearing. Otherwise the
// on-disk inode is read directly from the device (not via the cache;
// inode sectors are persisted the same way on Close, so the device
// copy is authoritative until first data I/O), populated into a fresh
// Inode, and pushed onto the table.
func (t *Table) Open(sector uint32) (*Inode, error) {
	t.mu.Lock()
	if in, ok := t.open[sector]; ok {
		t.mu.Unlock()
		in.stateMu.Lock()
		in.openCount++
		in.stateMu.Unlock()
		return in, nil
	}
	t.mu.Unlock()

	buf := make([]byte, SectorSize)
	if err := t.dev.ReadSector(sector, buf); err != nil {
		return nil, fmt.Errorf("inode: open sector %d: %w", sector, err)
	}
	d := unmarshalOnDisk(buf)
	if d.magic != Magic {
		panic(fmt.Sprintf("inode: sector %d has bad magic %#x, want %#x", sector, d.magic, Magic))
	}

	in := &Inode{
		sector: sector,
		cache:  t.cache,
		alloc:  t.alloc,
		clk:    t.clk,
	}
	in.loadFrom(d)
	in.openCount = 1

	// Between the unlock above and this lock, another caller may have
	// raced us to open the same sector; the second populated Inode
	// loses so the double-open invariant holds.
	t.mu.Lock()
	if existing, ok := t.open[sector]; ok {
		t.mu.Unlock()
		existing.stateMu.Lock()
		existing.openCount++
		existing.stateMu.Unlock()
		return existing, nil
	}
	t.open[sector] = in
	t.mu.Unlock()
	return in, nil
}

// Create allocates a fresh sector, writes a zeroed inode with the
// given directory-ness and parent to it, and opens it (the open count
// starts at 1). This is the only way a sector acquires a valid Magic.
// Create does not touch any directory's contents; directory-entry
// linking belongs to the layer above.
func (t *Table) Create(isDirectory bool, parent uint32) (*Inode, error) {
	sector, ok := t.alloc.Allocate(1)
	if !ok {
		return nil, fmt.Errorf("inode: create: %w", errAllocExhausted)
	}

	d := onDisk{
		magic:       Magic,
		isDirectory: isDirectory,
		parent:      parent,
	}
	buf := d.marshal()
	if err := t.dev.WriteSector(sector, buf[:]); err != nil {
		t.alloc.Release(sector, 1)
		return nil, fmt.Errorf("inode: create: write sector %d: %w", sector, err)
	}

	return t.Open(sector)
}

// Reopen increments the open count of an already-open inode, for a
// caller that already holds a reference and wants a second independent
// handle (e.g. a duplicated file descriptor) without re-reading the
// sector.
func (t *Table) Reopen(in *Inode) {
	in.stateMu.Lock()
	defer in.stateMu.Unlock()
	in.openCount++
}

// Remove marks in for deletion: the backing sector(s) are released on
// the last Close rather than immediately.
func (t *Table) Remove(in *Inode) {
	in.stateMu.Lock()
	defer in.stateMu.Unlock()
	in.removed = true
}

// Close decrements in's open count. On reaching zero, in is dropped
// from the table; if it was removed, its data sectors and the inode
// sector itself are released through alloc, otherwise its in-memory
// state is serialized back to its on-disk sector.
func (t *Table) Close(in *Inode) error {
	in.stateMu.Lock()
	in.openCount--
	if in.openCount > 0 {
		in.stateMu.Unlock()
		return nil
	}
	removed := in.removed
	in.stateMu.Unlock()

	t.mu.Lock()
	delete(t.open, in.sector)
	t.mu.Unlock()

	if removed {
		if err := in.deallocate(); err != nil {
			return fmt.Errorf("inode: close sector %d: deallocate: %w", in.sector, err)
		}
		t.alloc.Release(in.sector, 1)
		return nil
	}

	d := in.onDisk()
	buf := d.marshal()
	if err := t.dev.WriteSector(in.sector, buf[:]); err != nil {
		return fmt.Errorf("inode: close sector %d: %w", in.sector, err)
	}
	return nil
}

// DenyWrite increments in's deny-write count; while it is greater than
// zero, WriteAt returns ErrWriteDenied for every opener.
func (t *Table) DenyWrite(in *Inode) {
	in.stateMu.Lock()
	defer in.stateMu.Unlock()
	in.denyWriteCount++
	if in.denyWriteCount > in.openCount {
		panic("inode: deny_write_count exceeds open_count")
	}
}

// AllowWrite decrements in's deny-write count.
func (t *Table) AllowWrite(in *Inode) {
	in.stateMu.Lock()
	defer in.stateMu.Unlock()
	if in.denyWriteCount == 0 {
		panic("inode: allow_write called with deny_write_count already 0")
	}
	in.denyWriteCount--
}
