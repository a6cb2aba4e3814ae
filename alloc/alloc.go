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

// Package alloc is the free-sector allocator: a thread-safe bitmap
// over the sectors a Filesystem does not reserve for its own bookkeeping
// (the superblock and the bitmap itself).
package alloc

import (
	"sync"

	"github.com/blockfs-labs/blockfs/blockdev"
)

// BitmapStartSector is where the free-sector bitmap begins, immediately
// after the superblock.
const BitmapStartSector uint32 = 1

// bitsPerSector is how many sector-bits one bitmap sector can record.
const bitsPerSector = blockdev.SectorSize * 8

// Allocator reserves and releases individual sectors from the region of
// a device that lies beyond its own bitmap storage. The inode layer only
// ever reserves one sector at a time, but the interface supports
// reserving runs.
type Allocator struct {
	mu        sync.Mutex
	dev       blockdev.Device
	bitmap    []byte // one bit per sector in [dataStart, total)
	dataStart uint32
	total     uint32
	bitmapLen uint32 // sectors occupied by the bitmap itself
}

// Format initializes a fresh, all-free bitmap covering
// [dataStart, total) and writes it to dev starting at BitmapStartSector.
// dataStart is BitmapStartSector + the number of sectors the bitmap
// itself occupies, computed from total.
func Format(dev blockdev.Device, total uint32) (*Allocator, error) {
	usable := total - BitmapStartSector
	bitmapLen := (usable + bitsPerSector - 1) / bitsPerSector
	dataStart := BitmapStartSector + bitmapLen

	a := &Allocator{
		dev:       dev,
		bitmap:    make([]byte, bitmapLen*blockdev.SectorSize),
		dataStart: dataStart,
		total:     total,
		bitmapLen: bitmapLen,
	}
	if err := a.sync(); err != nil {
		return nil, err
	}
	return a, nil
}

// Load reads an existing bitmap back from dev. total must match the
// value the device was formatted with (callers get this from the
// superblock).
func Load(dev blockdev.Device, total uint32) (*Allocator, error) {
	usable := total - BitmapStartSector
	bitmapLen := (usable + bitsPerSector - 1) / bitsPerSector
	dataStart := BitmapStartSector + bitmapLen

	a := &Allocator{
		dev:       dev,
		bitmap:    make([]byte, bitmapLen*blockdev.SectorSize),
		dataStart: dataStart,
		total:     total,
		bitmapLen: bitmapLen,
	}

	buf := make([]byte, blockdev.SectorSize)
	for i := uint32(0); i < bitmapLen; i++ {
		if err := dev.ReadSector(BitmapStartSector+i, buf); err != nil {
			return nil, err
		}
		copy(a.bitmap[i*blockdev.SectorSize:], buf)
	}
	return a, nil
}

// Allocate reserves n consecutive sectors and returns their base index.
// ok is false if no run of n free sectors exists; exhaustion is an
// ordinary outcome the caller (inode growth) turns into a short write,
// not a panic.
func (a *Allocator) Allocate(n uint32) (base uint32, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	usable := a.total - a.dataStart
	run := uint32(0)
	start := uint32(0)
	for i := uint32(0); i < usable; i++ {
		if a.bit(i) {
			run = 0
			continue
		}
		if run == 0 {
			start = i
		}
		run++
		if run == n {
			for j := start; j < start+n; j++ {
				a.setBit(j, true)
			}
			return a.dataStart + start, true
		}
	}
	return 0, false
}

// Release returns n consecutive sectors starting at base to the free
// pool. base must have come from a prior Allocate call with the same n.
func (a *Allocator) Release(base, n uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for j := base - a.dataStart; j < base-a.dataStart+n; j++ {
		a.setBit(j, false)
	}
}

// Sync writes the in-memory bitmap back to the device. Callers persist
// it as part of an orderly unmount; there is no journal protecting an
// un-synced bitmap against a crash.
func (a *Allocator) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sync()
}

func (a *Allocator) sync() error {
	for i := uint32(0); i < a.bitmapLen; i++ {
		off := i * blockdev.SectorSize
		if err := a.dev.WriteSector(BitmapStartSector+i, a.bitmap[off:off+blockdev.SectorSize]); err != nil {
			return err
		}
	}
	return nil
}

func (a *Allocator) bit(i uint32) bool {
	return a.bitmap[i/8]&(1<<(i%8)) != 0
}

func (a *Allocator) setBit(i uint32, v bool) {
	if v {
		a.bitmap[i/8] |= 1 << (i % 8)
	} else {
		a.bitmap[i/8] &^= 1 << (i % 8)
	}
}

// DataStart returns the first sector available for allocation.
func (a *Allocator) DataStart() uint32 { return a.dataStart }
