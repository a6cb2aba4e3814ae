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
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockfs-labs/blockfs/alloc"
	"github.com/blockfs-labs/blockfs/cache"
	"github.com/blockfs-labs/blockfs/clock"
)

// Inode is the in-memory reflection of an on-disk inode,
// reference-counted across every opener by the owning Table. Two
// concurrent Table.Open calls for the same sector return the identical
// *Inode; this identity is what makes deny-write/allow-write and
// open-count bookkeeping meaningful.
type Inode struct {
	sector uint32
	cache  *cache.Cache
	alloc  *alloc.Allocator
	clk    clock.Clock

	// growMu guards growth: held around grow and around every mutation
	// of directIndex/indirectIndex/doubleIndirectIndex/pointers for a
	// file. Directory growth deliberately does NOT take this lock;
	// directory mutations are serialized by an external directory lock
	// this package does not implement.
	growMu sync.Mutex

	directIndex         uint32
	indirectIndex       uint32
	doubleIndirectIndex uint32
	pointers            [PointerCount]uint32

	isDirectory bool
	parent      uint32

	length     atomic.Int32
	readLength atomic.Int32

	mtime atomic.Pointer[time.Time]

	// stateMu guards the reference-counting fields below. Table mutates
	// them directly under stateMu; DenyWrite panics if denyWriteCount
	// would exceed openCount and AllowWrite panics if it would go below
	// zero. Close does not check denyWriteCount.
	stateMu        sync.Mutex
	openCount      int
	removed        bool
	denyWriteCount int
}

// Sector is the inode's own on-disk sector number, its identity.
func (in *Inode) Sector() uint32 { return in.sector }

// IsDir reports whether this inode represents a directory.
func (in *Inode) IsDir() bool { return in.isDirectory }

// Parent returns the sector of the parent directory.
func (in *Inode) Parent() uint32 { return in.parent }

// Length returns the current length in bytes. It may be larger than
// ReadLength while a growing write is still in progress.
func (in *Inode) Length() int64 { return int64(in.length.Load()) }

// ReadLength returns the length visible to concurrent readers: it only
// ever advances, and only after a write that extended the file has
// fully completed.
func (in *Inode) ReadLength() int64 { return int64(in.readLength.Load()) }

// ModTime returns the last time a WriteAt succeeded, or the zero time
// if the inode has never been written to in this process. This is an
// in-memory-only convenience (see DESIGN.md); it has no on-disk field.
func (in *Inode) ModTime() time.Time {
	if p := in.mtime.Load(); p != nil {
		return *p
	}
	return time.Time{}
}

func (in *Inode) onDisk() onDisk {
	return onDisk{
		length:              in.length.Load(),
		magic:               Magic,
		directIndex:         in.directIndex,
		indirectIndex:       in.indirectIndex,
		doubleIndirectIndex: in.doubleIndirectIndex,
		isDirectory:         in.isDirectory,
		parent:              in.parent,
		pointers:            in.pointers,
	}
}

func (in *Inode) loadFrom(d onDisk) {
	in.length.Store(d.length)
	in.readLength.Store(d.length)
	in.directIndex = d.directIndex
	in.indirectIndex = d.indirectIndex
	in.doubleIndirectIndex = d.doubleIndirectIndex
	in.isDirectory = d.isDirectory
	in.parent = d.parent
	in.pointers = d.pointers
}

// OpenCount returns the inode's current reference count.
func (in *Inode) OpenCount() int {
	in.stateMu.Lock()
	defer in.stateMu.Unlock()
	return in.openCount
}

// isDeniedWrite reports whether a writer must currently be turned
// away.
func (in *Inode) isDeniedWrite() bool {
	in.stateMu.Lock()
	defer in.stateMu.Unlock()
	return in.denyWriteCount > 0
}
