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

// Package inode is the on-disk inode layout, the sector index tree,
// the open-inode table and the file operations. They live in one
// package, as different files, because they all operate on the same
// locked, reference-counted Inode.
package inode

import "encoding/binary"

// Fan-out constants, derived from a 512-byte sector holding 4-byte
// sector indices. Changing the sector size means recomputing these and
// the reserved-field padding to keep the inode exactly one sector.
const (
	SectorSize = 512

	PointerCount             = 14  // total sector pointers in an inode
	DirectPointers           = 4   // slots 0-3
	SingleIndirectPointers   = 9   // slots 4-12
	DoubleIndirectPointer    = 1   // slot 13
	PointersPerIndirectBlock = 128 // 512 / 4

	// MaxSectors is the addressable capacity of one inode: 4 direct +
	// 9*128 single-indirect + 128*128 double-indirect.
	MaxSectors = DirectPointers +
		SingleIndirectPointers*PointersPerIndirectBlock +
		PointersPerIndirectBlock*PointersPerIndirectBlock

	// Magic identifies a valid on-disk inode sector ("INOD").
	Magic uint32 = 0x494E4F44
)

// On-disk field byte offsets.
const (
	offLength              = 0
	offMagic               = 4
	offDirectIndex         = 8
	offIndirectIndex       = 12
	offDoubleIndirectIndex = 16
	offIsDirectory         = 20
	offParent              = 24
	offReservedStart       = 28
	reservedLen            = 428
	offPointers            = offReservedStart + reservedLen // 456
)

// onDisk is the exact 512-byte wire representation of an inode
// sector.
type onDisk struct {
	length              int32
	magic               uint32
	directIndex         uint32
	indirectIndex       uint32
	doubleIndirectIndex uint32
	isDirectory         bool
	parent              uint32
	pointers            [PointerCount]uint32
}

func (d *onDisk) marshal() [SectorSize]byte {
	var buf [SectorSize]byte

	binary.LittleEndian.PutUint32(buf[offLength:], uint32(d.length))
	binary.LittleEndian.PutUint32(buf[offMagic:], d.magic)
	binary.LittleEndian.PutUint32(buf[offDirectIndex:], d.directIndex)
	binary.LittleEndian.PutUint32(buf[offIndirectIndex:], d.indirectIndex)
	binary.LittleEndian.PutUint32(buf[offDoubleIndirectIndex:], d.doubleIndirectIndex)
	if d.isDirectory {
		buf[offIsDirectory] = 1
	}
	binary.LittleEndian.PutUint32(buf[offParent:], d.parent)
	// buf[offReservedStart : offReservedStart+reservedLen] stays zero.
	for i, p := range d.pointers {
		off := offPointers + i*4
		binary.LittleEndian.PutUint32(buf[off:], p)
	}
	return buf
}

// unmarshalOnDisk decodes a 512-byte sector into an onDisk. It does not
// validate the magic number; callers that read from an expected-live
// inode sector should check Magic themselves. An invalid magic is a
// programmer error, detected by assertion, not recovered from here.
func unmarshalOnDisk(buf []byte) onDisk {
	var d onDisk
	d.length = int32(binary.LittleEndian.Uint32(buf[offLength:]))
	d.magic = binary.LittleEndian.Uint32(buf[offMagic:])
	d.directIndex = binary.LittleEndian.Uint32(buf[offDirectIndex:])
	d.indirectIndex = binary.LittleEndian.Uint32(buf[offIndirectIndex:])
	d.doubleIndirectIndex = binary.LittleEndian.Uint32(buf[offDoubleIndirectIndex:])
	d.isDirectory = buf[offIsDirectory] != 0
	d.parent = binary.LittleEndian.Uint32(buf[offParent:])
	for i := range d.pointers {
		off := offPointers + i*4
		d.pointers[i] = binary.LittleEndian.Uint32(buf[off:])
	}
	return d
}

// indirectBlock is a sector interpreted as 128 consecutive 32-bit
// sector indices; unused slots are zero.
type indirectBlock [PointersPerIndirectBlock]uint32

func (b *indirectBlock) marshal() [SectorSize]byte {
	var buf [SectorSize]byte
	for i, p := range b {
		binary.LittleEndian.PutUint32(buf[i*4:], p)
	}
	return buf
}

func unmarshalIndirectBlock(buf []byte) indirectBlock {
	var b indirectBlock
	for i := range b {
		b[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return b
}
