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

package blockdev

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// SuperblockMagic identifies a formatted blockfs image.
const SuperblockMagic uint32 = 0x53425358 // "SBSX"

// SuperblockSector is where the superblock lives; the free-sector
// bitmap (owned by package alloc) follows starting at sector 1.
const SuperblockSector uint32 = 0

// Superblock is the small piece of allocator territory this package
// must know about in order to format a fresh image: its identity and
// size. The free-sector bitmap itself is owned by package alloc.
type Superblock struct {
	Magic        uint32
	TotalSectors uint32
	ImageID      uuid.UUID
	// RootSector is the sector of the root directory's inode, set by
	// SetRootSector once package fs has created it. The bitmap's size
	// (and so the first usable data sector) depends on TotalSectors, so
	// the root can't simply be a fixed constant sector number.
	RootSector uint32
}

// Format writes a fresh superblock to sector 0 of dev, stamping a new
// random image UUID. It does not initialize the free-sector bitmap;
// callers format the device and then call alloc.Format. RootSector is
// written as 0 (meaning "not yet set") until SetRootSector runs.
func Format(dev Device, totalSectors uint32) (Superblock, error) {
	sb := Superblock{
		Magic:        SuperblockMagic,
		TotalSectors: totalSectors,
		ImageID:      uuid.New(),
	}
	if err := writeSuperblock(dev, sb); err != nil {
		return Superblock{}, err
	}
	return sb, nil
}

// SetRootSector rewrites the superblock with the root directory's
// sector number, once package fs has allocated it.
func SetRootSector(dev Device, root uint32) error {
	sb, err := ReadSuperblock(dev)
	if err != nil {
		return err
	}
	sb.RootSector = root
	return writeSuperblock(dev, sb)
}

func writeSuperblock(dev Device, sb Superblock) error {
	buf := make([]byte, SectorSize)
	binary.LittleEndian.PutUint32(buf[0:4], sb.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], sb.TotalSectors)
	idBytes, err := sb.ImageID.MarshalBinary()
	if err != nil {
		return err
	}
	copy(buf[8:8+len(idBytes)], idBytes)
	binary.LittleEndian.PutUint32(buf[24:28], sb.RootSector)

	return dev.WriteSector(SuperblockSector, buf)
}

// ReadSuperblock reads and validates the superblock at sector 0.
func ReadSuperblock(dev Device) (Superblock, error) {
	buf := make([]byte, SectorSize)
	if err := dev.ReadSector(SuperblockSector, buf); err != nil {
		return Superblock{}, err
	}

	magic := binary.LittleEndian.Uint32(buf[0:4])
	if magic != SuperblockMagic {
		return Superblock{}, fmt.Errorf("blockdev: bad superblock magic %#x, want %#x", magic, SuperblockMagic)
	}

	sb := Superblock{
		Magic:        magic,
		TotalSectors: binary.LittleEndian.Uint32(buf[4:8]),
		RootSector:   binary.LittleEndian.Uint32(buf[24:28]),
	}
	if err := sb.ImageID.UnmarshalBinary(buf[8:24]); err != nil {
		return Superblock{}, err
	}
	return sb, nil
}
