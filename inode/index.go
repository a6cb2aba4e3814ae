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

import "errors"

// ErrNoSector is returned by resolveSector when the requested offset
// is not covered by the inode's current length.
var ErrNoSector = errors.New("inode: offset has no backing sector")

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}

// sectorForOffset returns which of the 512-byte sectors within the
// file's address space covers byte offset.
func sectorForOffset(offset int64) int64 { return offset / SectorSize }

// resolveSector maps a byte offset to the data sector backing it:
// direct pointers for the first 4 sectors, then 9 single-indirect
// regions of 128 sectors each, then one double-indirect region of up
// to 128*128 sectors.
func (in *Inode) resolveSector(offset int64) (uint32, error) {
	if offset >= int64(in.length.Load()) {
		return 0, ErrNoSector
	}
	s := sectorForOffset(offset)

	if s < DirectPointers {
		return in.pointers[s], nil
	}

	s -= DirectPointers
	if s < SingleIndirectPointers*PointersPerIndirectBlock {
		blockSlot := DirectPointers + s/PointersPerIndirectBlock
		entry := s % PointersPerIndirectBlock
		block, err := in.readIndirectBlock(in.pointers[blockSlot])
		if err != nil {
			return 0, err
		}
		return block[entry], nil
	}

	s -= SingleIndirectPointers * PointersPerIndirectBlock
	outer := s / PointersPerIndirectBlock
	inner := s % PointersPerIndirectBlock

	dbl, err := in.readIndirectBlock(in.pointers[DirectPointers+SingleIndirectPointers])
	if err != nil {
		return 0, err
	}
	innerBlock, err := in.readIndirectBlock(dbl[outer])
	if err != nil {
		return 0, err
	}
	return innerBlock[inner], nil
}

func (in *Inode) readIndirectBlock(sector uint32) (indirectBlock, error) {
	slot, err := in.cache.Get(sector, false)
	if err != nil {
		return indirectBlock{}, err
	}
	b := unmarshalIndirectBlock(slot.Bytes())
	in.cache.Unpin(slot)
	return b, nil
}

// allocatedSectorCount returns how many data sectors the index tree
// currently describes as populated, derived from the three growth
// cursors.
func (in *Inode) allocatedSectorCount() int64 {
	switch {
	case in.directIndex < DirectPointers:
		return int64(in.directIndex)
	case in.directIndex < DirectPointers+SingleIndirectPointers:
		full := int64(in.directIndex - DirectPointers)
		return DirectPointers + full*PointersPerIndirectBlock + int64(in.indirectIndex)
	default:
		return DirectPointers +
			SingleIndirectPointers*PointersPerIndirectBlock +
			int64(in.doubleIndirectIndex)
	}
}

// zeroSector zero-fills a freshly allocated sector through the cache:
// every newly grown data sector must read as zero until written.
func (in *Inode) zeroSector(sector uint32) error {
	slot, err := in.cache.Get(sector, true)
	if err != nil {
		return err
	}
	b := slot.Bytes()
	for i := range b {
		b[i] = 0
	}
	in.cache.Unpin(slot)
	return nil
}

func (in *Inode) writeIndirectBlock(sector uint32, b indirectBlock) error {
	slot, err := in.cache.Get(sector, true)
	if err != nil {
		return err
	}
	enc := b.marshal()
	copy(slot.Bytes(), enc[:])
	in.cache.Unpin(slot)
	return nil
}

// grow extends the index tree to cover targetLength bytes, allocating
// one data sector at a time through alloc and advancing directIndex/
// indirectIndex/doubleIndirectIndex monotonically (the cursors never
// retreat). Callers must hold growMu for files; directory callers
// intentionally do not.
//
// If the allocator is exhausted partway through, the partial growth is
// left in place and the returned length reflects only what succeeded:
// growth never returns an error for allocator exhaustion, only a
// shorter length.
func (in *Inode) grow(targetLength int64) int64 {
	current := int64(in.length.Load())
	if targetLength <= current {
		return current
	}

	targetSectors := ceilDiv(targetLength, SectorSize)
	haveSectors := in.allocatedSectorCount()

	var allocated int64
	for haveSectors+allocated < targetSectors {
		sector, ok := in.alloc.Allocate(1)
		if !ok {
			break
		}
		if err := in.zeroSector(sector); err != nil {
			in.alloc.Release(sector, 1)
			break
		}
		if err := in.linkNextDataSector(sector); err != nil {
			in.alloc.Release(sector, 1)
			break
		}
		allocated++
	}

	reachedSectors := haveSectors + allocated
	reachedBytes := reachedSectors * SectorSize
	newLength := targetLength
	if reachedBytes < targetLength {
		newLength = reachedBytes
	}
	if newLength < current {
		newLength = current
	}
	in.length.Store(int32(newLength))
	return newLength
}

// linkNextDataSector records a freshly allocated, zeroed data sector as
// the next one in the index tree, lazily materializing indirect blocks
// as needed and writing every indirect block it touches back through
// the cache before returning.
func (in *Inode) linkNextDataSector(sector uint32) error {
	switch {
	case in.directIndex < DirectPointers:
		in.pointers[in.directIndex] = sector
		in.directIndex++
		return nil

	case in.directIndex < DirectPointers+SingleIndirectPointers:
		blockSlot := in.directIndex
		var block indirectBlock
		var blockSector uint32
		if in.indirectIndex == 0 {
			s, ok := in.alloc.Allocate(1)
			if !ok {
				return errAllocExhausted
			}
			blockSector = s
			in.pointers[blockSlot] = blockSector
		} else {
			blockSector = in.pointers[blockSlot]
			b, err := in.readIndirectBlock(blockSector)
			if err != nil {
				return err
			}
			block = b
		}
		block[in.indirectIndex] = sector
		if err := in.writeIndirectBlock(blockSector, block); err != nil {
			return err
		}
		in.indirectIndex++
		if in.indirectIndex == PointersPerIndirectBlock {
			in.directIndex++
			in.indirectIndex = 0
		}
		return nil

	default: // double-indirect region (directIndex == DirectPointers+SingleIndirectPointers)
		flat := int64(in.doubleIndirectIndex)
		outer := flat / PointersPerIndirectBlock
		inner := flat % PointersPerIndirectBlock

		dblSlot := DirectPointers + SingleIndirectPointers
		var dbl indirectBlock
		var dblSector uint32
		if flat == 0 {
			s, ok := in.alloc.Allocate(1)
			if !ok {
				return errAllocExhausted
			}
			dblSector = s
			in.pointers[dblSlot] = dblSector
		} else {
			dblSector = in.pointers[dblSlot]
			b, err := in.readIndirectBlock(dblSector)
			if err != nil {
				return err
			}
			dbl = b
		}

		var innerBlock indirectBlock
		var innerSector uint32
		if inner == 0 {
			s, ok := in.alloc.Allocate(1)
			if !ok {
				if flat == 0 {
					// The double-indirect block itself was just
					// allocated for this attempt; undo it so a failed
					// grow doesn't leak a sector nothing points at.
					in.alloc.Release(dblSector, 1)
					in.pointers[dblSlot] = 0
				}
				return errAllocExhausted
			}
			innerSector = s
			dbl[outer] = innerSector
			if err := in.writeIndirectBlock(dblSector, dbl); err != nil {
				return err
			}
		} else {
			innerSector = dbl[outer]
			b, err := in.readIndirectBlock(innerSector)
			if err != nil {
				return err
			}
			innerBlock = b
		}

		innerBlock[inner] = sector
		if err := in.writeIndirectBlock(innerSector, innerBlock); err != nil {
			return err
		}
		in.doubleIndirectIndex++
		return nil
	}
}

var errAllocExhausted = errors.New("inode: allocator exhausted during growth")

// deallocate releases every data sector, indirect block and
// double-indirect block this inode's index tree currently holds. The
// counts are computed from the current length rather than from the
// cursors, so a partial growth that never advanced the final cursor
// still frees correctly. It does not release the inode's own sector;
// the caller (Table.Close) does that.
func (in *Inode) deallocate() error {
	length := int64(in.length.Load())
	sectorCount := ceilDiv(length, SectorSize)
	if length == 0 {
		sectorCount = 0
	}

	direct := min64(sectorCount, DirectPointers)
	for i := int64(0); i < direct; i++ {
		in.alloc.Release(in.pointers[i], 1)
	}
	remaining := sectorCount - direct

	singleCap := int64(SingleIndirectPointers) * PointersPerIndirectBlock
	singleData := min64(remaining, singleCap)
	singleBlocks := ceilDiv(singleData, PointersPerIndirectBlock)
	left := singleData
	for i := int64(0); i < singleBlocks; i++ {
		blockSector := in.pointers[DirectPointers+i]
		block, err := in.readIndirectBlock(blockSector)
		if err != nil {
			return err
		}
		n := min64(left, PointersPerIndirectBlock)
		for j := int64(0); j < n; j++ {
			in.alloc.Release(block[j], 1)
		}
		in.alloc.Release(blockSector, 1)
		left -= n
	}
	remaining -= singleData

	if remaining > 0 {
		dblSector := in.pointers[DirectPointers+SingleIndirectPointers]
		dbl, err := in.readIndirectBlock(dblSector)
		if err != nil {
			return err
		}
		innerBlocks := ceilDiv(remaining, PointersPerIndirectBlock)
		left := remaining
		for i := int64(0); i < innerBlocks; i++ {
			innerSector := dbl[i]
			inner, err := in.readIndirectBlock(innerSector)
			if err != nil {
				return err
			}
			n := min64(left, PointersPerIndirectBlock)
			for j := int64(0); j < n; j++ {
				in.alloc.Release(inner[j], 1)
			}
			in.alloc.Release(innerSector, 1)
			left -= n
		}
		in.alloc.Release(dblSector, 1)
	}

	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
