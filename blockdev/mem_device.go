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

import "sync"

// MemDevice is an in-memory Device backed by a single byte slice, the
// fake half of the FileDevice/MemDevice pairing (compare
// clock.SystemClock and clock.ManualClock): production mounts use
// FileDevice, tests use MemDevice so the whole cache/inode stack can be
// exercised without touching disk.
type MemDevice struct {
	mu    sync.Mutex
	data  []byte
	total uint32
}

var _ Device = (*MemDevice)(nil)

// NewMemDevice allocates an in-memory device of totalSectors sectors,
// zero-filled.
func NewMemDevice(totalSectors uint32) *MemDevice {
	return &MemDevice{
		data:  make([]byte, int(totalSectors)*SectorSize),
		total: totalSectors,
	}
}

func (d *MemDevice) TotalSectors() uint32 { return d.total }

func (d *MemDevice) ReadSector(sector uint32, buf []byte) error {
	checkBufLen(buf)
	checkSector(sector, d.total)

	d.mu.Lock()
	defer d.mu.Unlock()

	off := int(sector) * SectorSize
	copy(buf, d.data[off:off+SectorSize])
	return nil
}

func (d *MemDevice) WriteSector(sector uint32, buf []byte) error {
	checkBufLen(buf)
	checkSector(sector, d.total)

	d.mu.Lock()
	defer d.mu.Unlock()

	off := int(sector) * SectorSize
	copy(d.data[off:off+SectorSize], buf)
	return nil
}
