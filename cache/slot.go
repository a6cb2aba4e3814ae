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

import "github.com/blockfs-labs/blockfs/blockdev"

// Slot is one sector's worth of cached bytes plus its bookkeeping: the
// sector it caches, a pin count, the dirty flag and the second-chance
// accessed bit. A Slot is only ever handed to a caller pinned; callers
// must call (*Cache).Unpin when done.
//
// Fields other than the buffer are only ever touched under the owning
// Cache's lock; Slot carries no lock of its own.
type Slot struct {
	sector   uint32
	buf      [blockdev.SectorSize]byte
	pinCount int
	dirty    bool
	accessed bool
}

// Sector returns the sector number this slot currently caches.
func (s *Slot) Sector() uint32 { return s.sector }

// Bytes returns the slot's buffer. Valid only while the slot remains
// pinned by the caller; the buffer may be overwritten by a concurrent
// eviction once unpinned.
func (s *Slot) Bytes() []byte { return s.buf[:] }
