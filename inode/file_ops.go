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
	"errors"
	"io"
)

// ErrWriteDenied is returned by WriteAt, with zero bytes written,
// while the inode's deny-write count is greater than zero.
var ErrWriteDenied = errors.New("inode: write denied")

// ReadAt copies up to len(p) bytes starting at off into p, bounded by
// ReadLength rather than Length, so a reader never observes a byte
// range a concurrent growing write has not yet fully published.
//
// ReadAt follows io.ReaderAt's contract: reading past the end of the
// file is not a failure, it returns however many bytes exist and
// io.EOF.
func (in *Inode) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("inode: negative offset")
	}
	readLen := int64(in.readLength.Load())
	if off >= readLen {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	end := off + int64(len(p))
	if end > readLen {
		end = readLen
	}

	n := 0
	for cur := off; cur < end; {
		sector, err := in.resolveSector(cur)
		if err != nil {
			return n, err
		}
		sectorOff := cur % SectorSize
		chunk := int64(SectorSize) - sectorOff
		if cur+chunk > end {
			chunk = end - cur
		}

		slot, err := in.cache.Get(sector, false)
		if err != nil {
			return n, err
		}
		copy(p[n:], slot.Bytes()[sectorOff:sectorOff+chunk])
		in.cache.Unpin(slot)
		in.cache.ReadAhead(sector)

		n += int(chunk)
		cur += chunk
	}

	if int64(n) < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt copies p into the file starting at off. If the inode is
// denied write access, it returns (0, ErrWriteDenied). If the write
// extends past the current length and the inode is a file, it grows
// the index tree under growMu first (directories grow without that
// lock, see DESIGN.md). It then copies p sector-by-sector through the
// cache, marking each touched slot dirty, and finally publishes
// ReadLength so concurrent readers see either the pre-write or the
// fully-written view, never a partial one.
func (in *Inode) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("inode: negative offset")
	}
	if in.isDeniedWrite() {
		return 0, ErrWriteDenied
	}

	end := off + int64(len(p))
	if end > int64(in.length.Load()) {
		if in.isDirectory {
			in.grow(end)
		} else {
			in.growMu.Lock()
			in.grow(end)
			in.growMu.Unlock()
		}
	}

	length := int64(in.length.Load())
	if end > length {
		end = length
	}

	n := 0
	for cur := off; cur < end; {
		sector, err := in.resolveSector(cur)
		if err != nil {
			break
		}
		sectorOff := cur % SectorSize
		chunk := int64(SectorSize) - sectorOff
		if cur+chunk > end {
			chunk = end - cur
		}

		slot, err := in.cache.Get(sector, true)
		if err != nil {
			return n, err
		}
		copy(slot.Bytes()[sectorOff:sectorOff+chunk], p[n:n+int(chunk)])
		in.cache.Unpin(slot)

		n += int(chunk)
		cur += chunk
	}

	if n > 0 {
		t := in.clk.Now()
		in.mtime.Store(&t)
	}
	in.readLength.Store(in.length.Load())
	return n, nil
}
