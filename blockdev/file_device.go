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
	"os"

	"golang.org/x/sys/unix"
)

// FileDevice is a Device backed by a regular file, read and written
// with positional pread(2)/pwrite(2) syscalls via golang.org/x/sys/unix
// rather than a shared *os.File offset, so two goroutines can operate
// on different sectors of the same fd without racing each other's Seek.
type FileDevice struct {
	f     *os.File
	total uint32
}

var _ Device = (*FileDevice)(nil)

// OpenFileDevice opens (but does not format) an existing device image.
func OpenFileDevice(path string, totalSectors uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileDevice{f: f, total: totalSectors}, nil
}

// CreateFileDevice creates a new, zero-filled device image of the given
// size and opens it.
func CreateFileDevice(path string, totalSectors uint32) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(totalSectors) * SectorSize); err != nil {
		f.Close()
		return nil, err
	}
	return &FileDevice{f: f, total: totalSectors}, nil
}

func (d *FileDevice) TotalSectors() uint32 { return d.total }

func (d *FileDevice) Close() error { return d.f.Close() }

func (d *FileDevice) ReadSector(sector uint32, buf []byte) error {
	checkBufLen(buf)
	checkSector(sector, d.total)

	off := int64(sector) * SectorSize
	n, err := unix.Pread(int(d.f.Fd()), buf, off)
	if err != nil {
		panic(&DeviceError{Op: "read", Sector: sector, Err: err})
	}
	if n != SectorSize {
		panic(&DeviceError{Op: "read", Sector: sector, Err: os.ErrClosed})
	}
	return nil
}

func (d *FileDevice) WriteSector(sector uint32, buf []byte) error {
	checkBufLen(buf)
	checkSector(sector, d.total)

	off := int64(sector) * SectorSize
	n, err := unix.Pwrite(int(d.f.Fd()), buf, off)
	if err != nil {
		panic(&DeviceError{Op: "write", Sector: sector, Err: err})
	}
	if n != SectorSize {
		panic(&DeviceError{Op: "write", Sector: sector, Err: os.ErrClosed})
	}
	return nil
}
