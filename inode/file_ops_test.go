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
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockfs-labs/blockfs/alloc"
	"github.com/blockfs-labs/blockfs/blockdev"
	"github.com/blockfs-labs/blockfs/cache"
	"github.com/blockfs-labs/blockfs/clock"
	"github.com/blockfs-labs/blockfs/internal/metrics"
)

func TestReadAt_PastEndOfFileIsShortNotError(t *testing.T) {
	table, _ := newTestFixture(t, 64)
	in, err := table.Create(false, 0)
	require.NoError(t, err)
	defer table.Close(in)

	_, err = in.WriteAt([]byte("hello"), 0)
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := in.ReadAt(buf, 0)
	assert.Equal(t, 5, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []byte("hello"), buf[:n])
}

func TestReadAt_WhollyPastEndReturnsZero(t *testing.T) {
	table, _ := newTestFixture(t, 64)
	in, err := table.Create(false, 0)
	require.NoError(t, err)
	defer table.Close(in)

	buf := make([]byte, 10)
	n, err := in.ReadAt(buf, 1000)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

// A reader running concurrently with a growing writer never observes a
// partially-written tail: only the pre-write length (0 bytes past it)
// or the fully-written contents.
func TestReadVisibility(t *testing.T) {
	table, _ := newTestFixture(t, 256)
	in, err := table.Create(false, 0)
	require.NoError(t, err)
	defer table.Close(in)

	const size = 8000
	payload := bytes.Repeat([]byte{0xCD}, size)

	var wg sync.WaitGroup
	wg.Add(2)

	violations := make(chan string, 1)

	go func() {
		defer wg.Done()
		_, err := in.WriteAt(payload, 0)
		assert.NoError(t, err)
	}()

	go func() {
		defer wg.Done()
		buf := make([]byte, size)
		for i := 0; i < 200; i++ {
			n, _ := in.ReadAt(buf, 0)
			if n == 0 {
				continue
			}
			if n < size {
				select {
				case violations <- "observed a partial, non-empty read during a growing write":
				default:
				}
				return
			}
			for _, b := range buf {
				if b != 0xCD {
					select {
					case violations <- "observed a fully-sized read with unwritten bytes":
					default:
					}
					return
				}
			}
		}
	}()

	wg.Wait()
	select {
	case msg := <-violations:
		t.Fatal(msg)
	default:
	}
}

func TestWriteAt_StampsModTime(t *testing.T) {
	dev := blockdev.NewMemDevice(64)
	a, err := alloc.Format(dev, 64)
	require.NoError(t, err)
	c := cache.New(dev, 8, metrics.NewNoopCacheMetrics())

	start := time.Unix(1700000000, 0)
	mc := clock.NewManualClock(start)
	table := NewTable(dev, c, a, mc)

	in, err := table.Create(false, 0)
	require.NoError(t, err)
	defer table.Close(in)

	assert.True(t, in.ModTime().IsZero(), "a never-written inode has no mod time")

	mc.Advance(3 * time.Second)
	_, err = in.WriteAt([]byte("x"), 0)
	require.NoError(t, err)
	assert.Equal(t, start.Add(3*time.Second), in.ModTime())
}

func TestWriteAt_NegativeOffsetErrors(t *testing.T) {
	table, _ := newTestFixture(t, 64)
	in, err := table.Create(false, 0)
	require.NoError(t, err)
	defer table.Close(in)

	_, err = in.WriteAt([]byte("x"), -1)
	assert.Error(t, err)
}
