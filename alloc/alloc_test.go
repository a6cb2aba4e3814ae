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

package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockfs-labs/blockfs/blockdev"
)

func TestAllocate_SequentialAndNoDuplicates(t *testing.T) {
	dev := blockdev.NewMemDevice(256)
	a, err := Format(dev, 256)
	require.NoError(t, err)

	seen := map[uint32]bool{}
	for i := 0; i < 20; i++ {
		base, ok := a.Allocate(1)
		require.True(t, ok)
		assert.False(t, seen[base], "sector %d allocated twice", base)
		seen[base] = true
		assert.GreaterOrEqual(t, base, a.DataStart())
	}
}

func TestAllocate_ExhaustionReturnsFalse(t *testing.T) {
	dev := blockdev.NewMemDevice(16)
	a, err := Format(dev, 16)
	require.NoError(t, err)

	usable := a.total - a.dataStart
	for i := uint32(0); i < usable; i++ {
		_, ok := a.Allocate(1)
		require.True(t, ok)
	}

	_, ok := a.Allocate(1)
	assert.False(t, ok, "allocator should report exhaustion instead of panicking")
}

func TestReleaseThenReallocate(t *testing.T) {
	dev := blockdev.NewMemDevice(64)
	a, err := Format(dev, 64)
	require.NoError(t, err)

	base, ok := a.Allocate(1)
	require.True(t, ok)

	a.Release(base, 1)

	base2, ok := a.Allocate(1)
	require.True(t, ok)
	assert.Equal(t, base, base2, "freed sector should be reusable")
}

func TestSyncAndLoadRoundTrip(t *testing.T) {
	dev := blockdev.NewMemDevice(64)
	a, err := Format(dev, 64)
	require.NoError(t, err)

	base, ok := a.Allocate(1)
	require.True(t, ok)
	require.NoError(t, a.Sync())

	reloaded, err := Load(dev, 64)
	require.NoError(t, err)

	_, ok = reloaded.Allocate(1)
	require.True(t, ok)

	// The sector we allocated before Sync must still show as occupied
	// after reload.
	assert.True(t, reloaded.bit(base-reloaded.dataStart))
}
