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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvFired(t *testing.T, ch <-chan time.Time) time.Time {
	t.Helper()
	select {
	case v := <-ch:
		return v
	default:
		t.Fatal("tick channel should have fired")
		return time.Time{}
	}
}

func assertNotFired(t *testing.T, ch <-chan time.Time) {
	t.Helper()
	select {
	case <-ch:
		t.Fatal("tick channel fired early")
	default:
	}
}

func TestManualClock_NowAdvances(t *testing.T) {
	start := time.Unix(1000, 0)
	c := NewManualClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())
}

// A flush tick must fire only once the full interval has accumulated,
// however many partial advances it took to get there.
func TestManualClock_AfterFiresOnceIntervalAccumulates(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	tick := c.After(5 * time.Second)

	c.Advance(2 * time.Second)
	assertNotFired(t, tick)
	c.Advance(2 * time.Second)
	assertNotFired(t, tick)
	c.Advance(2 * time.Second)
	assert.Equal(t, c.Now(), recvFired(t, tick))
}

// Consecutive ticks, the way RunBackgroundFlush re-arms After once per
// flush pass.
func TestManualClock_ConsecutiveTicks(t *testing.T) {
	const interval = 5 * time.Second
	c := NewManualClock(time.Unix(0, 0))

	for i := 0; i < 3; i++ {
		tick := c.After(interval)
		assertNotFired(t, tick)
		c.Advance(interval)
		require.Equal(t, c.Now(), recvFired(t, tick))
	}
}

func TestManualClock_MultipleWaiters(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	short := c.After(time.Second)
	long := c.After(time.Minute)

	c.Advance(time.Second)
	recvFired(t, short)
	assertNotFired(t, long)

	c.Advance(time.Minute)
	recvFired(t, long)
}

func TestManualClock_NonPositiveDurationFiresImmediately(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	assert.Equal(t, c.Now(), recvFired(t, c.After(0)))
	assert.Equal(t, c.Now(), recvFired(t, c.After(-time.Second)))
}
