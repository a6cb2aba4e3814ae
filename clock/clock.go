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

// Package clock abstracts the two pieces of time the filesystem needs:
// the background flush loop paces itself with After, and inodes stamp
// modification times with Now. Tests substitute ManualClock so flush
// ticks are driven explicitly instead of by sleeping.
package clock

import "time"

// Clock supplies the current time and tick channels.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

var _ Clock = SystemClock{}
var _ Clock = (*ManualClock)(nil)

// SystemClock is the production Clock, backed directly by the time
// package.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
