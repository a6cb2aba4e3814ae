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

package logger

import "io"

// AsyncLogger decouples log callers from the latency of the underlying
// sink (typically a lumberjack file that may be mid-rotation) by handing
// writes to a buffered channel drained by one goroutine. Writes never
// block the caller unless the buffer is full.
type AsyncLogger struct {
	out  io.WriteCloser
	ch   chan []byte
	done chan struct{}
}

// NewAsyncLogger starts the drain goroutine and returns ready to accept
// writes. bufSize bounds how many pending writes may queue before Write
// blocks.
func NewAsyncLogger(out io.WriteCloser, bufSize int) *AsyncLogger {
	a := &AsyncLogger{
		out:  out,
		ch:   make(chan []byte, bufSize),
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	for b := range a.ch {
		a.out.Write(b)
	}
	close(a.done)
}

// Write copies p (the caller's buffer is not safe to retain past return)
// and enqueues it for the drain goroutine.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	a.ch <- cp
	return len(p), nil
}

// Close drains any queued writes and closes the underlying sink.
func (a *AsyncLogger) Close() error {
	close(a.ch)
	<-a.done
	return a.out.Close()
}
