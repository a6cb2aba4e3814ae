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

// Package metrics exports buffer-cache counters through
// github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics tracks the buffer cache's hit/miss/eviction behavior and
// how long background flushes take.
type CacheMetrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Evictions     prometheus.Counter
	Writebacks    prometheus.Counter
	FlushDuration prometheus.Histogram
}

// NewCacheMetrics constructs the counters and, if reg is non-nil,
// registers them. Passing a nil Registerer (as tests do) is valid; the
// counters still work, they just aren't exported anywhere.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockfs", Subsystem: "cache", Name: "hits_total",
			Help: "Number of buffer cache gets served from a resident slot.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockfs", Subsystem: "cache", Name: "misses_total",
			Help: "Number of buffer cache gets that required a device read.",
		}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockfs", Subsystem: "cache", Name: "evictions_total",
			Help: "Number of slots repurposed via clock eviction.",
		}),
		Writebacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blockfs", Subsystem: "cache", Name: "writebacks_total",
			Help: "Number of dirty slots written back, via eviction or flush.",
		}),
		FlushDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blockfs", Subsystem: "cache", Name: "flush_duration_seconds",
			Help:    "Wall-clock time spent in Flush.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Evictions, m.Writebacks, m.FlushDuration)
	}
	return m
}

// NewNoopCacheMetrics returns counters that are never registered with any
// registry, for tests and for callers that don't want a /metrics endpoint.
func NewNoopCacheMetrics() *CacheMetrics {
	return NewCacheMetrics(nil)
}
