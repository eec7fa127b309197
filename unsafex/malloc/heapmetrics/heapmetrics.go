/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package heapmetrics exports the occupancy of the pools of a heap to Prometheus.
package heapmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudwego/poolheap/unsafex/malloc"
)

// StatsSource returns the occupancy of each pool.
// It's called from the goroutine scraping metrics, so it must be safe to call
// concurrently with heap operations, like (*malloc.Locked).Stats.
type StatsSource interface {
	Stats() []malloc.PoolStats
}

// Collector implements prometheus.Collector.
type Collector struct {
	src StatsSource

	capacity *prometheus.Desc
	bumped   *prometheus.Desc
	free     *prometheus.Desc
	inUse    *prometheus.Desc
	inUseB   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a Collector. Metric names are prefixed by namespace if not empty.
func NewCollector(namespace string, src StatsSource) *Collector {
	labels := []string{"pool", "block_size"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, labels, nil)
	}
	return &Collector{
		src:      src,
		capacity: desc("capacity_blocks", "Max number of blocks of the pool."),
		bumped:   desc("bumped_blocks", "Number of blocks ever carved from the pool."),
		free:     desc("free_blocks", "Number of blocks on the free list of the pool."),
		inUse:    desc("in_use_blocks", "Number of blocks of the pool held by callers."),
		inUseB:   desc("in_use_bytes", "Bytes of the pool held by callers."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.bumped
	ch <- c.free
	ch <- c.inUse
	ch <- c.inUseB
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for i, s := range c.src.Stats() {
		pool, bs := strconv.Itoa(i), strconv.Itoa(s.BlockSize)
		gauge := func(d *prometheus.Desc, v int) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), pool, bs)
		}
		gauge(c.capacity, s.Capacity)
		gauge(c.bumped, s.Bumped)
		gauge(c.free, s.Free)
		gauge(c.inUse, s.InUse)
		gauge(c.inUseB, s.InUse*s.BlockSize)
	}
}
