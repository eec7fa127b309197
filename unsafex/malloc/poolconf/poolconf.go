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

// Package poolconf describes the pool table of a heap in YAML and builds heaps from it.
//
//	mmap: false
//	pools:
//	  - block_size: 16
//	    capacity: 256
//	  - block_size: 64
//	    capacity: 64
package poolconf

import (
	"bytes"
	"os"
	"slices"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/slog"
	"gopkg.in/yaml.v3"

	"github.com/cloudwego/poolheap/unsafex/malloc"
	"github.com/cloudwego/poolheap/unsafex/malloc/arena"
)

// PoolConfig is one size class.
type PoolConfig struct {
	BlockSize int `yaml:"block_size"`
	Capacity  int `yaml:"capacity"`
}

// Config ...
type Config struct {
	// Pools are the size classes, sorted by Normalize.
	Pools []PoolConfig `yaml:"pools"`

	// Mmap places the arena in anonymous mapped memory instead of the Go heap.
	Mmap bool `yaml:"mmap"`
}

// DefaultConfig returns power of two classes from 16B to 2KB, 32KB each.
func DefaultConfig() *Config {
	c := &Config{}
	for sz := 16; sz <= 2048; sz <<= 1 {
		c.Pools = append(c.Pools, PoolConfig{BlockSize: sz, Capacity: (32 << 10) / sz})
	}
	return c
}

// Parse decodes a YAML config, then normalizes and validates it.
// Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return nil, errors.Wrap(err, "decode pool config")
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads and parses the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read pool config")
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return c, nil
}

// Marshal encodes the config to YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Normalize sorts the pools by block size.
func (c *Config) Normalize() {
	slices.SortStableFunc(c.Pools, func(a, b PoolConfig) int {
		return a.BlockSize - b.BlockSize
	})
}

// Validate checks the config can be turned into a pool table.
// Pools must be sorted, see Normalize.
func (c *Config) Validate() error {
	if len(c.Pools) == 0 {
		return errors.New("no pool configured")
	}
	for i, p := range c.Pools {
		if p.BlockSize < malloc.MinBlockSize {
			return errors.Newf("pool %d: block_size must be >= %d, got %d", i, malloc.MinBlockSize, p.BlockSize)
		}
		if p.Capacity <= 0 {
			return errors.Newf("pool %d: capacity must be > 0, got %d", i, p.Capacity)
		}
		if i > 0 && p.BlockSize <= c.Pools[i-1].BlockSize {
			if p.BlockSize == c.Pools[i-1].BlockSize {
				return errors.Newf("pool %d: duplicate block_size %d", i, p.BlockSize)
			}
			return errors.Newf("pool %d: pools are not sorted by block_size", i)
		}
	}
	return nil
}

// Classes returns the pools as size classes of a pool table.
func (c *Config) Classes() []malloc.Class {
	cs := make([]malloc.Class, len(c.Pools))
	for i, p := range c.Pools {
		cs[i] = malloc.Class{BlockSize: p.BlockSize, Capacity: p.Capacity}
	}
	return cs
}

// ArenaSize returns the number of bytes the pools need.
func (c *Config) ArenaSize() int {
	return malloc.ArenaSize(c.Classes())
}

// Build allocates an arena and creates a heap over it.
// The arena must be closed once the heap is no longer used.
func (c *Config) Build(o *malloc.Options) (*malloc.Heap, *arena.Arena, error) {
	if o == nil {
		o = malloc.DefaultOptions()
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	size := c.ArenaSize()
	var (
		a   *arena.Arena
		err error
	)
	if c.Mmap {
		a, err = arena.Map(size)
	} else {
		a, err = arena.New(size)
	}
	if err != nil {
		return nil, nil, err
	}
	logger.Info("arena allocated", slog.Int("bytes", size), slog.Bool("mapped", a.Mapped()))

	h, err := malloc.NewHeap(a.Bytes(), c.Classes(), o)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return h, a, nil
}
