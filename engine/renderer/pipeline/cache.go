package pipeline

import (
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-xr/common"
	"github.com/Carmen-Shannon/oxy-xr/engine/gpu"
	"github.com/Carmen-Shannon/oxy-xr/engine/renderer/shader"
)

// Cache owns built pipelines by key and rebuilds them when shader sources change.
type Cache struct {
	mu        *sync.Mutex
	device    gpu.Device
	library   shader.Library
	logger    common.Logger
	pipelines map[string]Pipeline
}

// NewCache creates an empty cache and subscribes it to library changes. Every cached pipeline is rebuilt on
// a change, since any module can be pulled in by #include.
//
// Parameters:
//   - device: the device pipelines are built on
//   - library: the shader library
//   - logger: receives rebuild failures; nil for none
//
// Returns:
//   - *Cache: the cache
func NewCache(device gpu.Device, library shader.Library, logger common.Logger) *Cache {
	if logger == nil {
		logger = common.NewNopLogger()
	}
	c := &Cache{
		mu:        &sync.Mutex{},
		device:    device,
		library:   library,
		logger:    logger,
		pipelines: map[string]Pipeline{},
	}
	library.OnChange(func(name string) {
		if err := c.RebuildAll(); err != nil {
			c.logger.Errorf("rebuilding pipelines after %s changed: %v", name, err)
		}
	})
	return c
}

// Get returns the pipeline for key, building it with build on first use.
//
// Parameters:
//   - key: the pipeline key
//   - build: returns the description to build when key is not cached
//
// Returns:
//   - Pipeline: the built pipeline
//   - error: the build error; nothing is cached on failure
func (c *Cache) Get(key string, build func() Pipeline) (Pipeline, error) {
	c.mu.Lock()
	p, ok := c.pipelines[key]
	c.mu.Unlock()
	if ok {
		return p, nil
	}

	p = build()
	if err := p.Build(c.device, c.library); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.pipelines[key]; ok {
		p.Release()
		return existing, nil
	}
	c.pipelines[key] = p
	return p, nil
}

// Lookup returns a cached pipeline without building.
func (c *Cache) Lookup(key string) (Pipeline, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pipelines[key]
	return p, ok
}

// Keys returns the cached keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.pipelines))
}

// RebuildAll rebuilds every cached pipeline. Pipelines that fail keep their previous build.
//
// Returns:
//   - error: every build failure joined
func (c *Cache) RebuildAll() error {
	c.mu.Lock()
	pipelines := slices.Collect(maps.Values(c.pipelines))
	c.mu.Unlock()

	var errs []error
	for _, p := range pipelines {
		if err := p.Build(c.device, c.library); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Release releases and forgets every cached pipeline.
func (c *Cache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, p := range c.pipelines {
		p.Release()
		delete(c.pipelines, key)
	}
}
