package execplane

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// FactoryRegistry resolves a transport kind to a Factory. transport.Registry
// implements this; it is expressed as an interface here (rather than this
// package importing the transport package directly) to keep the dependency
// one-directional: transport depends on execplane's types, not vice versa.
type FactoryRegistry interface {
	GetFactory(kind string) (Factory, error)
}

// cache is the lazy, per-subgraph executor cache. The slow path is a
// golang.org/x/sync/singleflight.Group keyed by subgraph
// name: concurrent first-calls for the same subgraph share exactly one
// factory invocation (one call into initFn), and because Group.Do forgets
// the in-flight call once it returns — success or failure — a failed
// initialization never poisons the cache: the next caller either finds the
// fast-path entry (if a racing caller's initFn won the upgrade first) or
// starts a fresh Do call. This is the concurrency-safe form of the source
// runtime's "insert a placeholder before any suspension point" pattern.
type cache struct {
	mu        sync.RWMutex
	executors map[SubgraphName]Executor

	flight singleflight.Group
}

func newCache() *cache {
	return &cache{executors: make(map[SubgraphName]Executor)}
}

func (c *cache) get(name SubgraphName) (Executor, bool) {
	key := ConstantCase(string(name))
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.executors[SubgraphName(key)]
	return e, ok
}

func (c *cache) store(name SubgraphName, e Executor) {
	key := SubgraphName(ConstantCase(string(name)))
	c.mu.Lock()
	c.executors[key] = e
	c.mu.Unlock()
}

// getOrInit returns the cached executor for name, or runs initFn exactly
// once across any number of concurrently racing callers to build it.
func (c *cache) getOrInit(name SubgraphName, initFn func() (Executor, error)) (Executor, error) {
	if e, ok := c.get(name); ok {
		return e, nil
	}

	key := ConstantCase(string(name))
	v, err, _ := c.flight.Do(key, func() (any, error) {
		// Re-check under the singleflight call: a previous Do for this key
		// may have already completed and upgraded the cache between our
		// fast-path miss above and this call starting.
		if e, ok := c.get(name); ok {
			return e, nil
		}

		e, err := initFn()
		if err != nil {
			return nil, err
		}

		c.store(name, e)
		return e, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(Executor), nil
}
