package transport

import (
	"errors"
	"sync"

	"github.com/fusionrt/fusion-runtime/execplane"
)

// Discoverer looks up a transport kind outside the registry's own inline
// entries — normally by launching a conventionally named plugin binary.
// pluginhost.Host implements this.
type Discoverer interface {
	Discover(kind string) (ModuleShape, error)
}

// Registry resolves a transport kind to an execplane.Factory, in three
// steps: an inline FactoryFunc, an inline map entry, then a Discoverer.
// The first step to produce a non-nil result wins; a later step is only
// tried if the earlier ones report the kind unknown.
type Registry struct {
	mu sync.RWMutex

	factoryFunc func(kind string) (ModuleShape, error)
	modules     map[string]ModuleShape
	discoverer  Discoverer
}

// NewRegistry builds an empty registry. Use Register/WithDynamicDiscovery to
// populate it, or pass nil for any step the gateway doesn't need.
func NewRegistry(factoryFunc func(kind string) (ModuleShape, error), discoverer Discoverer) *Registry {
	return &Registry{
		factoryFunc: factoryFunc,
		modules:     make(map[string]ModuleShape),
		discoverer:  discoverer,
	}
}

// Register adds (or replaces) the inline module for kind.
func (r *Registry) Register(kind string, m ModuleShape) {
	r.mu.Lock()
	r.modules[kind] = m
	r.mu.Unlock()
}

// WithDynamicDiscovery installs or replaces the fallback discoverer used once
// a kind is absent from both the inline factory function and the inline
// module map, and returns r for chaining at construction time.
func (r *Registry) WithDynamicDiscovery(d Discoverer) *Registry {
	r.mu.Lock()
	r.discoverer = d
	r.mu.Unlock()
	return r
}

// GetFactory implements execplane.FactoryRegistry. It tries, in order: the
// inline factory function, the inline module map, then dynamic discovery.
func (r *Registry) GetFactory(kind string) (execplane.Factory, error) {
	if r.factoryFunc != nil {
		if m, err := r.factoryFunc(kind); err == nil && m != nil {
			return asFactory(kind, m)
		}
	}

	r.mu.RLock()
	m, ok := r.modules[kind]
	discoverer := r.discoverer
	r.mu.RUnlock()

	if ok {
		return asFactory(kind, m)
	}

	if discoverer != nil {
		dm, err := discoverer.Discover(kind)
		if err == nil && dm != nil {
			return asFactory(kind, dm)
		}
		var misshapen *ErrMisshapen
		if errors.As(err, &misshapen) {
			return nil, err
		}
	}

	return nil, &ErrNotFound{Kind: kind, ExpectedModule: "transport-" + kind}
}

func asFactory(kind string, m ModuleShape) (execplane.Factory, error) {
	if dm, ok := m.(DefaultModule); ok {
		if dm.Default == nil {
			return nil, &ErrMisshapen{Kind: kind, Reason: "DefaultModule has a nil Default member"}
		}
		return Factory(kind, dm.Default), nil
	}
	return Factory(kind, m), nil
}
