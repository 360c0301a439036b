// Package transport resolves a subgraph's configured transport kind (e.g.
// "http", "grpc") to an execplane.Factory. Resolution is one of three
// shapes, tried in order: an inline function, an inline map, or a
// dynamically discovered plugin binary named "transport-<kind>".
//
// This package depends on execplane's exported types; execplane never
// imports this package, so transport.Registry can implement
// execplane.FactoryRegistry without an import cycle.
package transport

import (
	"fmt"

	"github.com/fusionrt/fusion-runtime/execplane"
)

// ModuleShape is what a transport module must provide: a way to build a
// subgraph executor factory for the kind it implements.
type ModuleShape interface {
	GetSubgraphExecutor(ctx execplane.SubgraphExecCtx) (execplane.Executor, error)
}

// ModuleShapeFunc adapts a bare function to ModuleShape.
type ModuleShapeFunc func(ctx execplane.SubgraphExecCtx) (execplane.Executor, error)

func (f ModuleShapeFunc) GetSubgraphExecutor(ctx execplane.SubgraphExecCtx) (execplane.Executor, error) {
	return f(ctx)
}

// DefaultModule stands in for a module packaged as a default re-export
// (`{ default: … }` in the source ecosystem). Go modules rarely need this
// indirection, but plugin binaries built from a shared template commonly
// expose a package-level Module var wrapped exactly this way, so the
// registry unwraps one level of DefaultModule before giving up.
type DefaultModule struct {
	Default ModuleShape
}

func (d DefaultModule) GetSubgraphExecutor(ctx execplane.SubgraphExecCtx) (execplane.Executor, error) {
	if d.Default == nil {
		return nil, fmt.Errorf("transport: default module has no Default member")
	}
	return d.Default.GetSubgraphExecutor(ctx)
}

// ErrNotFound is returned when kind cannot be resolved by any of the three
// resolution steps: no inline factory func claimed it, no inline map entry
// matched, and no transport-<kind> binary was found on the discovery path.
type ErrNotFound struct {
	Kind           string
	ExpectedModule string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("transport: no transport registered for kind %q (expected a plugin binary named %q on the discovery path)",
		e.Kind, e.ExpectedModule)
}

// ErrMisshapen is returned when a resolved module does not implement
// ModuleShape directly, nor DefaultModule wrapping one.
type ErrMisshapen struct {
	Kind   string
	Reason string
}

func (e *ErrMisshapen) Error() string {
	return fmt.Sprintf("transport: module for kind %q is misshapen: %s", e.Kind, e.Reason)
}

// Factory resolves a ModuleShape into an execplane.Factory.
func Factory(kind string, m ModuleShape) execplane.Factory {
	return func(ctx execplane.SubgraphExecCtx) (execplane.Executor, error) {
		return m.GetSubgraphExecutor(ctx)
	}
}
