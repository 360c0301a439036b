package execplane

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

// Config bundles everything Runtime needs at construction time.
type Config struct {
	Transports        FactoryRegistry
	TransportEntryMap map[SubgraphName]TransportEntry
	GetSubgraphSchema func(name SubgraphName) any

	OnSubgraphExecuteHooks []OnSubgraphExecuteHook
	TransportContext       *TransportContext
	Disposables            *DisposableStack
}

// Runtime is the subgraph execution plane: the single object a unified
// schema's delegate layer calls into for every subgraph field.
type Runtime struct {
	transports  FactoryRegistry
	entries     map[SubgraphName]TransportEntry
	getSchema   func(name SubgraphName) any
	hooks       []OnSubgraphExecuteHook
	tctx        *TransportContext
	disposables *DisposableStack
	cache       *cache
	meta        *requestMetaStore

	draining atomic.Bool
}

// NewRuntime builds a Runtime from cfg. It does not itself resolve any
// transports: resolution is entirely lazy, deferred to the first call to
// OnSubgraphExecute for each subgraph.
func NewRuntime(cfg Config) *Runtime {
	tctx := cfg.TransportContext
	if tctx == nil {
		tctx = &TransportContext{}
	}
	if tctx.Logger == nil {
		tctx.Logger = slog.Default()
	}

	disposables := cfg.Disposables
	if disposables == nil {
		disposables = NewDisposableStack()
	}

	return &Runtime{
		transports:  cfg.Transports,
		entries:     cfg.TransportEntryMap,
		getSchema:   cfg.GetSubgraphSchema,
		hooks:       cfg.OnSubgraphExecuteHooks,
		tctx:        tctx,
		disposables: disposables,
		cache:       newCache(),
		meta:        newRequestMetaStore(),
	}
}

// SubgraphExecuteFunc is the shape of Runtime.OnSubgraphExecute: callers that
// only need to issue a subgraph call (such as the schema merger's SDL
// introspection) depend on this instead of the concrete *Runtime type.
type SubgraphExecuteFunc func(ctx context.Context, name SubgraphName, req *ExecutionRequest) (any, error)

// OnSubgraphExecute is the runtime's sole public operation: resolve (lazily,
// exactly once per subgraph) the transport executor for name, wrap it with
// hooks on first resolution, and forward req to it.
func (r *Runtime) OnSubgraphExecute(ctx context.Context, name SubgraphName, req *ExecutionRequest) (any, error) {
	if r.draining.Load() {
		return nil, ErrShuttingDown
	}

	exec, err := r.cache.getOrInit(name, func() (Executor, error) {
		return r.buildExecutor(name)
	})
	if err != nil {
		return nil, err
	}

	result, err := exec(ctx, req)
	if err != nil {
		var hookErr *HookError
		if errors.As(err, &hookErr) {
			return nil, err
		}
		return nil, &TransportExecutionError{SubgraphName: name, Err: err}
	}

	return result, nil
}

// BindRequest associates logger/request-id with req for the lifetime of the
// hook pipeline's handling of it. Hosts that want request_id propagated into
// the attached logger call this before the first OnSubgraphExecute for a
// client request; it is optional — without it, the pipeline still runs, just
// without a request_id attribute.
func (r *Runtime) BindRequest(req *ExecutionRequest, logger *slog.Logger) {
	if logger == nil {
		logger = r.tctx.Logger
	}
	r.meta.bind(req, logger)
}

// Shutdown stops admitting new subgraph calls and drains the disposable
// stack LIFO. It does not wait for in-flight requests to finish; callers
// that need graceful drain should stop accepting new client requests before
// calling Shutdown.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.draining.Store(true)
	return r.disposables.Close(ctx, r.tctx.Logger)
}

func (r *Runtime) buildExecutor(name SubgraphName) (Executor, error) {
	entry, ok := r.lookupEntry(name)
	if !ok {
		return nil, &ConfigurationError{SubgraphName: name, Reason: "no transport entry registered for subgraph"}
	}

	execCtx := SubgraphExecCtx{
		SubgraphName: name,
		GetSubgraph: func() any {
			if r.getSchema == nil {
				return nil
			}
			return r.getSchema(name)
		},
		GetTransportEntry: func() TransportEntry {
			e, _ := r.lookupEntry(name)
			return e
		},
		ResolveFactory:   r.transports.GetFactory,
		TransportContext: r.tctx,
	}

	factory, err := r.transports.GetFactory(entry.Kind)
	if err != nil {
		return nil, &ConfigurationError{SubgraphName: name, Kind: entry.Kind, Reason: err.Error()}
	}

	real, err := factory(execCtx)
	if err != nil {
		return nil, &ConfigurationError{SubgraphName: name, Kind: entry.Kind, Reason: err.Error()}
	}

	if disposable, ok := real.(Disposable); ok {
		r.disposables.Push(disposable)
	}

	wrapped := WrapExecutorWithHooks(real, r.hooks, name, r.tctx.Logger, r.meta, execCtx.GetSubgraph, execCtx.GetTransportEntry)
	return wrapped, nil
}

func (r *Runtime) lookupEntry(name SubgraphName) (TransportEntry, bool) {
	for k, v := range r.entries {
		if sameSubgraph(k, name) {
			return v, true
		}
	}
	return TransportEntry{}, false
}
