// Package execplane implements the subgraph execution plane: the lazy,
// hook-wrapped executor cache that sits between a unified schema's delegate
// layer and the heterogeneous transports used to reach each subgraph.
package execplane

import (
	"context"
	"log/slog"
)

// SubgraphName identifies a subgraph. Comparisons go through ConstantCase,
// so "MyApi", "my_api" and "MY-API" all name the same subgraph.
type SubgraphName string

// TransportEntry describes how a single subgraph is reached: which transport
// kind handles it, and the transport-specific options for that subgraph.
type TransportEntry struct {
	Kind    string
	Options map[string]any
}

// TransportContext holds process-wide fields handed to every subgraph
// executor context: a logger and whatever else the host wants available.
type TransportContext struct {
	Logger *slog.Logger
	Fields map[string]any
}

// SubgraphExecCtx is built once per subgraph, on first use. Subgraph and
// TransportEntry are read through late-bound getters so a hot-reloaded
// supergraph is observed by executors created before the reload.
type SubgraphExecCtx struct {
	SubgraphName   SubgraphName
	GetSubgraph    func() any
	GetTransportEntry func() TransportEntry
	ResolveFactory func(kind string) (Factory, error)

	*TransportContext
}

// ResolverInfo is attached to ExecutionRequest so resolvers invoked inside a
// subgraph call can recover the originating request.
type ResolverInfo struct {
	ExecutionRequest *ExecutionRequest
}

// ExecutionRequest is the unit of work passed through the hook pipeline to a
// subgraph executor. Document is the already-planned, subgraph-bound
// query/mutation text (planning happens upstream of this package); callers
// that need structural access can also populate ParsedDocument.
type ExecutionRequest struct {
	Document       string
	ParsedDocument any
	Variables      map[string]any
	OperationName  string
	Info           *ResolverInfo
	RootValue      any
}

// ExecutionResult is a single subgraph response.
type ExecutionResult struct {
	Data       map[string]any
	Errors     []error
	Extensions map[string]any
}

// StreamItem is one item yielded by a subscription stream. Err is non-nil
// only for the terminal item, signalling the stream ended with an error.
type StreamItem struct {
	Result ExecutionResult
	Err    error
}

// StreamResult is a pull-based, cancellable subscription stream: the
// consumer ranges over the channel, and closing/cancelling the request
// context is expected to terminate production of further items.
type StreamResult <-chan StreamItem

// Executor turns an ExecutionRequest into either a single result or a
// subscription stream. Implementations that hold disposable resources
// should also implement Disposable.
type Executor func(ctx context.Context, req *ExecutionRequest) (any, error)

// Disposable is implemented by executors (or anything a Factory returns)
// that own resources needing explicit async teardown at shutdown.
type Disposable interface {
	Dispose(ctx context.Context) error
}

// Factory produces a subgraph Executor for a given SubgraphExecCtx. This is
// the contract every transport package implements, directly or via the
// ModuleShape re-export conventions in the transport package.
type Factory func(ctx SubgraphExecCtx) (Executor, error)

// OnSubgraphExecuteHook is invoked once per subgraph request, in
// registration order, before the subgraph executor runs. It may return a
// done hook to observe/transform the result after the executor runs.
type OnSubgraphExecuteHook func(payload *HookPayload) (OnSubgraphExecuteDoneHook, error)

// HookPayload is handed to every pre-hook. Subgraph/TransportEntry are
// read-only lazy accessors; ExecutionRequest/Executor are the current
// (possibly already-replaced) values, mutated only via SetExecutionRequest/
// SetExecutor.
type HookPayload struct {
	Subgraph       func() any
	SubgraphName   SubgraphName
	TransportEntry func() TransportEntry
	RequestID      string
	Logger         *slog.Logger

	ExecutionRequest *ExecutionRequest
	Executor         Executor

	setExecutionRequest func(*ExecutionRequest)
	setExecutor         func(Executor)
}

// SetExecutionRequest replaces the request seen by the remaining pre-hooks
// and the final executor invocation.
func (p *HookPayload) SetExecutionRequest(req *ExecutionRequest) { p.setExecutionRequest(req) }

// SetExecutor replaces the executor invoked for this request.
func (p *HookPayload) SetExecutor(e Executor) { p.setExecutor(e) }

// OnSubgraphExecuteDoneHook runs after the executor returns (but before the
// caller sees the result). It may return a pair of stream observers when
// the result is a subscription stream.
type OnSubgraphExecuteDoneHook func(payload *DonePayload) (*StreamObservers, error)

// DonePayload is handed to every done hook for a non-streaming result.
type DonePayload struct {
	Result ExecutionResult
	Err    error

	setResult func(ExecutionResult)
}

// SetResult rewrites the result seen by later done hooks and, ultimately,
// the caller.
func (p *DonePayload) SetResult(r ExecutionResult) { p.setResult(r) }

// StreamObservers are registered by a done hook when it wants to observe a
// streaming result. OnNext runs before each item is forwarded to the
// consumer; OnEnd runs exactly once, regardless of why the stream ended.
type StreamObservers struct {
	OnNext func(payload *DonePayload)
	OnEnd  func(err error)
}
