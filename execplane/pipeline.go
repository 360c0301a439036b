package execplane

import (
	"context"
	"log/slog"
)

// WrapExecutorWithHooks wraps exec so every request passes through pre in
// registration order before the executor runs, and through whatever done
// hooks those pre-hooks returned, in the same order, after it runs.
//
// Pre-hooks, done-hooks, and (for streaming results) onNext/onEnd observers
// each run sequentially in registration order for a given request — never
// concurrently with each other — so that a SetExecutor call from one hook is
// visible, deterministically, to every hook after it and to the final
// executor invocation.
func WrapExecutorWithHooks(exec Executor, pre []OnSubgraphExecuteHook, name SubgraphName, baseLogger *slog.Logger, meta *requestMetaStore, subgraph func() any, entry func() TransportEntry) Executor {
	return func(ctx context.Context, req *ExecutionRequest) (any, error) {
		logger := baseLogger.With("subgraph", string(name))

		if req.Info == nil {
			req.Info = &ResolverInfo{}
		}
		req.Info.ExecutionRequest = req

		requestID := ""
		if m, ok := meta.lookup(req); ok {
			requestID = m.requestID
			if m.logger != nil {
				logger = m.logger.With("subgraph", string(name))
			}
		}
		if requestID != "" {
			logger = logger.With("request_id", requestID)
		}

		if len(pre) == 0 {
			return exec(ctx, req)
		}

		cell := &mutableCell{req: req, exec: exec}
		done := make([]OnSubgraphExecuteDoneHook, 0, len(pre))

		for _, hook := range pre {
			payload := &HookPayload{
				Subgraph:       subgraph,
				SubgraphName:   name,
				TransportEntry: entry,
				RequestID:      requestID,
				Logger:         logger,

				ExecutionRequest: cell.req,
				Executor:         cell.exec,

				setExecutionRequest: cell.setRequest,
				setExecutor:         cell.setExecutor,
			}

			doneHook, err := hook(payload)
			if err != nil {
				runDoneHooksOnError(done, err)
				return nil, &HookError{SubgraphName: name, Err: err}
			}
			if doneHook != nil {
				done = append(done, doneHook)
			}
		}

		result, err := cell.exec(ctx, cell.req)
		if err != nil {
			runDoneHooksOnError(done, err)
			return nil, err
		}

		return runDoneHooks(ctx, done, result, name)
	}
}

// mutableCell is the small per-request mutable state hooks observe and may
// replace; modelled as an explicit value instead of captured-by-reference
// closures so "final executor = last SetExecutor winner" is unambiguous.
type mutableCell struct {
	req  *ExecutionRequest
	exec Executor
}

func (c *mutableCell) setRequest(r *ExecutionRequest)  { c.req = r }
func (c *mutableCell) setExecutor(e Executor)          { c.exec = e }

// HookError wraps a pre-hook failure. The remainder of the pre-hook chain
// is aborted; any done hooks already queued still receive an onEnd call
// with an error-shaped result (see runDoneHooksOnError).
type HookError struct {
	SubgraphName SubgraphName
	Err          error
}

func (e *HookError) Error() string {
	return "fusion-runtime: hook failed for subgraph " + string(e.SubgraphName) + ": " + e.Err.Error()
}

func (e *HookError) Unwrap() error { return e.Err }

func runDoneHooksOnError(done []OnSubgraphExecuteDoneHook, err error) {
	for _, d := range done {
		payload := &DonePayload{Err: err, setResult: func(ExecutionResult) {}}
		observers, hookErr := d(payload)
		if hookErr != nil {
			continue
		}
		if observers != nil && observers.OnEnd != nil {
			observers.OnEnd(err)
		}
	}
}

// runDoneHooks executes the post-phase for a completed executor call. For a
// single result, every done hook gets a chance to rewrite it via SetResult.
// For a stream, only hooks that registered OnNext/OnEnd observers cause the
// stream to be wrapped at all; otherwise it passes through unchanged.
func runDoneHooks(ctx context.Context, done []OnSubgraphExecuteDoneHook, result any, name SubgraphName) (any, error) {
	if stream, ok := result.(StreamResult); ok {
		return wrapStream(ctx, done, stream, name), nil
	}

	res, ok := result.(*ExecutionResult)
	if !ok {
		// Non-stream, non-*ExecutionResult values pass straight through;
		// executors are free to return any result shape their transport
		// natively produces.
		return result, nil
	}

	current := *res
	for _, d := range done {
		payload := &DonePayload{
			Result: current,
			setResult: func(r ExecutionResult) {
				current = r
			},
		}
		if _, err := d(payload); err != nil {
			return nil, &HookError{SubgraphName: name, Err: err}
		}
	}

	return &current, nil
}
