// Package hooks provides concrete, reusable execplane.OnSubgraphExecuteHook
// implementations. The hook pipeline mechanism itself (execplane.WrapExecutorWithHooks)
// lives in execplane; this package is where a host picks hooks off the shelf
// to register on execplane.Config.OnSubgraphExecuteHooks.
package hooks

import (
	"time"

	"github.com/fusionrt/fusion-runtime/execplane"
)

// RequestLogging logs every subgraph call at Debug on entry and Info (or
// Warn on error) once it completes, with the elapsed duration.
func RequestLogging() execplane.OnSubgraphExecuteHook {
	return func(payload *execplane.HookPayload) (execplane.OnSubgraphExecuteDoneHook, error) {
		logger := payload.Logger
		started := time.Now()

		logger.Debug("subgraph call started", "operation", payload.ExecutionRequest.OperationName)

		return func(done *execplane.DonePayload) (*execplane.StreamObservers, error) {
			elapsed := time.Since(started)
			if done.Err != nil {
				logger.Warn("subgraph call failed", "error", done.Err, "elapsed", elapsed)
				return nil, nil
			}

			attrs := []any{"elapsed", elapsed}
			if n := len(done.Result.Errors); n > 0 {
				attrs = append(attrs, "graphql_errors", n)
			}
			logger.Info("subgraph call completed", attrs...)
			return nil, nil
		}, nil
	}
}

// StreamLogging is RequestLogging's counterpart for subscriptions: it logs
// every item and the final outcome via OnNext/OnEnd instead of a single
// post-call log line.
func StreamLogging() execplane.OnSubgraphExecuteHook {
	return func(payload *execplane.HookPayload) (execplane.OnSubgraphExecuteDoneHook, error) {
		logger := payload.Logger
		count := 0

		return func(done *execplane.DonePayload) (*execplane.StreamObservers, error) {
			return &execplane.StreamObservers{
				OnNext: func(item *execplane.DonePayload) {
					count++
					logger.Debug("subgraph stream item", "sequence", count)
				},
				OnEnd: func(err error) {
					if err != nil {
						logger.Warn("subgraph stream ended with error", "error", err, "items", count)
						return
					}
					logger.Info("subgraph stream ended", "items", count)
				},
			}, nil
		}, nil
	}
}
