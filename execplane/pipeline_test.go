package execplane

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func testSubgraphAccessor() any                   { return nil }
func testTransportEntryAccessor() TransportEntry { return TransportEntry{Kind: "http"} }

func TestWrapExecutorWithHooks_RunsPreHooksInOrder(t *testing.T) {
	var order []string

	mkHook := func(label string) OnSubgraphExecuteHook {
		return func(payload *HookPayload) (OnSubgraphExecuteDoneHook, error) {
			order = append(order, label)
			return nil, nil
		}
	}

	exec := WrapExecutorWithHooks(dummyExecutor, []OnSubgraphExecuteHook{mkHook("first"), mkHook("second"), mkHook("third")},
		"products", slog.Default(), newRequestMetaStore(), testSubgraphAccessor, testTransportEntryAccessor)

	if _, err := exec(context.Background(), &ExecutionRequest{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestWrapExecutorWithHooks_SetExecutorIsVisibleDownstream(t *testing.T) {
	replaced := func(ctx context.Context, req *ExecutionRequest) (any, error) {
		return &ExecutionResult{Data: map[string]any{"replaced": true}}, nil
	}

	replacing := func(payload *HookPayload) (OnSubgraphExecuteDoneHook, error) {
		payload.SetExecutor(replaced)
		return nil, nil
	}

	exec := WrapExecutorWithHooks(dummyExecutor, []OnSubgraphExecuteHook{replacing},
		"products", slog.Default(), newRequestMetaStore(), testSubgraphAccessor, testTransportEntryAccessor)

	result, err := exec(context.Background(), &ExecutionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, ok := result.(*ExecutionResult)
	if !ok {
		t.Fatalf("expected *ExecutionResult, got %T", result)
	}
	if res.Data["replaced"] != true {
		t.Fatalf("expected the replaced executor's result, got %v", res.Data)
	}
}

func TestWrapExecutorWithHooks_DoneHookRewritesResult(t *testing.T) {
	rewriting := func(payload *HookPayload) (OnSubgraphExecuteDoneHook, error) {
		return func(done *DonePayload) (*StreamObservers, error) {
			done.SetResult(ExecutionResult{Data: map[string]any{"rewritten": true}})
			return nil, nil
		}, nil
	}

	exec := WrapExecutorWithHooks(dummyExecutor, []OnSubgraphExecuteHook{rewriting},
		"products", slog.Default(), newRequestMetaStore(), testSubgraphAccessor, testTransportEntryAccessor)

	result, err := exec(context.Background(), &ExecutionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := result.(*ExecutionResult)
	if res.Data["rewritten"] != true {
		t.Fatalf("expected the done hook's rewritten result, got %v", res.Data)
	}
}

func TestWrapExecutorWithHooks_PreHookErrorAbortsChainButRunsQueuedDoneHooks(t *testing.T) {
	boom := errors.New("boom")
	var thirdHookRan bool
	var queuedDoneHookSawErr error

	queuesADoneHook := func(payload *HookPayload) (OnSubgraphExecuteDoneHook, error) {
		return func(done *DonePayload) (*StreamObservers, error) {
			queuedDoneHookSawErr = done.Err
			return nil, nil
		}, nil
	}

	failing := func(payload *HookPayload) (OnSubgraphExecuteDoneHook, error) {
		return nil, boom
	}

	neverRuns := func(payload *HookPayload) (OnSubgraphExecuteDoneHook, error) {
		thirdHookRan = true
		return nil, nil
	}

	exec := WrapExecutorWithHooks(dummyExecutor, []OnSubgraphExecuteHook{queuesADoneHook, failing, neverRuns},
		"products", slog.Default(), newRequestMetaStore(), testSubgraphAccessor, testTransportEntryAccessor)

	_, err := exec(context.Background(), &ExecutionRequest{})
	if err == nil {
		t.Fatal("expected an error from the aborted pre-hook chain")
	}

	var hookErr *HookError
	if !errors.As(err, &hookErr) {
		t.Fatalf("expected *HookError, got %T: %v", err, err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}
	if thirdHookRan {
		t.Fatal("expected the pre-hook chain to abort after the failing hook")
	}
	if queuedDoneHookSawErr == nil {
		t.Fatal("expected the done hook queued before the failure to fire with an error-shaped payload")
	}
}

func TestWrapExecutorWithHooks_NoHooksPassesThrough(t *testing.T) {
	exec := WrapExecutorWithHooks(dummyExecutor, nil, "products", slog.Default(), newRequestMetaStore(), testSubgraphAccessor, testTransportEntryAccessor)

	result, err := exec(context.Background(), &ExecutionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.(*ExecutionResult).Data["ok"] != true {
		t.Fatalf("expected the bare executor's result unchanged, got %v", result)
	}
}

func TestWrapExecutorWithHooks_StreamPassesThroughWithNoObservers(t *testing.T) {
	upstream := make(chan StreamItem, 1)
	upstream <- StreamItem{Result: ExecutionResult{Data: map[string]any{"n": 1}}}
	close(upstream)

	streaming := func(ctx context.Context, req *ExecutionRequest) (any, error) {
		return StreamResult(upstream), nil
	}

	noopHook := func(payload *HookPayload) (OnSubgraphExecuteDoneHook, error) {
		return func(done *DonePayload) (*StreamObservers, error) { return nil, nil }, nil
	}

	exec := WrapExecutorWithHooks(streaming, []OnSubgraphExecuteHook{noopHook}, "products", slog.Default(), newRequestMetaStore(), testSubgraphAccessor, testTransportEntryAccessor)

	result, err := exec(context.Background(), &ExecutionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stream, ok := result.(StreamResult)
	if !ok {
		t.Fatalf("expected StreamResult, got %T", result)
	}

	item, ok := <-stream
	if !ok {
		t.Fatal("expected one item from the stream")
	}
	if item.Result.Data["n"] != 1 {
		t.Fatalf("unexpected stream item: %v", item)
	}
}

func TestWrapExecutorWithHooks_StreamObserversSeeEveryItemAndOnEndOnce(t *testing.T) {
	upstream := make(chan StreamItem, 2)
	upstream <- StreamItem{Result: ExecutionResult{Data: map[string]any{"n": 1}}}
	upstream <- StreamItem{Result: ExecutionResult{Data: map[string]any{"n": 2}}}
	close(upstream)

	streaming := func(ctx context.Context, req *ExecutionRequest) (any, error) {
		return StreamResult(upstream), nil
	}

	var seen []int
	var endCalls int

	observing := func(payload *HookPayload) (OnSubgraphExecuteDoneHook, error) {
		return func(done *DonePayload) (*StreamObservers, error) {
			return &StreamObservers{
				OnNext: func(d *DonePayload) {
					if n, ok := d.Result.Data["n"].(int); ok {
						seen = append(seen, n)
					}
				},
				OnEnd: func(err error) {
					endCalls++
				},
			}, nil
		}, nil
	}

	exec := WrapExecutorWithHooks(streaming, []OnSubgraphExecuteHook{observing}, "products", slog.Default(), newRequestMetaStore(), testSubgraphAccessor, testTransportEntryAccessor)

	result, err := exec(context.Background(), &ExecutionRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stream := result.(StreamResult)
	for range stream {
	}

	if len(seen) != 2 || seen[0] != 1 || seen[1] != 2 {
		t.Fatalf("expected to observe both items in order, got %v", seen)
	}
	if endCalls != 1 {
		t.Fatalf("expected OnEnd to fire exactly once, got %d", endCalls)
	}
}
