package execplane

import (
	"context"
	"log/slog"
	"sync"
)

// DisposableStack is an ordered, append-only (during normal operation)
// collection of disposers. Shutdown drains it LIFO, mirroring how resources
// were acquired: the most recently initialized subgraph executor is torn
// down first.
type DisposableStack struct {
	mu    sync.Mutex
	stack []Disposable
}

// NewDisposableStack returns an empty stack, ready to be shared across the
// runtime instance that owns it.
func NewDisposableStack() *DisposableStack {
	return &DisposableStack{}
}

// Push registers d for disposal at shutdown. Safe to call concurrently with
// other Push calls; must not be called concurrently with Close.
func (s *DisposableStack) Push(d Disposable) {
	s.mu.Lock()
	s.stack = append(s.stack, d)
	s.mu.Unlock()
}

// Close disposes every registered entry in LIFO order without stopping on
// individual disposal errors, logs each failure at error level via logger,
// and returns the first error encountered (later ones are only logged).
func (s *DisposableStack) Close(ctx context.Context, logger *slog.Logger) error {
	s.mu.Lock()
	entries := s.stack
	s.stack = nil
	s.mu.Unlock()

	var firstErr error
	for i := len(entries) - 1; i >= 0; i-- {
		if err := entries[i].Dispose(ctx); err != nil {
			if logger != nil {
				logger.Error("failed to dispose transport executor", "error", err)
			}
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}
