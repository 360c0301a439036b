package execplane

import (
	"context"
	"sync"
)

// wrapStream applies every done hook's onNext/onEnd observers to a
// subscription stream. If no done hook registered a stream observer, the
// upstream stream passes through unchanged — no extra goroutine, no extra
// channel, no buffering.
func wrapStream(ctx context.Context, done []OnSubgraphExecuteDoneHook, upstream StreamResult, name SubgraphName) StreamResult {
	type observer struct {
		onNext func(*DonePayload)
		onEnd  func(error)
	}

	observers := make([]observer, 0, len(done))
	for _, d := range done {
		payload := &DonePayload{setResult: func(ExecutionResult) {}}
		obs, err := d(payload)
		if err != nil || obs == nil {
			continue
		}
		if obs.OnNext != nil || obs.OnEnd != nil {
			observers = append(observers, observer{onNext: obs.OnNext, onEnd: obs.OnEnd})
		}
	}

	if len(observers) == 0 {
		return upstream
	}

	downstream := make(chan StreamItem)

	go func() {
		defer close(downstream)

		var endOnce sync.Once
		fireEnd := func(err error) {
			endOnce.Do(func() {
				for _, o := range observers {
					if o.onEnd != nil {
						o.onEnd(err)
					}
				}
			})
		}

		for {
			select {
			case <-ctx.Done():
				fireEnd(ctx.Err())
				return

			case item, ok := <-upstream:
				if !ok {
					fireEnd(nil)
					return
				}

				if item.Err != nil {
					fireEnd(item.Err)
					item.Err = &StreamTerminationError{SubgraphName: name, Err: item.Err}
					select {
					case downstream <- item:
					case <-ctx.Done():
					}
					return
				}

				current := item.Result
				for _, o := range observers {
					if o.onNext == nil {
						continue
					}
					payload := &DonePayload{
						Result: current,
						setResult: func(r ExecutionResult) {
							current = r
						},
					}
					o.onNext(payload)
				}

				select {
				case downstream <- StreamItem{Result: current}:
				case <-ctx.Done():
					fireEnd(ctx.Err())
					return
				}
			}
		}
	}()

	return downstream
}
