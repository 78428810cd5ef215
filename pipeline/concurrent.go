package pipeline

import "context"

// pump pulls source until exhaustion or cancellation and forwards every
// value and the first error to ch.
func pump[T any](ctx context.Context, source Iterator[T], ch chan<- result[T]) {
	for {
		val, ok, err := source.Next(ctx)
		if err != nil {
			select {
			case ch <- result[T]{err: err}:
			case <-ctx.Done():
			}
			return
		}
		if !ok {
			return
		}
		select {
		case ch <- result[T]{val: val, ok: true}:
		case <-ctx.Done():
			return
		}
	}
}

// Buffer runs p in its own goroutine, up to size values ahead of the
// consumer. Order is preserved; the first upstream error is delivered
// after the values that preceded it. Closing the returned iterator stops
// the goroutine before closing p.
func Buffer[T any](p *Pipeline[T], size int) *Pipeline[T] {
	if size <= 0 {
		size = 1
	}
	return &Pipeline[T]{
		create: func(ctx context.Context) Iterator[T] {
			source := p.create(ctx)
			bufCtx, cancel := context.WithCancel(ctx)
			ch := make(chan result[T], size)
			done := make(chan struct{})

			go func() {
				defer close(done)
				defer close(ch)
				pump(bufCtx, source, ch)
			}()

			return &channelIter[T]{
				ch: ch,
				closer: func() error {
					cancel()
					<-done
					return source.Close()
				},
			}
		},
	}
}
