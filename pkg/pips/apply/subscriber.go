package apply

import (
	"context"

	"roomfeed/pkg/pips"
)

type SubscriptionHandler[T any] func(ctx context.Context, item T, out chan<- pips.D[any]) error

// Subscriber runs h for every input item. The first error is sent downstream and ends the stage.
func Subscriber[T any](ctx context.Context, input <-chan T, h SubscriptionHandler[T]) <-chan pips.D[any] {
	out := make(chan pips.D[any])

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return

			case res, ok := <-input:
				if !ok {
					return
				}

				err := h(ctx, res, out)
				if err != nil {
					select {
					case out <- pips.ErrD[any](err):
					case <-ctx.Done():
					}
					return
				}
			}
		}
	}()

	return out
}

func send(ctx context.Context, out chan<- pips.D[any], d pips.D[any]) error {
	select {
	case out <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
