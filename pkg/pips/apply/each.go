package apply

import (
	"context"

	"roomfeed/pkg/pips"
)

type eachStage[T any] struct {
	fn func(context.Context, T) error
}

func (s eachStage[T]) Run(ctx context.Context, input <-chan pips.D[any]) <-chan pips.D[any] {
	return Subscriber(ctx, input, func(ctx context.Context, item pips.D[any], out chan<- pips.D[any]) error {
		if item.Err != nil {
			return item.Err
		}

		if err := s.fn(ctx, pips.As[T](item.Value)); err != nil {
			return err
		}

		return send(ctx, out, item)
	})
}

// Each calls fn for every item and passes the item on unchanged.
func Each[T any](fn func(context.Context, T) error) pips.Stage {
	return eachStage[T]{fn}
}
