package apply

import (
	"context"

	"roomfeed/pkg/pips"
)

type mapStage[I any, O any] struct {
	mapper func(context.Context, I) (O, error)
}

func (m mapStage[I, O]) Run(ctx context.Context, input <-chan pips.D[any]) <-chan pips.D[any] {
	return Subscriber(ctx, input, func(ctx context.Context, item pips.D[any], out chan<- pips.D[any]) error {
		if item.Err != nil {
			return item.Err
		}

		res, err := m.mapper(ctx, pips.As[I](item.Value))
		if err != nil {
			return err
		}

		return send(ctx, out, pips.AnyD(res))
	})
}

func Map[I any, O any](mapper func(context.Context, I) (O, error)) pips.Stage {
	return mapStage[I, O]{mapper}
}
