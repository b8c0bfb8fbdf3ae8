package async

import (
	"context"

	"github.com/samber/lo"
)

// Yielder sends a value to the consumer. It returns false once ctx is done and the generator should stop.
type Yielder[T any] func(T) bool

// Generator runs gen in a goroutine and streams what it yields. A non nil error returned by gen is sent as
// the last result. The channel is closed when gen returns.
func Generator[T any](ctx context.Context, gen func(context.Context, Yielder[T]) error) <-chan Result[T] {
	ch := make(chan Result[T], 1)

	y := func(t T) bool {
		select {
		case ch <- NewResult(t):
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(ch)

		err := gen(ctx, y)
		if err != nil {
			select {
			case ch <- NewResult(lo.Empty[T](), err):
			case <-ctx.Done():
			}
		}
	}()

	return ch
}
