package async

import (
	"context"
	"sync/atomic"
)

type JobHandle[T any] struct {
	cancel func()
	done   chan struct{}
	res    Result[T]
	err    atomic.Pointer[error]
}

// Job runs job in a goroutine with a context derived from ctx. Stop cancels it, Wait collects the result.
func Job[T any](ctx context.Context, job func(ctx context.Context) (T, error)) *JobHandle[T] {
	ctx, cancel := context.WithCancel(ctx)
	handle := JobHandle[T]{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer cancel()

		res, err := job(ctx)

		handle.res = NewResult(res, err)
		handle.err.Store(&err)
		close(handle.done)
	}()

	return &handle
}

func (j *JobHandle[T]) Stop() {
	j.cancel()
}

// Wait blocks until the job returns. It may be called any number of times.
func (j *JobHandle[T]) Wait() (T, error) {
	<-j.done
	return j.res.Unpack()
}

// Done is closed when the job returns.
func (j *JobHandle[T]) Done() <-chan struct{} {
	return j.done
}

func (j *JobHandle[T]) Error() error {
	var err = j.err.Load()
	if err == nil {
		return nil
	}
	return *err
}
