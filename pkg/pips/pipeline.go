package pips

import (
	"context"
)

// Stage consumes one channel and produces another. A stage forwards the first error it sees and stops.
type Stage interface {
	Run(context.Context, <-chan D[any]) <-chan D[any]
}

// StageFunc adapts a plain function to Stage.
type StageFunc func(context.Context, <-chan D[any]) <-chan D[any]

func (f StageFunc) Run(ctx context.Context, input <-chan D[any]) <-chan D[any] {
	return f(ctx, input)
}

// Pipeline turns a stream of I into a stream of O through its stages, in order. Every stage handles
// one item at a time, so the output keeps the input order.
type Pipeline[I any, O any] struct {
	stages []Stage
}

func New[I any, O any](stages ...Stage) *Pipeline[I, O] {
	return &Pipeline[I, O]{stages: stages}
}

// Then appends stages and returns the same pipeline.
func (p *Pipeline[I, O]) Then(stages ...Stage) *Pipeline[I, O] {
	p.stages = append(p.stages, stages...)
	return p
}

// Run starts every stage and returns the output. The output closes when input is exhausted, a stage
// fails, or ctx is done.
func (p *Pipeline[I, O]) Run(ctx context.Context, input <-chan I) <-chan D[O] {
	return CastDChan[any, O](ctx, chain(ctx, MapChan(ctx, input, AnyD), p.stages))
}

func chain(ctx context.Context, head <-chan D[any], stages []Stage) <-chan D[any] {
	for _, stage := range stages {
		head = stage.Run(ctx, head)
	}
	return head
}
