// Package mutation applies user intents optimistically and reconciles them with the server.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"roomfeed/internal/core"
)

var (
	mutationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomfeed_mutations_total",
		Help: "The total number of optimistic mutations, by kind and outcome",
	}, []string{"kind", "outcome"})
)

type Kind string

const (
	KindVote     Kind = "vote"
	KindReaction Kind = "reaction"
	KindDelete   Kind = "delete"
	KindLike     Kind = "like"
	KindComment  Kind = "comment"
	KindSend     Kind = "send"
)

const (
	outcomeConfirmed  = "confirmed"
	outcomeRolledBack = "rolled_back"
	outcomeNoop       = "noop"
	outcomeInvalid    = "invalid"
)

var (
	ErrInvalidOption = errors.New("invalid poll option")
	ErrEmptyMessage  = errors.New("empty message")
)

// Error is returned when a dispatched mutation failed and its local change was rolled back.
// Err is classified: errors.Is(err, core.ErrTransient) or errors.Is(err, core.ErrRejected) holds.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient reports whether retrying the mutation may succeed.
func (e *Error) Transient() bool {
	return errors.Is(e.Err, core.ErrTransient)
}

// Op is one optimistic mutation.
type Op[R any] struct {
	Kind Kind

	// Apply changes local state synchronously and returns how to undo it.
	// A nil undo without an error means there is nothing to do and nothing is dispatched.
	Apply func() (undo func(), err error)

	Dispatch func(ctx context.Context) (R, error)

	// Reconcile writes the server's authoritative result over the optimistic one. Optional.
	Reconcile func(result R)
}

// Execute runs op: local apply, dispatch, then reconcile on success or undo on failure.
func Execute[R any](ctx context.Context, logger *slog.Logger, op Op[R]) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("mutation", op.Kind)

	undo, err := apply(op)
	if err != nil {
		mutationsProcessed.WithLabelValues(string(op.Kind), outcomeInvalid).Inc()
		return err
	}
	if undo == nil {
		mutationsProcessed.WithLabelValues(string(op.Kind), outcomeNoop).Inc()
		return nil
	}

	if err := dispatch(ctx, op); err != nil {
		undo()
		mutationsProcessed.WithLabelValues(string(op.Kind), outcomeRolledBack).Inc()

		err = &Error{Kind: op.Kind, Err: classify(err)}
		logger.Warn("mutation rolled back", "error", err)

		return err
	}

	mutationsProcessed.WithLabelValues(string(op.Kind), outcomeConfirmed).Inc()
	logger.Debug("mutation confirmed")

	return nil
}

func apply[R any](op Op[R]) (undo func(), err error) {
	defer func() {
		if r := recover(); r != nil {
			undo, err = nil, &Error{Kind: op.Kind, Err: fmt.Errorf("apply %s: %v", op.Kind, r)}
		}
	}()

	return op.Apply()
}

func dispatch[R any](ctx context.Context, op Op[R]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("reconcile %s: %v", op.Kind, r)
		}
	}()

	result, err := op.Dispatch(ctx)
	if err != nil {
		return err
	}

	if op.Reconcile != nil {
		op.Reconcile(result)
	}

	return nil
}

func classify(err error) error {
	if errors.Is(err, core.ErrRejected) {
		return err
	}
	return core.Transient(err)
}
