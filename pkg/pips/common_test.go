package pips_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"roomfeed/pkg/pips"
	"roomfeed/pkg/pips/apply"
)

var errMalformed = errors.New("malformed frame")

// frame and event mimic what a room connection delivers and what the feed consumes.
type frame struct {
	Room string
	Name string
	ID   int64
}

type event struct {
	Name string
	ID   int64
}

func frames(items ...frame) <-chan frame {
	ch := make(chan frame)
	go func() {
		defer close(ch)
		for _, item := range items {
			ch <- item
		}
	}()
	return ch
}

func roomFrames() <-chan frame {
	return frames(
		frame{Room: "lobby", Name: "receiveMessage", ID: 1},
		frame{Room: "other", Name: "receiveMessage", ID: 2},
		frame{Room: "lobby", Name: "messageDeleted", ID: 1},
		frame{Room: "lobby", Name: "newAnnouncement", ID: 3},
	)
}

var (
	decode = apply.Map(func(_ context.Context, f frame) (event, error) {
		if f.ID <= 0 {
			return event{}, errMalformed
		}
		return event{Name: f.Name, ID: f.ID}, nil
	})

	inLobby = apply.Filter(func(_ context.Context, f frame) (bool, error) {
		return f.Room == "lobby", nil
	})
)

func run[O any](t *testing.T, input <-chan frame, stages ...pips.Stage) <-chan pips.D[O] {
	t.Helper()

	return pips.New[frame, O](stages...).Run(t.Context(), input)
}

func requireDelivered[T any](t *testing.T, out <-chan pips.D[T], expected []T) {
	t.Helper()

	collected := lo.ChannelToSlice(out)

	require.Equal(t, expected,
		lo.Map(collected, func(item pips.D[T], _ int) T {
			require.NoError(t, item.Err)
			return item.Value
		}),
	)
}

func requireFailed[T any](t *testing.T, out <-chan pips.D[T], err error) {
	t.Helper()

	collected := lo.ChannelToSlice(out)

	require.NotEmpty(t, collected)
	require.ErrorIs(t, collected[len(collected)-1].Err, err)
}
