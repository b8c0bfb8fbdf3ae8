package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"roomfeed/internal/cmd/flags"
	"roomfeed/internal/config"
	"roomfeed/internal/feed"
	"roomfeed/internal/mutation"
)

var voteCmd = &cli.Command{
	Name:  "vote",
	Usage: "Vote in an announcement poll",
	Flags: append(flags.Common(), flags.Announcement, flags.Option),
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			pal.Provide(&runtime{}),
			pal.Provide(&voter{}),
		)
	},
}

type voter struct {
	Logger  *slog.Logger
	Config  *config.Config
	Runtime *runtime
}

func (v *voter) Init(_ context.Context) error {
	v.Logger = v.Logger.With("component", "cmd.voter")
	return nil
}

func (v *voter) Run(ctx context.Context) error {
	rm, err := v.Runtime.Open(ctx)
	if err != nil {
		return err
	}
	defer rm.Close() //nolint:errcheck

	if err := rm.Wait(ctx); err != nil {
		return err
	}

	err = rm.Mutations().Vote(ctx, v.Config.AnnouncementID, v.Config.Option)
	if err != nil {
		var mutationErr *mutation.Error
		if errors.As(err, &mutationErr) && mutationErr.Transient() {
			return fmt.Errorf("vote not delivered, try again: %w", err)
		}
		return err
	}

	counts, ok := pollCounts(rm.Store(), v.Config.AnnouncementID)
	if !ok {
		v.Logger.Info("vote cast", "announcement", v.Config.AnnouncementID)
		return nil
	}
	v.Logger.Info("vote cast", "announcement", v.Config.AnnouncementID, "counts", counts)

	return nil
}

// pollCounts is false when a reload dropped the announcement or its poll after the vote.
func pollCounts(store *feed.Store, id int64) ([]int, bool) {
	item, ok := store.Get(id)
	if !ok || item.Payload.Poll == nil {
		return nil, false
	}
	return item.Payload.Poll.Counts(), true
}
