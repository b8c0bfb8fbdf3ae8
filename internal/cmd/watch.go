package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"roomfeed/internal/cmd/flags"
	"roomfeed/internal/config"
)

var watchCmd = &cli.Command{
	Name:  "watch",
	Usage: "Open a room and print its feed on every change",
	Flags: append(flags.Common(), flags.Kind, flags.Pretty),
	Action: func(ctx context.Context, c *cli.Command) error {
		return run(ctx, c,
			pal.Provide(&runtime{}),
			pal.Provide(&watcher{}),
		)
	},
}

type watcher struct {
	Logger  *slog.Logger
	Config  *config.Config
	Runtime *runtime

	out io.Writer
}

func (w *watcher) Init(_ context.Context) error {
	w.Logger = w.Logger.With("component", "cmd.watcher")
	w.out = os.Stdout
	return nil
}

func (w *watcher) Run(ctx context.Context) error {
	rm, err := w.Runtime.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := rm.Close(); err != nil {
			w.Logger.Warn("failed to close room", "error", err)
		}
	}()

	go func() {
		if err := rm.Wait(ctx); err != nil {
			w.Logger.Warn("history not loaded, showing cached and live items only", "error", err)
		}
	}()

	store := rm.Store()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		rows := filterRows(store.Rows(), w.Config.Kind)
		if err := render(w.out, rows, time.Now().In(w.Runtime.loc), w.Config.Pretty); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-store.Changes():
		case <-ticker.C:
			// relative timestamps age
		}
	}
}
