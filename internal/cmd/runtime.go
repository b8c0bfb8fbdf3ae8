package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"roomfeed/internal/config"
	"roomfeed/internal/core"
	"roomfeed/internal/identity"
	"roomfeed/internal/live"
	"roomfeed/internal/metrics"
	"roomfeed/internal/room"
	"roomfeed/pkg/roomapi"
)

// runtime wires the REST client, the live connection manager and the room controller.
type runtime struct {
	Logger    *slog.Logger
	Config    *config.Config
	Transport transport
	Snapshots snapshots
	Metrics   *metrics.HTTPServer

	api   *roomapi.Client
	live  *live.Manager
	rooms *room.Controller
	loc   *time.Location
}

func (r *runtime) Init(_ context.Context) error {
	r.Logger = r.Logger.With("component", "cmd.runtime")

	loc, err := time.LoadLocation(r.Config.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", r.Config.Timezone, err)
	}
	r.loc = loc

	r.api = roomapi.NewClient(&roomapi.ClientConfig{
		BaseURL: r.Config.APIURL,
		Timeout: r.Config.RequestTimeout,
	})

	collator := identity.New(r.Logger)
	r.live = live.NewManager(r.Transport.Dialer(), collator, r.Logger)

	r.rooms = room.New(room.Config{
		UserID:   r.Config.UserID,
		Location: loc,
		Live:     r.live,
		Feed:     r.api,
		Cache:    r.Snapshots.Cache(),
		Votes:    r.api,
		Deletes:  r.api,
		Media:    r.api,
		Collator: collator,
		Logger:   r.Logger,
	})

	return nil
}

// Open opens the configured room and reports its connection through the health endpoint.
func (r *runtime) Open(ctx context.Context) (*room.Room, error) {
	rm, err := r.rooms.Open(ctx, r.Config.RoomID)
	if err != nil {
		return nil, err
	}

	r.Metrics.AddCheck("room "+rm.ID(), func(context.Context) error {
		if state := rm.Bridge().State(); state != live.Joined {
			return fmt.Errorf("%w: %s", core.ErrNotJoined, state)
		}
		return nil
	})

	return rm, nil
}

func (r *runtime) Shutdown(ctx context.Context) error {
	return errors.Join(r.live.Shutdown(ctx), r.api.Close())
}
