package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"github.com/zhulik/pal"

	"roomfeed/internal/cmd/flags"
	"roomfeed/internal/config"
	"roomfeed/internal/metrics"
	"roomfeed/pkg/clicfg"
)

const VERSION = "0.1.0"

var cmd = &cli.Command{
	Name:    "roomfeed",
	Usage:   "roomfeed follows a group room: history, live events and optimistic mutations",
	Version: VERSION,
	Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
		if err := loadDotenv(); err != nil {
			return ctx, err
		}
		if err := initLogger(c.String("log-level")); err != nil {
			return ctx, err
		}
		return ctx, nil
	},
	Flags: []cli.Flag{
		flags.LogLevel,
	},
	Commands: []*cli.Command{
		watchCmd,
		voteCmd,
	},
}

func Run() {
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadDotenv reads .env from the working directory, if present. Already set variables win.
func loadDotenv() error {
	err := godotenv.Load()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func run(ctx context.Context, c *cli.Command, services ...pal.ServiceDef) error {
	cfg := config.Config{}
	if err := clicfg.ParseFlags(c, &cfg); err != nil {
		return err
	}

	backendServices, err := backends(&cfg)
	if err != nil {
		return err
	}

	services = append(services, backendServices...)
	services = append(services, pal.Provide(&cfg), metrics.Provide())

	return pal.New(services...).
		InjectSlog().
		InitTimeout(5*time.Second).
		HealthCheckTimeout(1*time.Second).
		ShutdownTimeout(10*time.Second).
		Run(ctx, syscall.SIGINT, syscall.SIGTERM)
}
