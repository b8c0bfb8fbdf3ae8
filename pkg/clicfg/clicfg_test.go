package clicfg_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"roomfeed/pkg/clicfg"
)

type testConfig struct {
	Name    string        `flag:"name"`
	Verbose bool          `flag:"verbose"`
	Workers int           `flag:"workers"`
	Timeout time.Duration `flag:"timeout"`
	Ratio   float64       `flag:"ratio"`

	Untagged string
	hidden   string //nolint:unused
}

func TestParseFlags(t *testing.T) {
	t.Parallel()

	var cfg testConfig

	cmd := &cli.Command{
		Name: "test",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name"},
			&cli.BoolFlag{Name: "verbose"},
			&cli.IntFlag{Name: "workers", Value: 4},
			&cli.DurationFlag{Name: "timeout", Value: time.Second},
			&cli.FloatFlag{Name: "ratio"},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			return clicfg.ParseFlags(c, &cfg)
		},
	}

	err := cmd.Run(t.Context(), []string{"test", "--name", "room", "--verbose", "--timeout", "250ms", "--ratio", "0.8"})
	require.NoError(t, err)

	require.Equal(t, testConfig{
		Name:    "room",
		Verbose: true,
		Workers: 4,
		Timeout: 250 * time.Millisecond,
		Ratio:   0.8,
	}, cfg)
}

func TestParseFlags_NotAStructPointer(t *testing.T) {
	t.Parallel()

	cmd := &cli.Command{}

	require.ErrorIs(t, clicfg.ParseFlags(cmd, testConfig{}), clicfg.ErrCannotParseFlags)

	name := "x"
	require.ErrorIs(t, clicfg.ParseFlags(cmd, &name), clicfg.ErrCannotParseFlags)
}
