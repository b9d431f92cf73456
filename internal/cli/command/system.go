package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/cli/connection"
)

// StatusCommand shows the server status.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show server status",
		Action: func(c *cli.Context) error {
			return run(c, func(ctx context.Context, cl *connection.SocketClient) error {
				st, err := cl.Status(ctx)
				if err != nil {
					return err
				}
				return render(c, st, "")
			})
		},
	}
}

// SweepCommand triggers an expiry sweep.
func SweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove expired keys now instead of waiting for the reaper",
		Action: func(c *cli.Context) error {
			return run(c, func(ctx context.Context, cl *connection.SocketClient) error {
				res, err := cl.Sweep(ctx)
				if err != nil {
					return err
				}
				return render(c, res, "")
			})
		},
	}
}

// PingCommand checks that the server answers.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the server answers",
		Action: func(c *cli.Context) error {
			return run(c, func(ctx context.Context, cl *connection.SocketClient) error {
				rtt, err := cl.Ping(ctx)
				if err != nil {
					return err
				}
				return render(c, map[string]any{"socket": cl.Path(), "rtt_ms": rtt.Milliseconds()},
					fmt.Sprintf("PONG from %s in %s", cl.Path(), rtt))
			})
		},
	}
}
