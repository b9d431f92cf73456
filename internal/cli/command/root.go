package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/cli/connection"
	"github.com/yndnr/filekv/internal/cli/output"
	"github.com/yndnr/filekv/internal/infra/buildinfo"
	"github.com/yndnr/filekv/internal/server/localserver"
)

// DefaultSocket matches the server's default local socket path.
const DefaultSocket = "/tmp/filekv-server.sock"

const clientKey = "client"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "filekv-cli",
		Usage:                "filekv command-line client",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			PutCommand(),
			GetCommand(),
			DeleteCommand(),
			StatusCommand(),
			SweepCommand(),
			PingCommand(),
		},
		Before: func(c *cli.Context) error {
			if _, err := output.ParseFormat(c.String("output")); err != nil {
				return cli.Exit(err.Error(), ExitUsage)
			}
			c.App.Metadata[clientKey] = connection.NewSocketClient(c.String("socket"))
			return nil
		},
		After: func(c *cli.Context) error {
			if client, ok := c.App.Metadata[clientKey].(*connection.SocketClient); ok {
				return client.Close()
			}
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "socket",
			Aliases: []string{"s"},
			Usage:   "filekv-server local socket path",
			EnvVars: []string{"FILEKV_SOCKET"},
			Value:   DefaultSocket,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
			Value: connection.DefaultTimeout,
		},
	}
}

// client returns the socket client created in Before.
func client(c *cli.Context) (*connection.SocketClient, error) {
	if cl, ok := c.App.Metadata[clientKey].(*connection.SocketClient); ok {
		return cl, nil
	}
	return nil, errors.New("socket client not initialized")
}

// requestContext bounds one request by --timeout.
func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	timeout := c.Duration("timeout")
	if timeout <= 0 {
		timeout = connection.DefaultTimeout
	}
	return context.WithTimeout(c.Context, timeout)
}

// render prints v in the selected format. Table output of a plain message
// falls back to msg.
func render(c *cli.Context, v any, msg string) error {
	format, _ := output.ParseFormat(c.String("output"))
	if format == output.FormatTable && msg != "" {
		_, err := fmt.Fprintln(c.App.Writer, msg)
		return err
	}
	return output.NewFormatter(format).Format(c.App.Writer, v)
}

// run executes fn with a connected client and maps its error to an exit code.
func run(c *cli.Context, fn func(ctx context.Context, cl *connection.SocketClient) error) error {
	cl, err := client(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	return exitError(fn(ctx, cl))
}

// parseTTL parses a TTL given as a duration or as plain milliseconds.
func parseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return 0, fmt.Errorf("invalid ttl %q: must not be negative", s)
		}
		return d, nil
	}
	var ms int64
	if _, err := fmt.Sscan(s, &ms); err != nil {
		return 0, fmt.Errorf("invalid ttl %q: want a duration such as 30s or milliseconds", s)
	}
	if ms < 0 || ms > localserver.MaxTTLMs {
		return 0, fmt.Errorf("invalid ttl %q: out of range", s)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
