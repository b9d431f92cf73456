package command

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/cli/connection"
)

// Result is printed for operations without a value.
type Result struct {
	Key    string `json:"key" yaml:"key"`
	Result string `json:"result" yaml:"result"`
}

// Value is printed by get.
type Value struct {
	Key  string `json:"key" yaml:"key"`
	Data string `json:"data" yaml:"data"`
}

// PutCommand stores a value.
func PutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Aliases:   []string{"set"},
		Usage:     "Store a JSON value under a new key",
		ArgsUsage: "KEY [DATA|-]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory for the record file (server default when empty)",
			},
			&cli.StringFlag{
				Name:  "ttl",
				Usage: "Time to live, e.g. 30s, 5m, or milliseconds; empty never expires",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "Read DATA from a file",
			},
		},
		Action: putAction,
	}
}

func putAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("put requires KEY", ExitUsage)
	}
	key := c.Args().Get(0)

	data, err := readData(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}
	ttl, err := parseTTL(c.String("ttl"))
	if err != nil {
		return cli.Exit(err.Error(), ExitUsage)
	}

	return run(c, func(ctx context.Context, cl *connection.SocketClient) error {
		if err := cl.Put(ctx, key, data, c.String("dir"), ttl); err != nil {
			return err
		}
		return render(c, Result{Key: key, Result: "stored"}, "OK")
	})
}

// readData takes DATA from --file, the second argument, or stdin for "-".
func readData(c *cli.Context) (string, error) {
	if path := c.String("file"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	arg := c.Args().Get(1)
	switch arg {
	case "":
		return "", fmt.Errorf("put requires DATA, --file, or - for stdin")
	case "-":
		reader := c.App.Reader
		if reader == nil {
			reader = os.Stdin
		}
		b, err := io.ReadAll(reader)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return arg, nil
	}
}

// GetCommand reads a value.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value stored under a key",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("get requires exactly one KEY", ExitUsage)
			}
			key := c.Args().First()

			return run(c, func(ctx context.Context, cl *connection.SocketClient) error {
				data, err := cl.Get(ctx, key)
				if err != nil {
					return err
				}
				return render(c, Value{Key: key, Data: data}, data)
			})
		},
	}
}

// DeleteCommand removes a key.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"del", "rm"},
		Usage:     "Delete a key and its record file",
		ArgsUsage: "KEY",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("delete requires exactly one KEY", ExitUsage)
			}
			key := c.Args().First()

			return run(c, func(ctx context.Context, cl *connection.SocketClient) error {
				if err := cl.Delete(ctx, key); err != nil {
					return err
				}
				return render(c, Result{Key: key, Result: "deleted"}, "OK")
			})
		},
	}
}
