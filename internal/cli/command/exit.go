package command

import (
	"context"
	"errors"
	"net"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/filekv/internal/core/domain"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitNotFound    = 3
	ExitConflict    = 4
	ExitUnavailable = 5
)

// exitError converts err into a cli.ExitCoder carrying the matching code.
func exitError(err error) error {
	if err == nil {
		return nil
	}
	return cli.Exit("error: "+err.Error(), exitCode(err))
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidKey),
		errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrInvalidRequest):
		return ExitUsage
	case errors.Is(err, domain.ErrKeyNotFound),
		errors.Is(err, domain.ErrRecordNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrDuplicateKey),
		errors.Is(err, domain.ErrLockContention):
		return ExitConflict
	case errors.Is(err, domain.ErrStoreClosed),
		errors.Is(err, context.DeadlineExceeded):
		return ExitUnavailable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ExitUnavailable
	}
	return ExitFailure
}
