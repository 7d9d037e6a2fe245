package cmd

import (
	"context"
	"errors"

	"tasnim.dev/vpcctl/internal/provision"
	"tasnim.dev/vpcctl/internal/topology"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitUnexpected  = 1
	ExitValidation  = 2
	ExitExecution   = 3
	ExitLockTimeout = 4
)

// ExitCode maps an error returned by a command to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, topology.ErrLockTimeout):
		return ExitLockTimeout
	case topology.IsValidation(err):
		return ExitValidation
	case errors.Is(err, provision.ErrCommandFailed), errors.Is(err, context.DeadlineExceeded):
		return ExitExecution
	default:
		return ExitUnexpected
	}
}
