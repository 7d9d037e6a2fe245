package provision

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCommandFailed indicates an external command exited non-zero where
	// success was required.
	ErrCommandFailed = errors.New("external command failed")

	// ErrCommandTimeout indicates an external command exceeded its timeout.
	ErrCommandTimeout = fmt.Errorf("%w: timed out", ErrCommandFailed)
)

// StepError identifies the resource and step whose command failed.
type StepError struct {
	Resource string
	Step     string
	Command  Command
	Result   Result
	Err      error
}

func (e *StepError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: `%s`", e.Resource, e.Step, e.Command)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
		return b.String()
	}
	fmt.Fprintf(&b, ": exit status %d", e.Result.ExitCode)
	if msg := strings.TrimSpace(e.Result.Stderr); msg != "" {
		fmt.Fprintf(&b, ": %s", msg)
	}
	return b.String()
}

func (e *StepError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCommandFailed
}

// absentMarkers are the stderr fragments ip, iptables and kill print when the
// target of a delete is already gone.
var absentMarkers = []string{
	"Cannot find device",
	"No such file or directory",
	"No such process",
	"does not exist",
	"Bad rule",
	"No chain/target/match by that name",
}

// absent reports whether a failed delete failed only because its target is missing.
func absent(res Result) bool {
	for _, m := range absentMarkers {
		if strings.Contains(res.Stderr, m) {
			return true
		}
	}
	return false
}
