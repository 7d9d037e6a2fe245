package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// DefaultTimeout bounds each external command when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// ExecExecutor runs commands on the local host through os/exec.
type ExecExecutor struct {
	// Timeout bounds each Run call.
	Timeout time.Duration

	// Sudo prefixes every command with non-interactive sudo.
	Sudo bool
}

func (e ExecExecutor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e ExecExecutor) argv(c Command) []string {
	if e.Sudo {
		return append([]string{"sudo", "-n"}, c.Argv()...)
	}
	return c.Argv()
}

func (e ExecExecutor) Run(ctx context.Context, c Command) (Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	argv := e.argv(c)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctxErr := runCtx.Err(); ctxErr != nil {
		res.ExitCode = -1
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, fmt.Errorf("%w after %s: %s", ErrCommandTimeout, e.timeout(), c)
	}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		res.ExitCode = 127
	}
	res.Stderr += err.Error()
	return res, nil
}

func (e ExecExecutor) Start(c Command, logPath string) (int, error) {
	out, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("opening process log: %w", err)
	}
	defer out.Close()

	argv := e.argv(c)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("%w: starting %s: %v", ErrCommandFailed, c, err)
	}
	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("releasing process %d: %w", pid, err)
	}
	return pid, nil
}

// DryRunExecutor prints mutating commands instead of running them. Probes
// report "absent" so every step that would run is printed.
type DryRunExecutor struct {
	Out io.Writer
}

func (d DryRunExecutor) Run(_ context.Context, c Command) (Result, error) {
	if c.Probe {
		return Result{ExitCode: 1}, nil
	}
	fmt.Fprintf(d.Out, "+ %s\n", c)
	return Result{}, nil
}

func (d DryRunExecutor) Start(c Command, logPath string) (int, error) {
	fmt.Fprintf(d.Out, "+ %s >>%s 2>&1 &\n", c, logPath)
	return 0, nil
}
