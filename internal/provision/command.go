package provision

import (
	"context"
	"strings"
)

// Command is one external program invocation. Probe marks read-only queries
// (rule checks, listings) whose only purpose is to decide whether a mutating
// step is needed.
type Command struct {
	Name  string
	Args  []string
	Probe bool
}

// Cmd builds a mutating command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// ProbeCmd builds a read-only query command.
func ProbeCmd(name string, args ...string) Command {
	return Command{Name: name, Args: args, Probe: true}
}

// Argv returns the name followed by the arguments.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command the way a shell user would type it.
func (c Command) String() string {
	var b strings.Builder
	for i, arg := range c.Argv() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(shellQuote(arg))
	}
	return b.String()
}

func shellQuote(value string) string {
	if value == "" {
		return "''"
	}
	if strings.IndexFunc(value, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=,+@%", r))
	}) < 0 {
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", `'"'"'`) + "'"
}

// Result is the outcome of a command that ran to completion.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// OK reports a zero exit status.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Executor runs privileged networking commands. Run blocks until the command
// exits and reports a non-zero exit through Result, not through the error;
// the error is reserved for commands that did not complete (timeout,
// cancellation). Start launches a detached long-running process writing its
// output to logPath and returns its pid without waiting for it.
type Executor interface {
	Run(ctx context.Context, cmd Command) (Result, error)
	Start(cmd Command, logPath string) (int, error)
}
