// Package fakeexec provides an in-memory provision.Executor for tests.
package fakeexec

import (
	"context"
	"strings"
	"sync"

	"tasnim.dev/vpcctl/internal/provision"
)

// Response is the canned outcome for commands matching a prefix.
type Response struct {
	Result provision.Result
	Err    error
}

// Executor records every command and answers from canned responses.
//
// Mutating commands succeed unless a failure is registered for them. Probes
// report "absent" (exit 1) unless a response is registered, so create paths
// run every step by default.
type Executor struct {
	mu        sync.Mutex
	commands  []provision.Command
	responses []match
	started   []provision.Command
	nextPID   int
}

type match struct {
	prefix string
	resp   Response
}

// New returns an executor with no canned responses.
func New() *Executor {
	return &Executor{nextPID: 4000}
}

// On registers a response for commands whose rendered form starts with
// prefix. Later registrations take precedence.
func (e *Executor) On(prefix string, resp Response) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.responses = append(e.responses, match{prefix: prefix, resp: resp})
	return e
}

// Fail makes commands starting with prefix exit with code and stderr.
func (e *Executor) Fail(prefix string, code int, stderr string) *Executor {
	return e.On(prefix, Response{Result: provision.Result{ExitCode: code, Stderr: stderr}})
}

// Succeed makes commands starting with prefix exit zero with stdout.
func (e *Executor) Succeed(prefix, stdout string) *Executor {
	return e.On(prefix, Response{Result: provision.Result{Stdout: stdout}})
}

func (e *Executor) Run(_ context.Context, c provision.Command) (provision.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = append(e.commands, c)
	line := c.String()
	for i := len(e.responses) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, e.responses[i].prefix) {
			return e.responses[i].resp.Result, e.responses[i].resp.Err
		}
	}
	if c.Probe {
		return provision.Result{ExitCode: 1}, nil
	}
	return provision.Result{}, nil
}

func (e *Executor) Start(c provision.Command, _ string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, c)
	e.nextPID++
	return e.nextPID, nil
}

// Commands returns the rendered mutating commands in call order.
func (e *Executor) Commands() []string {
	return e.lines(false)
}

// All returns every rendered command, probes included, in call order.
func (e *Executor) All() []string {
	return e.lines(true)
}

func (e *Executor) lines(probes bool) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, c := range e.commands {
		if c.Probe && !probes {
			continue
		}
		out = append(out, c.String())
	}
	return out
}

// Started returns the rendered commands passed to Start.
func (e *Executor) Started() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.started))
	for _, c := range e.started {
		out = append(out, c.String())
	}
	return out
}

// Reset forgets recorded commands but keeps canned responses.
func (e *Executor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commands = nil
	e.started = nil
}
