// Package provision turns validated topology records into bridges,
// namespaces, veth pairs, routes and packet-filter rules by driving the host
// networking tools through an Executor.
//
// Create paths run an ordered plan of steps. Each step may carry a probe that
// skips it when its target already exists and a compensation that undoes it.
// When a step fails, the compensations recorded so far run in reverse order
// and the failure is returned as a *StepError. Teardown paths never stop
// early: every removal is attempted, targets that are already gone are
// ignored, and the remaining failures are returned as warnings.
package provision

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tasnim.dev/vpcctl/internal/logging"
)

// Provisioner issues host networking commands for topology changes.
type Provisioner struct {
	exec   Executor
	logger *zap.Logger
}

// New creates a provisioner. A nil logger disables logging.
func New(exec Executor, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{exec: exec, logger: logger}
}

type step struct {
	name  string
	do    Command
	probe *Command
	undo  *Command
}

func (p *Provisioner) run(ctx context.Context, c Command) (Result, error) {
	p.logger.Debug("running command", zap.String(logging.FieldCommand, c.String()))
	start := time.Now()
	res, err := p.exec.Run(ctx, c)
	p.logger.Debug("command finished",
		zap.String(logging.FieldCommand, c.String()),
		zap.Int(logging.FieldExitCode, res.ExitCode),
		zap.Duration(logging.FieldDuration, time.Since(start)))
	return res, err
}

// apply runs steps in order, rolling back completed steps on the first failure.
func (p *Provisioner) apply(ctx context.Context, resource string, steps []step) error {
	var undo []step
	for _, st := range steps {
		if st.probe != nil {
			if res, err := p.run(ctx, *st.probe); err == nil && res.OK() {
				p.logger.Debug("step already satisfied",
					zap.String(logging.FieldResource, resource),
					zap.String(logging.FieldStep, st.name))
				continue
			}
		}
		res, err := p.run(ctx, st.do)
		if err != nil || !res.OK() {
			stepErr := &StepError{Resource: resource, Step: st.name, Command: st.do, Result: res, Err: err}
			p.logger.Warn("provisioning failed, rolling back",
				zap.String(logging.FieldResource, resource),
				zap.String(logging.FieldStep, st.name),
				zap.Error(stepErr))
			p.rollback(ctx, resource, undo)
			return stepErr
		}
		if st.undo != nil {
			undo = append(undo, st)
		}
	}
	return nil
}

func (p *Provisioner) rollback(ctx context.Context, resource string, done []step) {
	ctx = context.WithoutCancel(ctx)
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		res, err := p.run(ctx, *st.undo)
		if err != nil || (!res.OK() && !absent(res)) {
			p.logger.Warn("rollback step failed",
				zap.String(logging.FieldResource, resource),
				zap.String(logging.FieldStep, st.name),
				zap.String(logging.FieldCommand, st.undo.String()),
				zap.String(logging.FieldStderr, res.Stderr),
				zap.NamedError("cause", err))
		}
	}
}

// bestEffort runs a pre-clean command whose outcome does not matter.
func (p *Provisioner) bestEffort(ctx context.Context, c Command) {
	_, _ = p.run(ctx, c)
}

// teardown collects removal failures for one resource.
type teardown struct {
	p        *Provisioner
	resource string
	errs     error
}

func (p *Provisioner) teardown(resource string) *teardown {
	return &teardown{p: p, resource: resource}
}

// remove runs a delete; a missing target counts as success.
func (t *teardown) remove(ctx context.Context, name string, c Command) {
	res, err := t.p.run(ctx, c)
	if err == nil && (res.OK() || absent(res)) {
		return
	}
	stepErr := &StepError{Resource: t.resource, Step: name, Command: c, Result: res, Err: err}
	t.p.logger.Warn("teardown step failed, continuing",
		zap.String(logging.FieldResource, t.resource),
		zap.String(logging.FieldStep, name),
		zap.Error(stepErr))
	t.errs = multierr.Append(t.errs, stepErr)
}

// removeIfPresent deletes only when probe reports the target present.
func (t *teardown) removeIfPresent(ctx context.Context, name string, probe, c Command) {
	if res, err := t.p.run(ctx, probe); err == nil && !res.OK() {
		return
	}
	t.remove(ctx, name, c)
}

func (t *teardown) merge(warnings []error) {
	for _, w := range warnings {
		t.errs = multierr.Append(t.errs, w)
	}
}

func (t *teardown) warnings() []error {
	return multierr.Errors(t.errs)
}

func ptr(c Command) *Command {
	return &c
}
