// Package gate runs the ordered release gates. Steps are data: a slice of
// named checks behind one interface, executed front to back, and the first
// required step that fails ends the run.
package gate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Result is what a check reports after running to completion.
type Result struct {
	// ExitStatus is zero on success. -1 means the check did not exit
	// normally (killed by a signal, or could not be started).
	ExitStatus int
	// Output is the tool's diagnostic text, unmodified.
	Output string
}

func (r Result) Passed() bool {
	return r.ExitStatus == 0
}

// Check is one opaque, invokable verification.
type Check interface {
	// Invoke blocks until the check completes. A non-nil error means the
	// check could not be executed at all.
	Invoke(ctx context.Context) (Result, error)
}

// CheckFunc adapts a function to Check.
type CheckFunc func(ctx context.Context) (Result, error)

func (f CheckFunc) Invoke(ctx context.Context) (Result, error) {
	return f(ctx)
}

type Step struct {
	Name     string
	Check    Check
	Required bool
}

// Failure is the verdict of a run stopped by a required step.
type Failure struct {
	Step       string
	ExitStatus int
	Output     string
	// Err is set when the step's check could not be executed.
	Err error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("gate %q failed: %v", f.Step, f.Err)
	}
	return fmt.Sprintf("gate %q failed with exit status %d", f.Step, f.ExitStatus)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

type State int

const (
	Idle State = iota
	Running
	Passed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Transition is reported to Runner.Observe on every state change. Step is
// the index of the step concerned, or -1 for Idle and Passed.
type Transition struct {
	State State
	Step  int
	Name  string
}

type Runner struct {
	Log     *zap.Logger
	Observe func(Transition)
}

// Run executes steps in order. It returns nil when every required step
// passes, or a *Failure naming the first required step that did not. Steps
// after a failing required step are never invoked. A failing optional step
// is logged and the run continues.
func (r *Runner) Run(ctx context.Context, steps []Step) error {
	log := r.logger()
	r.emit(Transition{State: Idle, Step: -1})

	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.emit(Transition{State: Running, Step: i, Name: step.Name})
		log.Info("gate started", zap.String("gate", step.Name), zap.Int("order", i+1), zap.Int("of", len(steps)))

		start := time.Now()
		res, err := step.Check.Invoke(ctx)
		elapsed := time.Since(start)

		if err == nil && res.Passed() {
			log.Info("gate passed", zap.String("gate", step.Name), zap.Duration("elapsed", elapsed))
			continue
		}

		failure := &Failure{Step: step.Name, ExitStatus: res.ExitStatus, Output: res.Output, Err: err}
		if err != nil && failure.ExitStatus == 0 {
			failure.ExitStatus = -1
		}

		if !step.Required {
			log.Warn("optional gate failed", zap.String("gate", step.Name), zap.Int("exit_status", failure.ExitStatus), zap.Error(err))
			continue
		}

		log.Error("gate failed", zap.String("gate", step.Name), zap.Int("exit_status", failure.ExitStatus), zap.Duration("elapsed", elapsed), zap.Error(err))
		r.emit(Transition{State: Failed, Step: i, Name: step.Name})
		return failure
	}

	r.emit(Transition{State: Passed, Step: -1})
	return nil
}

func (r *Runner) emit(t Transition) {
	if r.Observe != nil {
		r.Observe(t)
	}
}

func (r *Runner) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}
