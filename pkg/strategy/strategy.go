package strategy

import (
	"context"
	"errors"

	fuerrors "github.com/arthur-debert/fleetup/pkg/errors"
	"github.com/arthur-debert/fleetup/pkg/logging"
	"github.com/arthur-debert/fleetup/pkg/registry"
	"github.com/rs/zerolog"
)

// Step is one named operation over the run state C
type Step[C any] interface {
	Name() string
	Description() string
	Execute(ctx context.Context, rc C) error
}

type funcStep[C any] struct {
	name string
	desc string
	fn   func(context.Context, C) error
}

func (s funcStep[C]) Name() string        { return s.name }
func (s funcStep[C]) Description() string { return s.desc }

func (s funcStep[C]) Execute(ctx context.Context, rc C) error {
	return s.fn(ctx, rc)
}

// NewStep adapts a function to Step
func NewStep[C any](name, description string, fn func(context.Context, C) error) Step[C] {
	return funcStep[C]{name: name, desc: description, fn: fn}
}

// Strategy is one stage of a recovery chain
type Strategy struct {
	Name           string
	Steps          []string
	SuccessMessage string
	FailureMessage string

	// OnFailure runs best-effort after a step fails
	OnFailure []string
	// Fallback is tried after OnFailure; nil ends the chain
	Fallback *Strategy
	// Exit marks a strategy that ends the run as failed even when its steps
	// succeed
	Exit bool
}

// Terminal reports whether the chain ends here
func (s *Strategy) Terminal() bool {
	return s.Fallback == nil
}

// Hooks observe the engine. Any of them may be nil.
type Hooks struct {
	StepStarted       func(step string, description string)
	StepFinished      func(step string, err error)
	StrategySucceeded func(s *Strategy)
	StrategyFailed    func(s *Strategy, step string, err error)
	RecoveryFailed    func(step string, err error)
}

// Result describes how a chain ended
type Result struct {
	Succeeded bool
	// Final is the strategy the engine stopped in
	Final *Strategy
	// FailedStep and Err describe the last step failure, if any
	FailedStep string
	Err        error
	// Visited lists every strategy that ran, in order
	Visited []string
}

// Engine executes strategy chains against a registry of steps
type Engine[C any] struct {
	steps  registry.Registry[Step[C]]
	hooks  Hooks
	logger zerolog.Logger
}

// NewEngine creates an engine over steps
func NewEngine[C any](steps registry.Registry[Step[C]], hooks Hooks) *Engine[C] {
	return &Engine[C]{
		steps:  steps,
		hooks:  hooks,
		logger: logging.GetLogger("strategy"),
	}
}

// Validate checks that the chain starting at start is finite and names only
// registered steps
func (e *Engine[C]) Validate(start *Strategy) error {
	seen := map[*Strategy]bool{}
	for s := start; s != nil; s = s.Fallback {
		if seen[s] {
			return fuerrors.Newf(fuerrors.ErrStrategyCycle, "strategy %q falls back to itself", s.Name)
		}
		seen[s] = true

		names := append(append([]string(nil), s.Steps...), s.OnFailure...)
		if missing := e.steps.Missing(names...); len(missing) > 0 {
			return fuerrors.Newf(fuerrors.ErrStepNotFound, "strategy %q uses unknown step %q", s.Name, missing[0]).
				WithDetail("strategy", s.Name).
				WithDetail("step", missing[0]).
				WithDetail("missing", missing)
		}
	}
	return nil
}

// Run executes the chain starting at start. The returned error is non-nil
// only when the chain is invalid, a step failed fatally, or ctx ended; step
// failures are reported in Result.
func (e *Engine[C]) Run(ctx context.Context, start *Strategy, rc C) (Result, error) {
	if err := e.Validate(start); err != nil {
		return Result{}, err
	}

	var res Result
	for current := start; current != nil; current = current.Fallback {
		res.Final = current
		res.Visited = append(res.Visited, current.Name)
		e.logger.Info().Str("strategy", current.Name).Msg("Running strategy")

		step, err := e.runSteps(ctx, current.Steps, rc)
		if err != nil && abortsRun(ctx, err) {
			res.FailedStep, res.Err = step, err
			return res, err
		}

		if err == nil {
			if current.Exit {
				e.logger.Warn().Str("strategy", current.Name).Msg("Reached exit strategy")
				return res, nil
			}
			res.Succeeded = true
			if e.hooks.StrategySucceeded != nil {
				e.hooks.StrategySucceeded(current)
			}
			e.logger.Info().Str("strategy", current.Name).Msg("Strategy succeeded")
			return res, nil
		}

		res.FailedStep, res.Err = step, err
		e.logger.Warn().Str("strategy", current.Name).Str("step", step).Err(err).Msg("Strategy failed")
		if e.hooks.StrategyFailed != nil {
			e.hooks.StrategyFailed(current, step, err)
		}

		if fatal := e.recover(ctx, current.OnFailure, rc); fatal != nil {
			return res, fatal
		}
	}
	return res, nil
}

func (e *Engine[C]) runSteps(ctx context.Context, names []string, rc C) (string, error) {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return name, err
		}
		if err := e.runStep(ctx, name, rc); err != nil {
			return name, err
		}
	}
	return "", nil
}

func (e *Engine[C]) runStep(ctx context.Context, name string, rc C) error {
	step, err := e.steps.Get(name)
	if err != nil {
		return fuerrors.Wrapf(err, fuerrors.ErrStepNotFound, "step %q", name)
	}
	if e.hooks.StepStarted != nil {
		e.hooks.StepStarted(name, step.Description())
	}
	e.logger.Debug().Str("step", name).Msg("Executing step")

	err = step.Execute(ctx, rc)

	if e.hooks.StepFinished != nil {
		e.hooks.StepFinished(name, err)
	}
	return err
}

// recover runs every recovery step even when one fails. A fatal recovery
// failure is returned once all of them ran.
func (e *Engine[C]) recover(ctx context.Context, names []string, rc C) error {
	var fatal error
	for _, name := range names {
		if err := e.runStep(ctx, name, rc); err != nil {
			e.logger.Warn().Str("step", name).Err(err).Msg("Recovery step failed")
			if e.hooks.RecoveryFailed != nil {
				e.hooks.RecoveryFailed(name, err)
			}
			if fatal == nil && abortsRun(ctx, err) {
				fatal = err
			}
		}
	}
	return fatal
}

func abortsRun(ctx context.Context, err error) bool {
	return fuerrors.IsFatal(err) ||
		ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
