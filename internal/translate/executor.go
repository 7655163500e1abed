package translate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"idhub/internal/translate/expression"
	"idhub/internal/translate/metrics"
	dErrors "idhub/pkg/domain-errors"
)

// Rule pairs an optional condition with an action. A nil condition is always
// true.
type Rule struct {
	Condition *expression.Program
	Action    Action
}

// Profile is an ordered, immutable rule list. Authored externally; once
// installed it is never mutated.
type Profile struct {
	Name  string
	Kind  ProfileKind
	Rules []Rule

	// AutoAccept, when set on a registration profile, is evaluated against
	// the restricted context after translation.
	AutoAccept *expression.Program
}

// ProfileSource resolves profiles referenced by includeInputProfile rules.
type ProfileSource interface {
	Profile(name string) (*Profile, error)
}

// RunStatus is the executor's per-run state machine.
type RunStatus string

const (
	RunReady   RunStatus = "READY"
	RunRunning RunStatus = "RUNNING"
	RunDone    RunStatus = "DONE"
	RunFailed  RunStatus = "FAILED"
)

// Executor runs translation profiles. Rules execute strictly in list order
// against a single accumulator; execution is synchronous and deterministic
// for a fixed (context, clock).
type Executor struct {
	profiles ProfileSource
	log      *slog.Logger
	tracer   trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

func WithLogger(log *slog.Logger) ExecutorOption {
	return func(e *Executor) { e.log = log }
}

func NewExecutor(profiles ProfileSource, opts ...ExecutorOption) *Executor {
	e := &Executor{
		profiles: profiles,
		log:      slog.Default(),
		tracer:   otel.Tracer("idhub/translate"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs a profile against the given evaluation context, mutating acc.
// Returns the final run status; RunFailed is accompanied by an error. The
// only fatal conditions are include cycles and unresolvable includes — rule
// runtime errors are logged and skipped per the error handling contract.
func (e *Executor) Execute(ctx context.Context, p *Profile, ec Context, acc *Accumulator) (RunStatus, error) {
	ctx, span := e.tracer.Start(ctx, "translate.Execute")
	defer span.End()

	start := time.Now()
	status := RunRunning
	err := e.run(ctx, p, ec, acc, []string{p.Name})
	if err != nil {
		status = RunFailed
		metrics.ObserveExecution(p.Name, "failed", start)
		return status, err
	}
	status = RunDone
	metrics.ObserveExecution(p.Name, "done", start)
	return status, nil
}

func (e *Executor) run(ctx context.Context, p *Profile, ec Context, acc *Accumulator, stack []string) error {
	for i, rule := range p.Rules {
		if rule.Action == nil {
			return dErrors.Newf(dErrors.CodeInvalidProfile, "profile %q rule %d has no action", p.Name, i)
		}

		if rule.Condition != nil {
			ok, err := rule.Condition.EvaluateBool(ec)
			if err != nil {
				e.log.Warn("rule condition failed, skipping rule",
					"profile", p.Name, "rule", i, "error", err)
				continue
			}
			if !ok {
				continue
			}
		}

		if inc, ok := rule.Action.(includer); ok {
			if err := e.include(ctx, inc.IncludedProfile(), ec, acc, stack); err != nil {
				return err
			}
			continue
		}

		metrics.IncRuleInvoked()
		if err := rule.Action.Invoke(ctx, acc, ec, p.Name); err != nil {
			return fmt.Errorf("profile %q rule %d (%s): %w", p.Name, i, rule.Action.Name(), err)
		}
	}
	return nil
}

func (e *Executor) include(ctx context.Context, name string, ec Context, acc *Accumulator, stack []string) error {
	for _, onStack := range stack {
		if onStack == name {
			return dErrors.Newf(dErrors.CodeInvalidProfile,
				"profile inclusion cycle: %v -> %s", stack, name)
		}
	}
	if e.profiles == nil {
		return dErrors.Newf(dErrors.CodeInvalidProfile, "cannot include profile %q: no profile source", name)
	}
	included, err := e.profiles.Profile(name)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidProfile, fmt.Sprintf("included profile %q not found", name))
	}
	e.log.Debug("including profile", "profile", name, "stack", stack)
	return e.run(ctx, included, ec, acc, append(stack, name))
}

// EvaluateAutoAccept decides whether a translated request may be accepted
// automatically. The condition sees only the restricted context view, so
// interactively supplied values cannot steer the outcome. Evaluation errors
// fail closed.
func (e *Executor) EvaluateAutoAccept(p *Profile, ec Context) bool {
	if p.AutoAccept == nil {
		return false
	}
	ok, err := p.AutoAccept.EvaluateBool(ec.RestrictedView())
	if err != nil {
		e.log.Warn("auto-accept condition failed, not auto-accepting",
			"profile", p.Name, "error", err)
		return false
	}
	return ok
}
