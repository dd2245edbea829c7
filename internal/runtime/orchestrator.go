package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/quantfold/tessera/pkg/domain"
	"github.com/quantfold/tessera/pkg/ports"
	"github.com/quantfold/tessera/pkg/schema"
	"github.com/quantfold/tessera/pkg/template"
)

// fallbackStepTimeout bounds step execution when neither the step, the
// pattern, nor the config provides a timeout. Steps are never unbounded.
const fallbackStepTimeout = 30 * time.Second

// PatternOrchestrator executes pattern runs end to end: input validation,
// sequential steps, declared parallel groups, compensation unwind, and
// output projection.
type PatternOrchestrator struct {
	patterns *PatternRegistry
	runtime  *AgentRuntime
	shared   ports.CacheStore
	sink     ports.TraceSink
	hooks    domain.LifecycleHooks
	logger   *slog.Logger

	defaultStepTimeout time.Duration
}

// NewPatternOrchestrator wires an orchestrator. The shared cache store and
// trace sink may be nil.
func NewPatternOrchestrator(patterns *PatternRegistry, rt *AgentRuntime, shared ports.CacheStore, sink ports.TraceSink, hooks domain.LifecycleHooks, defaultStepTimeout time.Duration, logger *slog.Logger) *PatternOrchestrator {
	if defaultStepTimeout <= 0 {
		defaultStepTimeout = fallbackStepTimeout
	}
	return &PatternOrchestrator{
		patterns:           patterns,
		runtime:            rt,
		shared:             shared,
		sink:               sink,
		hooks:              hooks,
		logger:             logger,
		defaultStepTimeout: defaultStepTimeout,
	}
}

// Run executes one pattern. Validation failures and unknown patterns surface
// before any step runs and carry no trace. Once execution starts, the trace
// is always returned, partial on failure; Outputs is nil unless every step
// and the output projection succeeded.
func (o *PatternOrchestrator) Run(ctx context.Context, patternID string, inputs map[string]any, req domain.RequestContext) (*domain.RunResult, error) {
	spec, err := o.patterns.Get(patternID)
	if err != nil {
		return nil, err
	}

	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.TraceID == "" {
		req.TraceID = uuid.NewString()
	}

	if len(spec.Inputs) > 0 {
		if err := schema.Validate(spec.Inputs, inputs); err != nil {
			return nil, &domain.InputValidationError{PatternID: patternID, Err: err}
		}
	}

	run := &patternRun{
		orch:   o,
		spec:   spec,
		scope:  NewRunScope(req, o.shared),
		state:  domain.NewExecutionState(inputs),
		tracer: NewExecutionTracer(patternID, req),
	}
	started := time.Now()
	o.emitPatternStart(ctx, spec.ID, req.RequestID)

	outputs, runErr := run.execute(ctx)

	trace := run.tracer.Trace()
	o.emitPatternEnd(ctx, spec.ID, req.RequestID, runErr, time.Since(started))
	if o.sink != nil {
		// The sink sees the trace even when the caller already gave up.
		o.sink.Emit(context.WithoutCancel(ctx), trace)
	}

	result := &domain.RunResult{Outputs: outputs, Trace: trace}
	if runErr != nil {
		o.logger.Warn("pattern run failed",
			"pattern", spec.ID, "request_id", req.RequestID, "err", runErr)
		return result, runErr
	}
	return result, nil
}

// patternRun is the per-request execution context.
type patternRun struct {
	orch   *PatternOrchestrator
	spec   *domain.PatternSpec
	scope  *RunScope
	state  *domain.ExecutionState
	tracer *ExecutionTracer

	// committed are successful steps that declared a compensation handler,
	// in execution order.
	committed []compensation
}

type compensation struct {
	stepIndex  int
	capability string
	args       map[string]any
	result     any
}

func (r *patternRun) execute(ctx context.Context) (map[string]any, error) {
	for i, step := range r.spec.Steps {
		var err error
		if step.IsGroup() {
			err = r.runGroup(ctx, i, step.Group)
		} else {
			err = r.runSequential(ctx, i, step)
		}
		if err != nil {
			r.unwind(ctx)
			return nil, &domain.PatternExecutionError{
				PatternID: r.spec.ID,
				StepIndex: i,
				Err:       err,
				Trace:     r.tracer.Trace(),
			}
		}
	}

	outputs, err := r.state.Project(r.spec.Outputs)
	if err != nil {
		return nil, err
	}
	return outputs, nil
}

func (r *patternRun) runSequential(ctx context.Context, idx int, step domain.Step) error {
	out := r.runCall(ctx, idx, step, r.state.Snapshot())
	if out.err != nil {
		if step.NonFatal {
			return nil
		}
		return out.err
	}
	if out.skipped || step.As == "" {
		return nil
	}
	return r.state.Bind(step.As, out.value)
}

// runGroup fans the members out, joins them all (or cancels on first
// failure under fail_fast), and binds results only after the join.
// Members resolve against the pre-group snapshot, so they never observe
// each other.
func (r *patternRun) runGroup(ctx context.Context, idx int, group *domain.Group) error {
	pre := r.state.Snapshot()
	outcomes := make([]stepOutcome, len(group.Steps))

	g := new(errgroup.Group)
	gctx := ctx
	var cancel context.CancelFunc
	if group.EffectivePolicy() == domain.GroupFailFast {
		gctx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	for j, member := range group.Steps {
		g.Go(func() error {
			outcomes[j] = r.runCall(gctx, idx, member, pre)
			if outcomes[j].err != nil && !member.NonFatal && cancel != nil {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	// Bind successes in declaration order before reporting any failure, so
	// the trace and state reflect everything that actually committed.
	var firstErr error
	for j, member := range group.Steps {
		out := outcomes[j]
		if out.err != nil {
			if !member.NonFatal && firstErr == nil {
				firstErr = out.err
			}
			continue
		}
		if out.skipped || member.As == "" {
			continue
		}
		if err := r.state.Bind(member.As, out.value); err != nil {
			return err
		}
	}
	return firstErr
}

type stepOutcome struct {
	value   any
	skipped bool
	err     error
}

// runCall executes one capability step against a fixed view of the state,
// recording exactly one trace entry for it.
func (r *patternRun) runCall(ctx context.Context, idx int, step domain.Step, view map[string]any) stepOutcome {
	rec := domain.StepRecord{
		StepIndex:  idx,
		Capability: step.Capability,
		Binding:    step.As,
	}

	if step.Condition != "" {
		pass, err := template.EvalCondition(step.Condition, view)
		if err != nil {
			rec.Status = domain.StepError
			rec.Error = err.Error()
			r.tracer.Record(rec)
			return stepOutcome{err: &domain.StepArgumentError{StepIndex: idx, Capability: step.Capability, Err: err}}
		}
		if !pass {
			rec.Status = domain.StepSkipped
			r.tracer.Record(rec)
			return stepOutcome{skipped: true}
		}
	}

	args, err := template.ResolveArgs(step.Args, view)
	if err != nil {
		rec.Status = domain.StepError
		rec.Error = err.Error()
		r.tracer.Record(rec)
		return stepOutcome{err: &domain.StepArgumentError{StepIndex: idx, Capability: step.Capability, Err: err}}
	}
	rec.ResolvedArgs = args

	timeout := r.stepTimeout(step)
	attempts := 1
	if step.Retries > 0 {
		// Retries are honored only for capabilities the owning manifest
		// declares idempotent. Blanket retries on mutating capabilities
		// are rejected as unsafe.
		if manifest, err := r.orch.runtime.Manifest(ctx, r.scope, step.Capability); err == nil && manifest.Idempotent {
			attempts = step.Retries + 1
		}
	}

	r.orch.emitStepStart(ctx, r.spec.ID, r.scope.Request.RequestID, idx, step.Capability)
	started := time.Now()

	var res ExecResult
	var callErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 && step.Backoff > 0 {
			select {
			case <-ctx.Done():
				callErr = ctx.Err()
			case <-time.After(step.Backoff):
			}
			if callErr != nil {
				break
			}
		}

		res, callErr = r.invokeOnce(ctx, step.Capability, args, timeout)
		if callErr == nil || ctx.Err() != nil {
			break
		}
	}

	rec.DurationMS = time.Since(started).Milliseconds()
	rec.RoutedAgent = res.Agent

	if callErr != nil {
		rec.Status = domain.StepError
		var timeoutErr *domain.TimeoutError
		if errors.As(callErr, &timeoutErr) {
			rec.Status = domain.StepTimeout
		}
		rec.Error = callErr.Error()
		r.tracer.Record(rec)
		r.orch.emitStepEnd(ctx, r.spec.ID, r.scope.Request.RequestID, rec)
		return stepOutcome{err: callErr}
	}

	rec.Status = domain.StepSuccess
	r.tracer.Record(rec)
	r.orch.emitStepEnd(ctx, r.spec.ID, r.scope.Request.RequestID, rec)

	if step.Compensate != "" {
		r.pushCompensation(compensation{
			stepIndex:  idx,
			capability: step.Compensate,
			args:       args,
			result:     res.Value,
		})
	}
	return stepOutcome{value: res.Value}
}

// invokeOnce runs a single bounded invocation attempt. A deadline raised by
// the step timeout (rather than the caller) is reported as a TimeoutError.
func (r *patternRun) invokeOnce(ctx context.Context, capability string, args map[string]any, timeout time.Duration) (ExecResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := r.orch.runtime.Execute(callCtx, r.scope, capability, args)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return res, &domain.TimeoutError{Capability: capability, Timeout: timeout}
	}
	return res, err
}

func (r *patternRun) stepTimeout(step domain.Step) time.Duration {
	if step.Timeout > 0 {
		return step.Timeout
	}
	if r.spec.Timeout > 0 {
		return r.spec.Timeout
	}
	return r.orch.defaultStepTimeout
}

func (r *patternRun) pushCompensation(c compensation) {
	r.committed = append(r.committed, c)
}

// unwind invokes the compensation handlers of committed steps in reverse
// order. It is best effort: failures are logged and recorded, never raised,
// and it runs even when the original context is already cancelled.
func (r *patternRun) unwind(ctx context.Context) {
	if len(r.committed) == 0 {
		return
	}
	base := context.WithoutCancel(ctx)

	for i := len(r.committed) - 1; i >= 0; i-- {
		c := r.committed[i]
		args := map[string]any{"step_result": c.result}
		for k, v := range c.args {
			args[k] = v
		}

		callCtx, cancel := context.WithTimeout(base, r.orch.defaultStepTimeout)
		_, err := r.orch.runtime.Execute(callCtx, r.scope, c.capability, args)
		cancel()

		rec := domain.StepRecord{
			StepIndex:  c.stepIndex,
			Capability: c.capability,
			Status:     domain.StepCompensated,
		}
		if err != nil {
			rec.Error = err.Error()
			r.orch.logger.Error("compensation failed",
				"pattern", r.spec.ID, "capability", c.capability, "err", err)
		}
		r.tracer.Record(rec)
	}
}

func (o *PatternOrchestrator) emitPatternStart(ctx context.Context, patternID, requestID string) {
	if o.hooks.OnPatternStart == nil {
		return
	}
	o.hooks.OnPatternStart(ctx, &domain.PatternEvent{
		EventBase: domain.EventBase{
			Timestamp: time.Now().UTC(),
			Type:      domain.EventPatternStart,
			PatternID: patternID,
			RequestID: requestID,
		},
	})
}

func (o *PatternOrchestrator) emitPatternEnd(ctx context.Context, patternID, requestID string, runErr error, d time.Duration) {
	if o.hooks.OnPatternEnd == nil {
		return
	}
	status := domain.StepSuccess
	if runErr != nil {
		status = domain.StepError
	}
	o.hooks.OnPatternEnd(ctx, &domain.PatternEvent{
		EventBase: domain.EventBase{
			Timestamp: time.Now().UTC(),
			Type:      domain.EventPatternEnd,
			PatternID: patternID,
			RequestID: requestID,
		},
		Status:   status,
		Duration: d,
	})
}

func (o *PatternOrchestrator) emitStepStart(ctx context.Context, patternID, requestID string, idx int, capability string) {
	if o.hooks.OnStepStart == nil {
		return
	}
	o.hooks.OnStepStart(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{
			Timestamp: time.Now().UTC(),
			Type:      domain.EventStepStart,
			PatternID: patternID,
			RequestID: requestID,
		},
		StepIndex:  idx,
		Capability: capability,
	})
}

func (o *PatternOrchestrator) emitStepEnd(ctx context.Context, patternID, requestID string, rec domain.StepRecord) {
	if o.hooks.OnStepEnd == nil {
		return
	}
	o.hooks.OnStepEnd(ctx, &domain.StepEvent{
		EventBase: domain.EventBase{
			Timestamp: time.Now().UTC(),
			Type:      domain.EventStepEnd,
			PatternID: patternID,
			RequestID: requestID,
		},
		StepIndex:   rec.StepIndex,
		Capability:  rec.Capability,
		RoutedAgent: rec.RoutedAgent,
		Status:      rec.Status,
		Duration:    time.Duration(rec.DurationMS) * time.Millisecond,
		Error:       rec.Error,
	})
}
