package authz

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"taxgate/internal/authz/metrics"
	dErrors "taxgate/pkg/domain-errors"
	"taxgate/pkg/platform/audit"
	"taxgate/pkg/requestcontext"
)

// Operation is the already-validated business logic the Enforcer wraps. It
// runs only after an Allow verdict.
type Operation func(ctx context.Context) (any, error)

// Enforcer is the single enforcement point: every mutating endpoint and every
// sensitive read goes through Enforce. No business operation performs its own
// role check.
//
// Per-request state machine:
//
//	Resolving -> Deciding -> { Denied | Executing -> { Succeeded | Failed } }
//
// Resolution failures terminate before Deciding and, by default, leave no
// audit record (transport-layer rejection, not a policy decision); the
// WithAuthFailureAuditing option hardens this by emitting a lightweight
// rejected-authentication record. Every request that reaches Deciding
// produces exactly one decision record, and every one that reaches Executing
// produces exactly one more with the terminal outcome, including on panic.
type Enforcer struct {
	resolver *Resolver
	engine   *Engine
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	auditAuthFailures bool
}

// EnforcerOption configures an Enforcer.
type EnforcerOption func(*Enforcer)

// WithEnforcerLogger sets the logger. Defaults to slog.Default.
func WithEnforcerLogger(logger *slog.Logger) EnforcerOption {
	return func(e *Enforcer) { e.logger = logger }
}

// WithEnforcerMetrics attaches authorization metrics.
func WithEnforcerMetrics(m *metrics.Metrics) EnforcerOption {
	return func(e *Enforcer) { e.metrics = m }
}

// WithAuthFailureAuditing emits a lightweight audit record for rejected
// authentication attempts. Off by default; without it brute-force attempts
// are visible only in the security log.
func WithAuthFailureAuditing() EnforcerOption {
	return func(e *Enforcer) { e.auditAuthFailures = true }
}

func NewEnforcer(resolver *Resolver, engine *Engine, recorder *audit.Recorder, opts ...EnforcerOption) *Enforcer {
	e := &Enforcer{
		resolver: resolver,
		engine:   engine,
		recorder: recorder,
		logger:   slog.Default(),
		tracer:   otel.Tracer("taxgate/authz"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enforce resolves the principal, consults the policy engine, runs op only on
// Allow, and audits every path. It returns op's result, one of the terminal
// errors (unauthorized, account_disabled, forbidden), or op's own failure
// after its audit record is written.
func (e *Enforcer) Enforce(ctx context.Context, rawToken string, action Action, res Resource, op Operation) (any, error) {
	ctx, span := e.tracer.Start(ctx, "authz.enforce", trace.WithAttributes(
		attribute.String("authz.action", string(action)),
		attribute.String("authz.resource_type", string(res.Type)),
	))
	defer span.End()

	// Resolving.
	principal, err := e.resolver.Resolve(ctx, rawToken)
	if err != nil {
		span.SetAttributes(attribute.String("authz.outcome", "rejected"))
		e.rejectAuthentication(ctx, action, res, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("authz.role", string(principal.Role)))

	// Deciding.
	decision := e.engine.Decide(principal, action, res)
	if !decision.Allowed {
		span.SetAttributes(attribute.String("authz.outcome", "denied"))
		if e.metrics != nil {
			e.metrics.IncDecision("denied", string(res.Type), string(action))
		}
		e.recorder.Record(ctx, e.newRecord(principal, action, res, audit.OutcomeDenied, decision.Reason))
		e.logger.WarnContext(ctx, "authorization denied",
			"request_id", requestcontext.RequestID(ctx),
			"principal_id", principal.UserID.String(),
			"role", string(principal.Role),
			"action", string(action),
			"resource_type", string(res.Type),
			"resource_id", res.ID,
			"reason", decision.Reason,
			"log_type", "audit",
		)
		return nil, dErrors.New(dErrors.CodeForbidden, decision.Reason)
	}

	if e.metrics != nil {
		e.metrics.IncDecision("allowed", string(res.Type), string(action))
	}
	e.recorder.Record(ctx, e.newRecord(principal, action, res, audit.OutcomeAllowed, ""))

	// Executing.
	result, err := e.execute(ctx, principal, action, res, op)
	if err != nil {
		span.SetAttributes(attribute.String("authz.outcome", "failed"))
		return nil, err
	}
	span.SetAttributes(attribute.String("authz.outcome", "succeeded"))
	return result, nil
}

// ResolvePrincipal exposes principal resolution for handlers that need the
// caller's identity to shape the request, e.g. "me" endpoints. It makes no
// policy decision and emits no audit record; callers still go through Enforce
// for the actual operation.
func (e *Enforcer) ResolvePrincipal(ctx context.Context, rawToken string) (Principal, error) {
	return e.resolver.Resolve(ctx, rawToken)
}

// execute runs op with a guaranteed terminal audit record: the deferred
// emission covers normal returns, error returns, and panics, so no exit path
// from Executing skips recording. Panics are captured, audited as a failure
// with category "panic", and surfaced as a redacted internal error.
func (e *Enforcer) execute(ctx context.Context, principal Principal, action Action, res Resource, op Operation) (result any, err error) {
	defer func() {
		category := ""
		outcome := audit.OutcomeSucceeded
		if rec := recover(); rec != nil {
			outcome = audit.OutcomeFailed
			category = "panic"
			e.logger.ErrorContext(ctx, "wrapped operation panicked",
				"request_id", requestcontext.RequestID(ctx),
				"action", string(action),
				"resource_type", string(res.Type),
				"panic", rec,
			)
			err = dErrors.New(dErrors.CodeInternal, "operation failed")
		} else if err != nil {
			outcome = audit.OutcomeFailed
			// Category only: the business error's detail stays out of the
			// audit trail.
			category = string(dErrors.CodeOf(err))
		}
		if e.metrics != nil {
			e.metrics.IncOperation(string(outcome), string(res.Type), string(action))
		}
		e.recorder.Record(ctx, e.newRecord(principal, action, res, outcome, category))
	}()

	result, err = op(ctx)
	return result, err
}

// rejectAuthentication handles the terminal Unauthenticated/AccountDisabled
// path: always logged, audited only when the hardening option is on.
func (e *Enforcer) rejectAuthentication(ctx context.Context, action Action, res Resource, cause error) {
	if e.metrics != nil {
		e.metrics.IncAuthRejected()
	}
	e.logger.WarnContext(ctx, "authentication rejected",
		"request_id", requestcontext.RequestID(ctx),
		"client_ip", requestcontext.ClientIP(ctx),
		"action", string(action),
		"resource_type", string(res.Type),
		"error", cause,
		"log_type", "security",
	)
	if !e.auditAuthFailures {
		return
	}
	e.recorder.Record(ctx, audit.Record{
		Action:       string(action),
		ResourceType: string(res.Type),
		ResourceID:   res.ID,
		OrgID:        res.OrgID,
		Outcome:      audit.OutcomeRejected,
		Reason:       string(dErrors.CodeOf(cause)),
	})
}

func (e *Enforcer) newRecord(principal Principal, action Action, res Resource, outcome audit.Outcome, reason string) audit.Record {
	return audit.Record{
		PrincipalID:  principal.UserID,
		Role:         string(principal.Role),
		Action:       string(action),
		ResourceType: string(res.Type),
		ResourceID:   res.ID,
		OrgID:        res.OrgID,
		Outcome:      outcome,
		Reason:       reason,
	}
}

// Enforce is the typed convenience wrapper around Enforcer.Enforce for
// operations with a concrete result type.
func Enforce[T any](ctx context.Context, e *Enforcer, rawToken string, action Action, res Resource, op func(ctx context.Context) (T, error)) (T, error) {
	result, err := e.Enforce(ctx, rawToken, action, res, func(ctx context.Context) (any, error) {
		return op(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, dErrors.New(dErrors.CodeInternal, "unexpected operation result type")
	}
	return typed, nil
}
