package evaluator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slotwise/slotwise/services/entitlements-service/internal/metrics"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/model"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/plans"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is the read side the evaluator depends on.
type Store interface {
	LatestPayment(ctx context.Context, userID string) (*model.PaymentRecord, error)
	LatestSubscription(ctx context.Context, userID string) (*model.SubscriptionRecord, error)
	CountBusinesses(ctx context.Context, ownerID string) (int, error)
	OwnedBusinessIDs(ctx context.Context, ownerID string) ([]string, error)
	CountAppointments(ctx context.Context, businessIDs []string, from, to time.Time, excludeStatus string) (int, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

const (
	StagePayment      = "payment"
	StageSubscription = "subscription"
	StageBusinesses   = "businesses"
	StageAppointments = "appointments"

	cancelledStatus = "cancelled"
)

var ErrMissingUser = errors.New("user id is required")

// FetchError marks a snapshot that is restricted because a read failed,
// not because the plan says so.
type FetchError struct {
	Stage string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("plan limits: fetch %s: %v", e.Stage, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type Evaluator struct {
	store   Store
	logger  *slog.Logger
	clock   Clock
	loc     *time.Location
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Evaluator)

func WithClock(c Clock) Option {
	return func(e *Evaluator) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLocation sets the time zone the calendar month is computed in.
func WithLocation(loc *time.Location) Option {
	return func(e *Evaluator) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

func New(store Store, logger *slog.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Evaluator{
		store:  store,
		logger: logger,
		clock:  systemClock{},
		loc:    time.UTC,
		tracer: otel.Tracer("entitlements"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate computes the user's current plan limits. When any read fails the
// restricted snapshot is returned together with a *FetchError.
func (e *Evaluator) Evaluate(ctx context.Context, userID string) (model.PlanLimits, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.Restricted(), ErrMissingUser
	}

	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "entitlements.evaluate",
		trace.WithAttributes(attribute.String("enduser.id", userID)),
	)
	defer span.End()

	limits, res, err := e.evaluate(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		stage := ""
		var fe *FetchError
		if errors.As(err, &fe) {
			stage = fe.Stage
		}
		e.logger.Warn("plan limits evaluation failed", "user_id", userID, "stage", stage, "err", err)
		e.metrics.ObserveEvaluation("none", "error", time.Since(started))
		return model.Restricted(), err
	}

	span.SetAttributes(
		attribute.String("entitlements.source", string(res.Source)),
		attribute.String("entitlements.plan", string(res.Plan)),
		attribute.Bool("entitlements.expired", res.Expired),
	)
	if !res.Plan.Known() {
		e.logger.Info("unrecognized plan name, restricting", "user_id", userID, "source", res.Source)
	}
	e.metrics.ObserveEvaluation(string(res.Source), "ok", time.Since(started))
	return limits, nil
}

func (e *Evaluator) evaluate(ctx context.Context, userID string) (model.PlanLimits, Resolution, error) {
	now := e.clock.Now()

	res, err := e.Resolve(ctx, userID, now)
	if err != nil {
		return model.PlanLimits{}, Resolution{}, err
	}

	businesses, err := e.store.CountBusinesses(ctx, userID)
	if err != nil {
		return model.PlanLimits{}, res, &FetchError{Stage: StageBusinesses, Err: err}
	}

	used, err := e.appointmentsThisMonth(ctx, userID, now)
	if err != nil {
		return model.PlanLimits{}, res, err
	}

	return model.Derive(plans.LimitsFor(res.Plan), res.Expired, used, businesses), res, nil
}

func (e *Evaluator) appointmentsThisMonth(ctx context.Context, userID string, now time.Time) (int, error) {
	ids, err := e.store.OwnedBusinessIDs(ctx, userID)
	if err != nil {
		return 0, &FetchError{Stage: StageAppointments, Err: err}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	from, to := MonthWindow(now, e.loc)
	n, err := e.store.CountAppointments(ctx, ids, from, to, cancelledStatus)
	if err != nil {
		return 0, &FetchError{Stage: StageAppointments, Err: err}
	}
	return n, nil
}

// MonthWindow returns the first and last instant of the calendar month
// containing now, in loc. Both bounds are inclusive.
func MonthWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}
