package evaluator

import (
	"context"
	"strings"
	"time"

	"github.com/slotwise/slotwise/services/entitlements-service/internal/model"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/plans"
	"github.com/stripe/stripe-go/v79"
)

// Source says which record decided the plan.
type Source string

const (
	SourcePayment      Source = "payment"
	SourceSubscription Source = "subscription"
	SourceDefault      Source = "default"
)

// Resolution is the outcome of plan resolution.
type Resolution struct {
	Source  Source
	Plan    plans.Plan
	Expired bool
}

var paidStatuses = map[string]struct{}{
	string(stripe.CheckoutSessionPaymentStatusPaid): {},
	string(stripe.PaymentIntentStatusSucceeded):     {},
	"completed": {},
	"approved":  {},
}

func IsPaid(status string) bool {
	_, ok := paidStatuses[normalizeStatus(status)]
	return ok
}

func subscriptionUsable(status string) bool {
	switch normalizeStatus(status) {
	case "active", "trial":
		return true
	default:
		return false
	}
}

func normalizeStatus(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Resolve picks the user's plan. A paid payment wins outright and the
// subscription is only read when there is none; with neither the user is on free.
func (e *Evaluator) Resolve(ctx context.Context, userID string, now time.Time) (Resolution, error) {
	payment, err := e.store.LatestPayment(ctx, userID)
	if err != nil {
		return Resolution{}, &FetchError{Stage: StagePayment, Err: err}
	}
	if res, ok := fromPayment(payment, now); ok {
		return res, nil
	}

	sub, err := e.store.LatestSubscription(ctx, userID)
	if err != nil {
		return Resolution{}, &FetchError{Stage: StageSubscription, Err: err}
	}
	if res, ok := fromSubscription(sub, now); ok {
		return res, nil
	}

	return Resolution{Source: SourceDefault, Plan: plans.Free}, nil
}

func fromPayment(p *model.PaymentRecord, now time.Time) (Resolution, bool) {
	if p == nil || !IsPaid(p.Status) {
		return Resolution{}, false
	}
	return Resolution{
		Source:  SourcePayment,
		Plan:    plans.FromPaymentName(p.PlanName),
		Expired: p.ExpiresAt != nil && p.ExpiresAt.Before(now),
	}, true
}

func fromSubscription(s *model.SubscriptionRecord, now time.Time) (Resolution, bool) {
	if s == nil || !subscriptionUsable(s.Status) {
		return Resolution{}, false
	}
	return Resolution{
		Source:  SourceSubscription,
		Plan:    plans.FromSubscriptionName(s.PlanName),
		Expired: s.TrialEndsAt != nil && now.After(*s.TrialEndsAt),
	}, true
}
