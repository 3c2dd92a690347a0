package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/slotwise/slotwise/services/entitlements-service/internal/model"
)

// Querier is the subset of pgxpool.Pool the repository needs.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads billing, business and booking rows. It never writes.
type Repository struct {
	q Querier
}

func NewRepository(q Querier) *Repository {
	return &Repository{q: q}
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// LatestPayment returns the user's most recent payment, or nil when there is none.
func (r *Repository) LatestPayment(ctx context.Context, userID string) (*model.PaymentRecord, error) {
	var p model.PaymentRecord
	var expiresAt *time.Time
	err := r.q.QueryRow(ctx, `
		SELECT id::text, user_id::text, plan_name, status, expires_at, created_at
		FROM payments
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&p.ID, &p.UserID, &p.PlanName, &p.Status, &expiresAt, &p.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	p.ExpiresAt = expiresAt
	return &p, nil
}

// LatestSubscription returns the user's most recent subscription, or nil when there is none.
func (r *Repository) LatestSubscription(ctx context.Context, userID string) (*model.SubscriptionRecord, error) {
	var s model.SubscriptionRecord
	var trialEndsAt *time.Time
	err := r.q.QueryRow(ctx, `
		SELECT id::text, user_id::text, plan_name, status, trial_ends_at, created_at
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, userID).Scan(&s.ID, &s.UserID, &s.PlanName, &s.Status, &trialEndsAt, &s.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	s.TrialEndsAt = trialEndsAt
	return &s, nil
}

func (r *Repository) CountBusinesses(ctx context.Context, ownerID string) (int, error) {
	var cnt int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM businesses
		WHERE owner_id = $1
	`, ownerID).Scan(&cnt)
	return cnt, err
}

func (r *Repository) OwnedBusinessIDs(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id::text
		FROM businesses
		WHERE owner_id = $1
		ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CountAppointments counts appointments of the given businesses starting within
// [from, to], both ends inclusive, skipping excludeStatus.
func (r *Repository) CountAppointments(ctx context.Context, businessIDs []string, from, to time.Time, excludeStatus string) (int, error) {
	if len(businessIDs) == 0 {
		return 0, nil
	}
	var cnt int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM appointments
		WHERE business_id = ANY($1::uuid[])
		  AND start_time >= $2
		  AND start_time <= $3
		  AND status <> $4
	`, businessIDs, from, to, excludeStatus).Scan(&cnt)
	return cnt, err
}
