package model

import "time"

// PaymentRecord is a row owned by billing. Read-only here.
type PaymentRecord struct {
	ID        string
	UserID    string
	PlanName  string
	Status    string
	ExpiresAt *time.Time
	CreatedAt time.Time
}

type SubscriptionRecord struct {
	ID          string
	UserID      string
	PlanName    string
	Status      string
	TrialEndsAt *time.Time
	CreatedAt   time.Time
}
