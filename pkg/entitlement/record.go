package entitlement

import (
	"context"
	"time"
)

// Status is the subscription lifecycle status of a record.
type Status string

const (
	StatusFree      Status = "free"
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusPastDue   Status = "past_due"
)

// Record is one user's entitlement state: current plan, usage counter and
// subscription lifecycle status. UserID is the identity provider subject;
// Email is the secondary key used when reconciling against Stripe, which
// indexes customers by email.
type Record struct {
	UserID               string
	Email                string
	PlanID               string
	Status               Status
	UsageCount           int
	CycleEnd             *time.Time
	StripeSubscriptionID string
	UpdatedAt            time.Time
}

// Repository is the persistence contract for subscription records.
// Implementations must support both lookup keys: user triggers only carry
// the user id, billing triggers only carry the email.
type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*Record, error)
	GetByEmail(ctx context.Context, email string) (*Record, error)

	// Upsert creates or replaces the record's plan, status, cycle and
	// subscription reference, keyed by email. It must never write
	// UsageCount for an existing row: reconciliation does not reset usage.
	Upsert(ctx context.Context, rec *Record) (*Record, error)

	// IncrementUsage unconditionally adds one to the usage counter and
	// returns the updated record.
	IncrementUsage(ctx context.Context, userID string) (*Record, error)

	// IncrementUsageBelow adds one to the usage counter only while it is
	// below limit, as a single conditional update. It returns false when
	// the condition did not hold.
	IncrementUsageBelow(ctx context.Context, userID string, limit int) (bool, *Record, error)

	// DecrementUsage subtracts one from the usage counter, clamped at zero.
	// Used to hand back a unit reserved for a generation that failed.
	DecrementUsage(ctx context.Context, userID string) error

	// ResetUsage sets the usage counter back to zero.
	ResetUsage(ctx context.Context, userID string) error
}
