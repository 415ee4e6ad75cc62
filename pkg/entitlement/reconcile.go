package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Customer is the billing system's view of a paying user.
type Customer struct {
	ID    string
	Email string
}

// BillingSubscription is the slice of a Stripe subscription the
// reconciliation protocol consumes.
type BillingSubscription struct {
	ID               string
	CustomerID       string
	Status           string
	PriceID          string
	CurrentPeriodEnd time.Time
}

// BillingClient is what reconciliation needs from Stripe. Implementations
// return (nil, nil) when a lookup finds nothing.
type BillingClient interface {
	CustomerByEmail(ctx context.Context, email string) (*Customer, error)
	// ActiveSubscription returns the first active subscription for the
	// customer ("list active, limit 1"); order is billing-system-assigned.
	ActiveSubscription(ctx context.Context, customerID string) (*BillingSubscription, error)
	PriceAmount(ctx context.Context, priceID string) (int64, error)
}

// EventType identifies a billing lifecycle push.
type EventType string

const (
	EventSubscriptionCreated EventType = "subscription.created"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventSubscriptionDeleted EventType = "subscription.deleted"
	EventPaymentSucceeded    EventType = "payment_succeeded"
	EventPaymentFailed       EventType = "payment_failed"
)

// Event is a normalized billing webhook notification.
type Event struct {
	Type             EventType
	SubscriptionID   string
	CustomerEmail    string
	UserIDHint       string // metadata.userId correlation hint, may be empty
	Status           string // stripe lifecycle status: active, past_due, canceled, incomplete_expired
	PriceAmount      int64
	CurrentPeriodEnd time.Time
}

// Reconciler brings local entitlement state into agreement with Stripe,
// either pulled at session start or pushed by webhook. It never touches the
// usage counter in either direction.
type Reconciler struct {
	repo    Repository
	catalog *Catalog
	billing BillingClient
}

func NewReconciler(repo Repository, catalog *Catalog, billing BillingClient) *Reconciler {
	return &Reconciler{repo: repo, catalog: catalog, billing: billing}
}

// SyncFromBilling pulls the billing system's view for the given principal
// and persists it. Usage is preserved across every transition; a failed or
// empty lookup never resets it.
func (r *Reconciler) SyncFromBilling(ctx context.Context, userID, email string) (*Record, error) {
	if email == "" {
		return nil, ErrAuthenticationRequired
	}

	cust, err := r.billing.CustomerByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: customer lookup: %v", ErrLookupFailed, err)
	}
	if cust == nil {
		return r.upsertFree(ctx, userID, email, "")
	}

	sub, err := r.billing.ActiveSubscription(ctx, cust.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: subscription lookup: %v", ErrLookupFailed, err)
	}
	if sub == nil {
		return r.upsertFree(ctx, userID, email, "")
	}

	amount, err := r.billing.PriceAmount(ctx, sub.PriceID)
	if err != nil {
		return nil, fmt.Errorf("%w: price lookup: %v", ErrLookupFailed, err)
	}
	plan := r.catalog.ResolveTierFromAmount(amount)
	if plan.Free() {
		log.Printf("No plan matches price amount %d for %s, degrading to %s", amount, email, plan.Name)
	}

	cycleEnd := sub.CurrentPeriodEnd
	return r.repo.Upsert(ctx, &Record{
		UserID:               userID,
		Email:                email,
		PlanID:               plan.ID,
		Status:               StatusActive,
		CycleEnd:             &cycleEnd,
		StripeSubscriptionID: sub.ID,
	})
}

func (r *Reconciler) upsertFree(ctx context.Context, userID, email, stripeSubID string) (*Record, error) {
	return r.repo.Upsert(ctx, &Record{
		UserID:               userID,
		Email:                email,
		PlanID:               r.catalog.Default().ID,
		Status:               StatusFree,
		StripeSubscriptionID: stripeSubID,
	})
}

// ApplyEvent applies a webhook push to the local record, keyed by customer
// email. past_due transitions and failed payments retain the previously
// stored plan so a paying user is not downgraded during a payment retry
// window; only the explicit subscription.deleted event forces the plan back
// to free.
func (r *Reconciler) ApplyEvent(ctx context.Context, ev Event) error {
	if ev.CustomerEmail == "" {
		return fmt.Errorf("%w: event %s has no customer email", ErrLookupFailed, ev.Type)
	}

	existing, err := r.repo.GetByEmail(ctx, ev.CustomerEmail)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}

	userID := ev.UserIDHint
	if existing != nil && existing.UserID != "" {
		userID = existing.UserID
	}

	rec := &Record{
		UserID:               userID,
		Email:                ev.CustomerEmail,
		PlanID:               r.catalog.Default().ID,
		Status:               StatusFree,
		StripeSubscriptionID: ev.SubscriptionID,
	}

	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventPaymentSucceeded:
		switch ev.Status {
		case "active":
			plan := r.catalog.ResolveTierFromAmount(ev.PriceAmount)
			if plan.Free() {
				log.Printf("No plan matches price amount %d for %s, degrading to %s", ev.PriceAmount, ev.CustomerEmail, plan.Name)
			}
			rec.PlanID = plan.ID
			rec.Status = StatusActive
			end := ev.CurrentPeriodEnd
			rec.CycleEnd = &end
		case "past_due":
			rec.Status = StatusPastDue
			r.retainPlan(rec, existing)
		case "canceled", "incomplete_expired":
			// Generic cancel: lifecycle status flips but the plan is only
			// downgraded by the explicit deletion event below.
			rec.Status = StatusCancelled
			r.retainPlan(rec, existing)
		default:
			log.Printf("Ignoring %s event with unhandled subscription status %q", ev.Type, ev.Status)
			return nil
		}

	case EventSubscriptionDeleted:
		rec.Status = StatusCancelled
		rec.PlanID = r.catalog.Default().ID
		rec.CycleEnd = nil

	case EventPaymentFailed:
		rec.Status = StatusPastDue
		r.retainPlan(rec, existing)

	default:
		log.Printf("Ignoring unhandled billing event type %q", ev.Type)
		return nil
	}

	if _, err := r.repo.Upsert(ctx, rec); err != nil {
		return err
	}
	return nil
}

// retainPlan carries the previously stored plan and cycle over so the
// quota survives until a later reconciliation explicitly downgrades it.
func (r *Reconciler) retainPlan(rec *Record, existing *Record) {
	if existing == nil {
		return
	}
	rec.PlanID = existing.PlanID
	rec.CycleEnd = existing.CycleEnd
}
