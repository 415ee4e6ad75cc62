package entitlement

import (
	"context"
	"errors"
	"fmt"
)

// Store is the single source of truth for "can this user perform one more
// billable generation right now". It is the only component that mutates the
// usage counter.
type Store struct {
	repo    Repository
	catalog *Catalog
}

func NewStore(repo Repository, catalog *Catalog) *Store {
	return &Store{repo: repo, catalog: catalog}
}

// Catalog exposes the plan catalog the store resolves against.
func (s *Store) Catalog() *Catalog {
	return s.catalog
}

// PlanFor resolves the record's plan, falling back to the free plan when
// the stored id is unknown.
func (s *Store) PlanFor(rec *Record) Plan {
	return s.catalog.PlanFor(rec.PlanID)
}

// CanConsume reports whether the record has quota left. Pure point-in-time
// check with no side effects; TryConsume is the racefree variant.
func (s *Store) CanConsume(rec *Record) bool {
	return rec.UsageCount < s.PlanFor(rec).MonthlyLimit
}

// Remaining returns how many generations are left in the current cycle,
// never negative.
func (s *Store) Remaining(rec *Record) int {
	left := s.PlanFor(rec).MonthlyLimit - rec.UsageCount
	if left < 0 {
		return 0
	}
	return left
}

// Get returns the record for a user id.
func (s *Store) Get(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}
	return s.repo.GetByUserID(ctx, userID)
}

// EnsureRecord returns the user's record, creating a free-plan one on first
// authentication.
func (s *Store) EnsureRecord(ctx context.Context, userID, email string) (*Record, error) {
	if userID == "" || email == "" {
		return nil, ErrAuthenticationRequired
	}
	rec, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrRecordNotFound) {
		return nil, err
	}
	free := s.catalog.Default()
	return s.repo.Upsert(ctx, &Record{
		UserID: userID,
		Email:  email,
		PlanID: free.ID,
		Status: StatusFree,
	})
}

// RecordUsage unconditionally increments the usage counter by one. It does
// not re-check CanConsume: once the generation call has succeeded and cost
// money the unit must be accounted, even if a race let it slip past the
// limit. A persistence failure is wrapped in ErrUsageNotRecorded so callers
// cannot mistake it for a benign miss.
func (s *Store) RecordUsage(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}
	rec, err := s.repo.IncrementUsage(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsageNotRecorded, err)
	}
	return rec, nil
}

// TryConsume atomically claims one unit of quota: a single conditional
// increment against the store, so two concurrent requests cannot both pass
// a stale check. Returns ErrQuotaExceeded when nothing is left.
func (s *Store) TryConsume(ctx context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrAuthenticationRequired
	}
	rec, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	limit := s.PlanFor(rec).MonthlyLimit
	ok, updated, err := s.repo.IncrementUsageBelow(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}
	return updated, nil
}

// ReleaseUsage hands back a unit claimed by TryConsume when the generation
// provider failed after the claim. Clamped at zero by the repository.
func (s *Store) ReleaseUsage(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrAuthenticationRequired
	}
	return s.repo.DecrementUsage(ctx, userID)
}

// ResetCycle zeroes the usage counter. Only the cycle-rollover scheduler
// calls this; reads never reset usage implicitly.
func (s *Store) ResetCycle(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrAuthenticationRequired
	}
	return s.repo.ResetUsage(ctx, userID)
}
