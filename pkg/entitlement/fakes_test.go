package entitlement_test

import (
	"context"
	"errors"
	"sync"

	"photox_backend/pkg/entitlement"
)

// fakeRepo is an in-memory Repository with the same write semantics as the
// GORM implementation: rows keyed by email, conditional increments applied
// under a lock, Upsert never touching the usage counter of an existing row.
type fakeRepo struct {
	mu      sync.Mutex
	byEmail map[string]*entitlement.Record

	incrementErr error
	upsertErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byEmail: make(map[string]*entitlement.Record)}
}

func (f *fakeRepo) seed(rec entitlement.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := rec
	f.byEmail[rec.Email] = &cp
}

func (f *fakeRepo) findByUserID(userID string) *entitlement.Record {
	for _, rec := range f.byEmail {
		if rec.UserID == userID {
			return rec
		}
	}
	return nil
}

func (f *fakeRepo) GetByUserID(ctx context.Context, userID string) (*entitlement.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec := f.findByUserID(userID); rec != nil {
		cp := *rec
		return &cp, nil
	}
	return nil, entitlement.ErrRecordNotFound
}

func (f *fakeRepo) GetByEmail(ctx context.Context, email string) (*entitlement.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.byEmail[email]; ok {
		cp := *rec
		return &cp, nil
	}
	return nil, entitlement.ErrRecordNotFound
}

func (f *fakeRepo) Upsert(ctx context.Context, rec *entitlement.Record) (*entitlement.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	existing, ok := f.byEmail[rec.Email]
	cp := *rec
	if ok {
		cp.UsageCount = existing.UsageCount
		if cp.UserID == "" {
			cp.UserID = existing.UserID
		}
	}
	f.byEmail[rec.Email] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) IncrementUsage(ctx context.Context, userID string) (*entitlement.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return nil, f.incrementErr
	}
	rec := f.findByUserID(userID)
	if rec == nil {
		return nil, entitlement.ErrRecordNotFound
	}
	rec.UsageCount++
	cp := *rec
	return &cp, nil
}

func (f *fakeRepo) IncrementUsageBelow(ctx context.Context, userID string, limit int) (bool, *entitlement.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErr != nil {
		return false, nil, f.incrementErr
	}
	rec := f.findByUserID(userID)
	if rec == nil {
		return false, nil, entitlement.ErrRecordNotFound
	}
	if rec.UsageCount >= limit {
		return false, nil, nil
	}
	rec.UsageCount++
	cp := *rec
	return true, &cp, nil
}

func (f *fakeRepo) DecrementUsage(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.findByUserID(userID)
	if rec == nil {
		return entitlement.ErrRecordNotFound
	}
	if rec.UsageCount > 0 {
		rec.UsageCount--
	}
	return nil
}

func (f *fakeRepo) ResetUsage(ctx context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.findByUserID(userID)
	if rec == nil {
		return entitlement.ErrRecordNotFound
	}
	rec.UsageCount = 0
	return nil
}

var errBillingDown = errors.New("billing unavailable")

// fakeBilling serves canned Stripe lookups keyed by email, customer id and
// price id. Zero-valued fields behave like "not found".
type fakeBilling struct {
	customers map[string]*entitlement.Customer
	subs      map[string]*entitlement.BillingSubscription
	prices    map[string]int64

	customerErr error
	subErr      error
	priceErr    error
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{
		customers: make(map[string]*entitlement.Customer),
		subs:      make(map[string]*entitlement.BillingSubscription),
		prices:    make(map[string]int64),
	}
}

func (f *fakeBilling) CustomerByEmail(ctx context.Context, email string) (*entitlement.Customer, error) {
	if f.customerErr != nil {
		return nil, f.customerErr
	}
	return f.customers[email], nil
}

func (f *fakeBilling) ActiveSubscription(ctx context.Context, customerID string) (*entitlement.BillingSubscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.subs[customerID], nil
}

func (f *fakeBilling) PriceAmount(ctx context.Context, priceID string) (int64, error) {
	if f.priceErr != nil {
		return 0, f.priceErr
	}
	return f.prices[priceID], nil
}
