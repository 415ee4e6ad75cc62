package entitlement_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photox_backend/pkg/entitlement"
)

func newTestStore(t *testing.T) (*entitlement.Store, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return entitlement.NewStore(repo, entitlement.DefaultCatalog()), repo
}

func TestEnsureRecord(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t)

	rec, err := store.EnsureRecord(ctx, "user_1", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "free", rec.PlanID)
	assert.Equal(t, entitlement.StatusFree, rec.Status)
	assert.Equal(t, 0, rec.UsageCount)

	// Second authentication returns the same record instead of resetting it.
	repo.seed(entitlement.Record{UserID: "user_1", Email: "ada@example.com", PlanID: "pro", Status: entitlement.StatusActive, UsageCount: 7})
	rec, err = store.EnsureRecord(ctx, "user_1", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "pro", rec.PlanID)
	assert.Equal(t, 7, rec.UsageCount)
}

func TestEnsureRecordRequiresPrincipal(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.EnsureRecord(ctx, "", "ada@example.com")
	assert.ErrorIs(t, err, entitlement.ErrAuthenticationRequired)

	_, err = store.EnsureRecord(ctx, "user_1", "")
	assert.ErrorIs(t, err, entitlement.ErrAuthenticationRequired)
}

func TestCanConsumeAndRemaining(t *testing.T) {
	store, _ := newTestStore(t)

	tests := []struct {
		name       string
		rec        entitlement.Record
		canConsume bool
		remaining  int
	}{
		{"fresh free user", entitlement.Record{PlanID: "free"}, true, 5},
		{"free user at limit", entitlement.Record{PlanID: "free", UsageCount: 5}, false, 0},
		{"free user over limit", entitlement.Record{PlanID: "free", UsageCount: 8}, false, 0},
		{"pro user mid cycle", entitlement.Record{PlanID: "pro", UsageCount: 24}, true, 1},
		{"pro user at limit", entitlement.Record{PlanID: "pro", UsageCount: 25}, false, 0},
		{"unknown plan treated as free", entitlement.Record{PlanID: "legacy", UsageCount: 4}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.rec
			assert.Equal(t, tt.canConsume, store.CanConsume(&rec))
			assert.Equal(t, tt.remaining, store.Remaining(&rec))
		})
	}
}

func TestTryConsume(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t)
	repo.seed(entitlement.Record{UserID: "user_1", Email: "ada@example.com", PlanID: "free", Status: entitlement.StatusFree})

	for i := 1; i <= 5; i++ {
		rec, err := store.TryConsume(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, i, rec.UsageCount)
	}

	_, err := store.TryConsume(ctx, "user_1")
	assert.ErrorIs(t, err, entitlement.ErrQuotaExceeded)

	// The failed attempt must not have moved the counter.
	rec, err := store.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 5, rec.UsageCount)
}

func TestTryConsumeUnknownUser(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.TryConsume(ctx, "user_ghost")
	assert.ErrorIs(t, err, entitlement.ErrRecordNotFound)

	_, err = store.TryConsume(ctx, "")
	assert.ErrorIs(t, err, entitlement.ErrAuthenticationRequired)
}

func TestTryConsumeConcurrent(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t)
	repo.seed(entitlement.Record{UserID: "user_1", Email: "ada@example.com", PlanID: "pro", Status: entitlement.StatusActive})

	const attempts = 100
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.TryConsume(ctx, "user_1"); err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 25, granted)
	rec, err := store.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 25, rec.UsageCount)
}

func TestRecordUsageIsUnconditional(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t)
	repo.seed(entitlement.Record{UserID: "user_1", Email: "ada@example.com", PlanID: "free", UsageCount: 5})

	// Already at the limit: the unit still gets accounted.
	rec, err := store.RecordUsage(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 6, rec.UsageCount)
	assert.False(t, store.CanConsume(rec))
}

func TestRecordUsagePersistenceFailure(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t)
	repo.seed(entitlement.Record{UserID: "user_1", Email: "ada@example.com", PlanID: "free"})
	repo.incrementErr = errors.New("connection reset")

	_, err := store.RecordUsage(ctx, "user_1")
	assert.ErrorIs(t, err, entitlement.ErrUsageNotRecorded)
}

func TestRecordUsageUnknownUser(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)

	_, err := store.RecordUsage(ctx, "user_ghost")
	assert.ErrorIs(t, err, entitlement.ErrRecordNotFound)
	assert.NotErrorIs(t, err, entitlement.ErrUsageNotRecorded)
}

func TestReleaseUsageClampsAtZero(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t)
	repo.seed(entitlement.Record{UserID: "user_1", Email: "ada@example.com", PlanID: "free", UsageCount: 1})

	require.NoError(t, store.ReleaseUsage(ctx, "user_1"))
	require.NoError(t, store.ReleaseUsage(ctx, "user_1"))

	rec, err := store.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.UsageCount)
}

func TestResetCycle(t *testing.T) {
	ctx := context.Background()
	store, repo := newTestStore(t)
	repo.seed(entitlement.Record{UserID: "user_1", Email: "ada@example.com", PlanID: "pro", Status: entitlement.StatusActive, UsageCount: 25})

	require.NoError(t, store.ResetCycle(ctx, "user_1"))

	rec, err := store.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.UsageCount)
	assert.Equal(t, "pro", rec.PlanID)
	assert.True(t, store.CanConsume(rec))
}
