package entitlement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photox_backend/pkg/entitlement"
)

func TestNewCatalogValidation(t *testing.T) {
	t.Run("rejects empty catalog", func(t *testing.T) {
		_, err := entitlement.NewCatalog(nil)
		require.Error(t, err)
	})

	t.Run("rejects paid plan in first position", func(t *testing.T) {
		_, err := entitlement.NewCatalog([]entitlement.Plan{
			{ID: "pro", Name: "Pro", PriceCents: 1000, MonthlyLimit: 25},
		})
		require.Error(t, err)
	})

	t.Run("rejects duplicate plan ids", func(t *testing.T) {
		_, err := entitlement.NewCatalog([]entitlement.Plan{
			{ID: "free", Name: "Free", PriceCents: 0, MonthlyLimit: 5},
			{ID: "free", Name: "Free Again", PriceCents: 1000, MonthlyLimit: 25},
		})
		require.Error(t, err)
	})

	t.Run("rejects non-positive limits", func(t *testing.T) {
		_, err := entitlement.NewCatalog([]entitlement.Plan{
			{ID: "free", Name: "Free", PriceCents: 0, MonthlyLimit: 0},
		})
		require.Error(t, err)
	})

	t.Run("rejects a second free plan", func(t *testing.T) {
		_, err := entitlement.NewCatalog([]entitlement.Plan{
			{ID: "free", Name: "Free", PriceCents: 0, MonthlyLimit: 5},
			{ID: "free2", Name: "Also Free", PriceCents: 0, MonthlyLimit: 10},
		})
		require.Error(t, err)
	})
}

func TestDefaultCatalog(t *testing.T) {
	catalog := entitlement.DefaultCatalog()

	free := catalog.Default()
	assert.Equal(t, "free", free.ID)
	assert.True(t, free.Free())
	assert.Equal(t, 5, free.MonthlyLimit)

	pro, ok := catalog.FindByID("pro")
	require.True(t, ok)
	assert.Equal(t, int64(1000), pro.PriceCents)
	assert.Equal(t, 25, pro.MonthlyLimit)

	proPlus, ok := catalog.FindByName("Pro Plus")
	require.True(t, ok)
	assert.Equal(t, int64(5000), proPlus.PriceCents)
	assert.Equal(t, 500, proPlus.MonthlyLimit)
}

func TestResolveTierFromAmount(t *testing.T) {
	catalog := entitlement.DefaultCatalog()

	tests := []struct {
		name   string
		amount int64
		planID string
	}{
		{"pro amount", 1000, "pro"},
		{"pro plus amount", 5000, "pro_plus"},
		{"unknown amount degrades to free", 999, "free"},
		{"zero amount degrades to free", 0, "free"},
		{"near miss is not rounded", 1001, "free"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.planID, catalog.ResolveTierFromAmount(tt.amount).ID)
		})
	}
}

func TestResolveTierFromName(t *testing.T) {
	catalog := entitlement.DefaultCatalog()

	assert.Equal(t, "pro", catalog.ResolveTierFromName("Pro").ID)
	assert.Equal(t, "pro_plus", catalog.ResolveTierFromName("Pro Plus").ID)
	assert.Equal(t, "free", catalog.ResolveTierFromName("pro").ID, "match is case sensitive")
	assert.Equal(t, "free", catalog.ResolveTierFromName("Enterprise").ID)
}

func TestFindByStripePriceID(t *testing.T) {
	catalog := entitlement.DefaultCatalog()

	pro, ok := catalog.FindByStripePriceID("price_1Rdi4uFA8pQOwelxe6JHX3a5")
	require.True(t, ok)
	assert.Equal(t, "pro", pro.ID)

	_, ok = catalog.FindByStripePriceID("price_unknown")
	assert.False(t, ok)

	_, ok = catalog.FindByStripePriceID("")
	assert.False(t, ok)
}

func TestPlanForFallsBackToDefault(t *testing.T) {
	catalog := entitlement.DefaultCatalog()

	assert.Equal(t, "pro", catalog.PlanFor("pro").ID)
	assert.Equal(t, "free", catalog.PlanFor("enterprise").ID)
	assert.Equal(t, "free", catalog.PlanFor("").ID)
}

func TestPlansReturnsCopy(t *testing.T) {
	catalog := entitlement.DefaultCatalog()

	plans := catalog.Plans()
	plans[0].MonthlyLimit = 9999

	assert.Equal(t, 5, catalog.Default().MonthlyLimit)
}
