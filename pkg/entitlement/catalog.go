package entitlement

import "fmt"

// Plan is a statically defined subscription tier.
type Plan struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	PriceCents    int64  `json:"price_cents"`
	MonthlyLimit  int    `json:"monthly_limit"`
	StripePriceID string `json:"stripe_price_id,omitempty"`
}

// Free reports whether this is the zero-price plan.
func (p Plan) Free() bool {
	return p.PriceCents == 0
}

// Catalog is an ordered, immutable list of plans. The first entry must be
// the zero-price plan; fallback paths select it positionally.
type Catalog struct {
	plans []Plan
}

// NewCatalog validates the plan list and returns a catalog.
func NewCatalog(plans []Plan) (*Catalog, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one plan")
	}
	if plans[0].PriceCents != 0 {
		return nil, fmt.Errorf("first catalog plan must be the free plan, got %q with price %d", plans[0].ID, plans[0].PriceCents)
	}
	seen := make(map[string]bool, len(plans))
	freeCount := 0
	for _, p := range plans {
		if seen[p.ID] {
			return nil, fmt.Errorf("duplicate plan id %q", p.ID)
		}
		seen[p.ID] = true
		if p.MonthlyLimit <= 0 {
			return nil, fmt.Errorf("plan %q must have a positive monthly limit", p.ID)
		}
		if p.PriceCents == 0 {
			freeCount++
		}
	}
	if freeCount != 1 {
		return nil, fmt.Errorf("catalog must contain exactly one free plan, got %d", freeCount)
	}
	cp := make([]Plan, len(plans))
	copy(cp, plans)
	return &Catalog{plans: cp}, nil
}

// DefaultCatalog returns the production plan catalog.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Plan{
		{ID: "free", Name: "Free", PriceCents: 0, MonthlyLimit: 5},
		{ID: "pro", Name: "Pro", PriceCents: 1000, MonthlyLimit: 25, StripePriceID: "price_1Rdi4uFA8pQOwelxe6JHX3a5"},
		{ID: "pro_plus", Name: "Pro Plus", PriceCents: 5000, MonthlyLimit: 500, StripePriceID: "price_1Rdi7HFA8pQOwelxB2on1D0R"},
	})
	if err != nil {
		panic(err)
	}
	return c
}

// Plans returns a copy of the catalog in order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	copy(out, c.plans)
	return out
}

// Default returns the free fallback plan (always index 0).
func (c *Catalog) Default() Plan {
	return c.plans[0]
}

// FindByID returns the plan with the given id.
func (c *Catalog) FindByID(id string) (Plan, bool) {
	for _, p := range c.plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// FindByName matches the billing system's tier label against plan display
// names. The match is exact and case sensitive.
func (c *Catalog) FindByName(name string) (Plan, bool) {
	for _, p := range c.plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// FindByStripePriceID returns the plan bound to the given Stripe price.
func (c *Catalog) FindByStripePriceID(priceID string) (Plan, bool) {
	if priceID == "" {
		return Plan{}, false
	}
	for _, p := range c.plans {
		if p.StripePriceID == priceID {
			return p, true
		}
	}
	return Plan{}, false
}

// ResolveTierFromName maps the billing system's tier label to a plan by
// exact display name. Absent labels degrade to the free plan rather than
// erroring.
func (c *Catalog) ResolveTierFromName(name string) Plan {
	if p, ok := c.FindByName(name); ok {
		return p
	}
	return c.Default()
}

// PlanFor resolves a stored plan id, falling back to the default plan when
// the id is unknown.
func (c *Catalog) PlanFor(id string) Plan {
	if p, ok := c.FindByID(id); ok {
		return p
	}
	return c.Default()
}

// ResolveTierFromAmount maps a Stripe price amount in cents to a plan by
// exact equality against each paid plan's price. Unmatched amounts degrade
// to the free plan; callers that care log the degradation.
func (c *Catalog) ResolveTierFromAmount(amountCents int64) Plan {
	for _, p := range c.plans {
		if !p.Free() && p.PriceCents == amountCents {
			return p
		}
	}
	return c.Default()
}
