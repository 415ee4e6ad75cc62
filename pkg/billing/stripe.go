package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/customer"
	"github.com/stripe/stripe-go/v74/price"
	"github.com/stripe/stripe-go/v74/subscription"

	"photox_backend/pkg/entitlement"
)

// Client wraps the Stripe SDK behind the lookups reconciliation needs plus
// the checkout/cancel calls the subscription controller uses. It satisfies
// entitlement.BillingClient.
type Client struct {
	successURL string
	cancelURL  string
}

var _ entitlement.BillingClient = (*Client)(nil)

func NewClient(secretKey, successURL, cancelURL string) *Client {
	stripe.Key = secretKey
	return &Client{successURL: successURL, cancelURL: cancelURL}
}

// CustomerByEmail returns the first Stripe customer with the given email,
// or nil when none exists.
func (c *Client) CustomerByEmail(ctx context.Context, email string) (*entitlement.Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	it := customer.List(params)
	for it.Next() {
		cust := it.Customer()
		return &entitlement.Customer{ID: cust.ID, Email: cust.Email}, nil
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("could not list customers: %w", err)
	}
	return nil, nil
}

// ActiveSubscription returns the customer's first active subscription in
// Stripe-assigned order, or nil when there is none.
func (c *Client) ActiveSubscription(ctx context.Context, customerID string) (*entitlement.BillingSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	it := subscription.List(params)
	for it.Next() {
		return toBillingSubscription(it.Subscription()), nil
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("could not list subscriptions: %w", err)
	}
	return nil, nil
}

// SubscriptionByID retrieves a subscription, used to resolve invoice
// webhook events to their subscription state.
func (c *Client) SubscriptionByID(ctx context.Context, id string) (*entitlement.BillingSubscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := subscription.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve subscription %s: %w", id, err)
	}
	return toBillingSubscription(sub), nil
}

// PriceAmount retrieves a price and returns its unit amount in cents.
func (c *Client) PriceAmount(ctx context.Context, priceID string) (int64, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx
	p, err := price.Get(priceID, params)
	if err != nil {
		return 0, fmt.Errorf("could not retrieve price %s: %w", priceID, err)
	}
	return p.UnitAmount, nil
}

// CustomerEmail resolves a Stripe customer id to its email.
func (c *Client) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := customer.Get(customerID, params)
	if err != nil {
		return "", fmt.Errorf("could not retrieve customer %s: %w", customerID, err)
	}
	if cust.Deleted || cust.Email == "" {
		return "", fmt.Errorf("customer %s has no usable email", customerID)
	}
	return cust.Email, nil
}

// NewCheckoutSession creates a subscription-mode checkout session for the
// given price. The user subject rides along as metadata so webhook events
// carry a correlation hint back to the local record.
func (c *Client) NewCheckoutSession(ctx context.Context, email, priceID, userID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail: stripe.String(email),
		SuccessURL:    stripe.String(c.successURL),
		CancelURL:     stripe.String(c.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"userId": userID},
		},
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("could not create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CancelSubscription cancels the Stripe subscription immediately. The
// resulting customer.subscription.deleted webhook performs the local
// downgrade.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := subscription.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("could not cancel subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func toBillingSubscription(sub *stripe.Subscription) *entitlement.BillingSubscription {
	out := &entitlement.BillingSubscription{
		ID:               sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		out.PriceID = sub.Items.Data[0].Price.ID
	}
	return out
}
