package controller

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"photox_backend/internal/model"
	"photox_backend/pkg/billing"
	"photox_backend/pkg/database"
	"photox_backend/pkg/email"
	"photox_backend/pkg/entitlement"
	"photox_backend/pkg/utils/jwt"
)

type CheckoutInput struct {
	PriceID string `json:"price_id" validate:"required"`
}

var (
	subStore      *entitlement.Store
	subReconciler *entitlement.Reconciler
	billingClient *billing.Client
)

func InitSubscriptionController(store *entitlement.Store, rec *entitlement.Reconciler, client *billing.Client) {
	subStore = store
	subReconciler = rec
	billingClient = client
}

func ListPlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"plans": subStore.Catalog().Plans(),
	})
}

// GetMyUsage usage widget'ın gösterdiği sayaç özetini döner.
func GetMyUsage(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	rec, err := subStore.EnsureRecord(c.Context(), claims.UserID, claims.Email)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not load subscription",
		})
	}

	plan := subStore.PlanFor(rec)
	return c.JSON(fiber.Map{
		"plan":          plan,
		"status":        rec.Status,
		"usage_count":   rec.UsageCount,
		"monthly_limit": plan.MonthlyLimit,
		"remaining":     subStore.Remaining(rec),
		"cycle_end":     rec.CycleEnd,
	})
}

// CheckSubscription oturum başlangıcında Stripe'taki durumu lokale çeker.
func CheckSubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	rec, err := subReconciler.SyncFromBilling(c.Context(), claims.UserID, claims.Email)
	if err != nil {
		log.Printf("Subscription sync failed for %s: %v", claims.Email, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Could not check subscription",
		})
	}

	plan := subStore.PlanFor(rec)
	return c.JSON(fiber.Map{
		"subscribed":        rec.Status == entitlement.StatusActive,
		"subscription_tier": plan.Name,
		"subscription_end":  rec.CycleEnd,
		"remaining":         subStore.Remaining(rec),
	})
}

func CreateCheckoutSession(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	input := new(CheckoutInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid input",
		})
	}

	plan, ok := subStore.Catalog().FindByStripePriceID(input.PriceID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Subscription plan not found",
		})
	}
	if plan.Free() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Free plan does not require checkout",
		})
	}

	url, err := billingClient.NewCheckoutSession(c.Context(), claims.Email, plan.StripePriceID, claims.UserID)
	if err != nil {
		log.Printf("Could not create checkout session for %s: %v", claims.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not create checkout session",
		})
	}

	return c.JSON(fiber.Map{
		"url": url,
	})
}

func CancelSubscription(c *fiber.Ctx) error {
	claims := c.Locals("user").(*jwt.Claims)

	rec, err := subStore.Get(c.Context(), claims.UserID)
	if err != nil || rec.StripeSubscriptionID == "" || rec.Status != entitlement.StatusActive {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No active subscription found",
		})
	}

	if err := billingClient.CancelSubscription(c.Context(), rec.StripeSubscriptionID); err != nil {
		log.Printf("Could not cancel subscription for %s: %v", claims.Email, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Could not cancel Stripe subscription",
		})
	}

	// Webhook tarafı planı düşürür; burada sadece güncel durumu çekiyoruz.
	if _, err := subReconciler.SyncFromBilling(c.Context(), claims.UserID, claims.Email); err != nil {
		log.Printf("Post-cancel sync failed for %s: %v", claims.Email, err)
	}

	return c.JSON(fiber.Map{
		"message": "Subscription cancelled successfully",
	})
}

func HandleStripeWebhook(c *fiber.Ctx) error {
	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")

	payload := c.Body()
	signatureHeader := c.Get("Stripe-Signature")

	event, err := webhook.ConstructEvent(payload, signatureHeader, webhookSecret)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook signature",
		})
	}

	log.Printf("Processing Stripe webhook event: %s", event.Type)

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return c.Status(fiber.StatusBadRequest).Send(nil)
		}
		if err := applySubscriptionEvent(c, event.Type, &sub, sub.Metadata["userId"]); err != nil {
			log.Printf("Could not process %s: %v", event.Type, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not process event",
			})
		}

	case "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return c.Status(fiber.StatusBadRequest).Send(nil)
		}
		if inv.Subscription == nil {
			break // tek seferlik faturalar abonelik durumunu etkilemez
		}
		sub, err := billingClient.SubscriptionByID(c.Context(), inv.Subscription.ID)
		if err != nil {
			log.Printf("Could not resolve invoice subscription: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not process event",
			})
		}
		evType := entitlement.EventPaymentSucceeded
		if event.Type == "invoice.payment_failed" {
			evType = entitlement.EventPaymentFailed
		}
		if err := applyBillingEvent(c, evType, sub, inv.Metadata["userId"]); err != nil {
			log.Printf("Could not process %s: %v", event.Type, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Could not process event",
			})
		}

	default:
		log.Printf("Unhandled event type: %s", event.Type)
	}

	return c.SendStatus(fiber.StatusOK)
}

func applySubscriptionEvent(c *fiber.Ctx, eventType string, sub *stripe.Subscription, userIDHint string) error {
	var evType entitlement.EventType
	switch eventType {
	case "customer.subscription.created":
		evType = entitlement.EventSubscriptionCreated
	case "customer.subscription.updated":
		evType = entitlement.EventSubscriptionUpdated
	default:
		evType = entitlement.EventSubscriptionDeleted
	}

	billingSub := &entitlement.BillingSubscription{
		ID:               sub.ID,
		Status:           string(sub.Status),
		CurrentPeriodEnd: time.Unix(sub.CurrentPeriodEnd, 0),
	}
	if sub.Customer != nil {
		billingSub.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		billingSub.PriceID = sub.Items.Data[0].Price.ID
	}

	return applyBillingEvent(c, evType, billingSub, userIDHint)
}

func applyBillingEvent(c *fiber.Ctx, evType entitlement.EventType, sub *entitlement.BillingSubscription, userIDHint string) error {
	customerEmail, err := billingClient.CustomerEmail(c.Context(), sub.CustomerID)
	if err != nil {
		return err
	}

	var amount int64
	if sub.PriceID != "" {
		if amount, err = billingClient.PriceAmount(c.Context(), sub.PriceID); err != nil {
			return err
		}
	}

	ev := entitlement.Event{
		Type:             evType,
		SubscriptionID:   sub.ID,
		CustomerEmail:    customerEmail,
		UserIDHint:       userIDHint,
		Status:           sub.Status,
		PriceAmount:      amount,
		CurrentPeriodEnd: sub.CurrentPeriodEnd,
	}

	if err := subReconciler.ApplyEvent(c.Context(), ev); err != nil {
		return err
	}

	notifySubscriptionChange(evType, customerEmail, ev)
	return nil
}

// notifySubscriptionChange abonelik e-postalarını gönderir; hatalar webhook
// sonucunu etkilemez.
func notifySubscriptionChange(evType entitlement.EventType, customerEmail string, ev entitlement.Event) {
	if email.GlobalEmailService == nil {
		return
	}

	var user model.User
	name := customerEmail
	if err := database.GetDB().Where("email = ?", customerEmail).First(&user).Error; err == nil {
		if full := user.GetFullName(); full != "" {
			name = full
		} else if user.DisplayName != "" {
			name = user.DisplayName
		}
	}

	plan := subStore.Catalog().ResolveTierFromAmount(ev.PriceAmount)

	var err error
	switch {
	case evType == entitlement.EventSubscriptionCreated && ev.Status == "active":
		err = email.GlobalEmailService.SendSubscriptionStartedEmail(
			customerEmail, name, plan.Name, plan.PriceCents, plan.MonthlyLimit, ev.CurrentPeriodEnd, false)
	case evType == entitlement.EventPaymentSucceeded && ev.Status == "active":
		err = email.GlobalEmailService.SendSubscriptionStartedEmail(
			customerEmail, name, plan.Name, plan.PriceCents, plan.MonthlyLimit, ev.CurrentPeriodEnd, true)
	case evType == entitlement.EventSubscriptionDeleted:
		err = email.GlobalEmailService.SendSubscriptionCancelledEmail(customerEmail, name, plan.Name)
	case evType == entitlement.EventPaymentFailed:
		err = email.GlobalEmailService.SendPaymentFailedEmail(customerEmail, name)
	default:
		return
	}
	if err != nil {
		log.Printf("Could not send subscription email to %s: %v", customerEmail, err)
	}
}
