package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/everafterhq/everafter/internal/billing/domain"
	"github.com/everafterhq/everafter/internal/config"
	obsmetrics "github.com/everafterhq/everafter/internal/observability/metrics"
	paymentdomain "github.com/everafterhq/everafter/internal/payment/domain"
	profiledomain "github.com/everafterhq/everafter/internal/profile/domain"
	"github.com/everafterhq/everafter/internal/subscription"
)

const renewalPeriodYears = 1

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Repo     domain.Repository
	Profiles profiledomain.Repository
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// Reconciler applies verified processor events to subscription state.
// The ledger makes it exactly-once per event id; every handler is also
// written to be idempotent so a replayed or reordered event converges on
// the same state.
type Reconciler struct {
	cfg      config.Config
	log      *zap.Logger
	repo     domain.Repository
	profiles profiledomain.Repository
	metrics  *obsmetrics.Metrics
	now      func() time.Time
}

func New(p Params) *Reconciler {
	return &Reconciler{
		cfg:      p.Cfg,
		log:      p.Log.Named("billing.reconciler"),
		repo:     p.Repo,
		profiles: p.Profiles,
		metrics:  p.Metrics,
		now:      time.Now,
	}
}

// Process claims the event in the ledger and dispatches it. The duplicate
// return distinguishes an already-seen event (acknowledged, not
// reprocessed) from a fresh one.
func (r *Reconciler) Process(ctx context.Context, event *paymentdomain.Event) (bool, error) {
	duplicate, err := r.repo.Claim(ctx, event.ID, event.Type)
	if err != nil {
		// A ledger outage must not drop the event; handlers are idempotent
		// so processing without a claim is safe, just not deduplicated.
		r.log.Warn("event ledger claim failed, processing without dedupe",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
	}
	if duplicate {
		r.log.Info("duplicate event acknowledged", zap.String("event_id", event.ID))
		if r.metrics != nil {
			r.metrics.WebhooksDuplicate.Inc()
		}
		return true, nil
	}

	if dispatchErr := r.dispatch(ctx, event); dispatchErr != nil {
		if err == nil {
			if markErr := r.repo.MarkFailed(ctx, event.ID, dispatchErr); markErr != nil {
				r.log.Warn("failed to mark event failed", zap.String("event_id", event.ID), zap.Error(markErr))
			}
		}
		if r.metrics != nil {
			r.metrics.WebhooksFailed.WithLabelValues(event.Type).Inc()
		}
		return false, dispatchErr
	}

	if err == nil {
		if markErr := r.repo.MarkCompleted(ctx, event.ID); markErr != nil {
			r.log.Warn("failed to mark event completed", zap.String("event_id", event.ID), zap.Error(markErr))
		}
	}
	if r.metrics != nil {
		r.metrics.WebhooksProcessed.WithLabelValues(event.Type).Inc()
	}
	return false, nil
}

func (r *Reconciler) dispatch(ctx context.Context, event *paymentdomain.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return r.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.updated":
		return r.handleSubscriptionUpdated(ctx, event)
	case "customer.subscription.deleted":
		return r.handleSubscriptionDeleted(ctx, event)
	case "invoice.payment_succeeded":
		return r.handleInvoicePaid(ctx, event)
	case "invoice.payment_failed":
		return r.handleInvoiceFailed(ctx, event)
	default:
		r.log.Debug("ignoring event type", zap.String("type", event.Type))
		return nil
	}
}

type checkoutObject struct {
	Customer      string            `json:"customer"`
	PaymentStatus string            `json:"payment_status"`
	Metadata      map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	Customer         string `json:"customer"`
	Status           string `json:"status"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

type invoiceObject struct {
	Customer      string `json:"customer"`
	BillingReason string `json:"billing_reason"`
}

func (r *Reconciler) handleCheckoutCompleted(ctx context.Context, event *paymentdomain.Event) error {
	var obj checkoutObject
	if err := json.Unmarshal(event.Data, &obj); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}
	if obj.Customer == "" {
		r.log.Warn("checkout completed without customer", zap.String("event_id", event.ID))
		return nil
	}
	// Stripe fires this event with payment_status "unpaid" for delayed
	// payment methods; activation waits for the paid session.
	if obj.PaymentStatus != paymentdomain.PaymentStatusPaid {
		r.log.Info("checkout completed but not paid, skipping activation",
			zap.String("event_id", event.ID),
			zap.String("payment_status", obj.PaymentStatus),
		)
		return nil
	}

	end := r.now().UTC().AddDate(r.cfg.Signup.InitialPeriodYears, 0, 0)
	return r.updateByCustomer(ctx, obj.Customer, event.ID, subscription.StatusActive, &end)
}

func (r *Reconciler) handleSubscriptionUpdated(ctx context.Context, event *paymentdomain.Event) error {
	var obj subscriptionObject
	if err := json.Unmarshal(event.Data, &obj); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}

	profile, err := r.profiles.FindByPaymentCustomerID(ctx, obj.Customer)
	if err != nil {
		if errors.Is(err, profiledomain.ErrNotFound) {
			r.logUnknownCustomer(event, obj.Customer)
			return nil
		}
		return err
	}

	status := subscription.FromStripeStatus(obj.Status)
	end := profile.SubscriptionEndDate
	if obj.CurrentPeriodEnd > 0 {
		// Out-of-order delivery must never shorten access the customer
		// already paid for, so the end date only moves forward.
		end = subscription.ResolveEndDate(profile.SubscriptionEndDate, time.Unix(obj.CurrentPeriodEnd, 0).UTC())
	}
	return r.profiles.UpdateSubscription(ctx, profile.ID, status, end)
}

func (r *Reconciler) handleSubscriptionDeleted(ctx context.Context, event *paymentdomain.Event) error {
	var obj subscriptionObject
	if err := json.Unmarshal(event.Data, &obj); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}
	// Cancellation keeps the paid-through date; access lapses when it
	// passes, not when the event arrives.
	return r.updateByCustomer(ctx, obj.Customer, event.ID, subscription.StatusCancelled, nil)
}

func (r *Reconciler) handleInvoicePaid(ctx context.Context, event *paymentdomain.Event) error {
	var obj invoiceObject
	if err := json.Unmarshal(event.Data, &obj); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}
	// The first invoice belongs to checkout.session.completed; renewals
	// are the only invoices that extend the period here.
	if obj.BillingReason != "subscription_cycle" {
		r.log.Debug("ignoring invoice", zap.String("billing_reason", obj.BillingReason))
		return nil
	}

	// Renewal cycles are yearly regardless of the configured initial
	// period; only the first period length is configurable.
	end := r.now().UTC().AddDate(renewalPeriodYears, 0, 0)
	return r.updateByCustomer(ctx, obj.Customer, event.ID, subscription.StatusActive, &end)
}

func (r *Reconciler) handleInvoiceFailed(ctx context.Context, event *paymentdomain.Event) error {
	var obj invoiceObject
	if err := json.Unmarshal(event.Data, &obj); err != nil {
		return fmt.Errorf("decode invoice: %w", err)
	}
	return r.updateByCustomer(ctx, obj.Customer, event.ID, subscription.StatusExpired, nil)
}

// updateByCustomer resolves the profile and applies the status change. A
// nil end keeps the profile's current end date.
func (r *Reconciler) updateByCustomer(ctx context.Context, customerID, eventID string, status subscription.Status, end *time.Time) error {
	profile, err := r.profiles.FindByPaymentCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, profiledomain.ErrNotFound) {
			r.logUnknownCustomer(&paymentdomain.Event{ID: eventID}, customerID)
			return nil
		}
		return err
	}

	endDate := profile.SubscriptionEndDate
	if end != nil {
		endDate = *end
	}
	return r.profiles.UpdateSubscription(ctx, profile.ID, status, endDate)
}

// Unknown customers are expected: the processor account is shared with
// checkouts this engine did not create, and signup webhooks can arrive
// before provisioning. Either way the event is acknowledged.
func (r *Reconciler) logUnknownCustomer(event *paymentdomain.Event, customerID string) {
	r.log.Info("no profile for customer, skipping event",
		zap.String("event_id", event.ID),
		zap.String("customer_id", customerID),
	)
}
