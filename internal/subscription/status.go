// Package subscription holds the four-state subscription model and the
// mapping from Stripe subscription statuses.
package subscription

import (
	"time"
)

// Status is the internal subscription lifecycle state.
type Status string

const (
	StatusTrial     Status = "trial"
	StatusActive    Status = "active"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// FromStripeStatus maps a Stripe subscription status onto the internal
// model. Unknown statuses degrade to expired so a subscriber never keeps
// access on a state we cannot interpret.
func FromStripeStatus(external string) Status {
	switch external {
	case "active", "trialing":
		return StatusActive
	case "canceled":
		return StatusCancelled
	case "past_due", "unpaid", "incomplete", "incomplete_expired", "paused":
		return StatusExpired
	default:
		return StatusExpired
	}
}

// IsTrialExpired reports whether a trial has lapsed. Derived at read time,
// never persisted.
func IsTrialExpired(status Status, endDate time.Time, now time.Time) bool {
	return status == StatusTrial && now.After(endDate)
}

// DaysRemaining returns whole days until the subscription end date,
// clamped at zero.
func DaysRemaining(endDate time.Time, now time.Time) int {
	if !endDate.After(now) {
		return 0
	}
	return int(endDate.Sub(now).Hours() / 24)
}

// ResolveEndDate picks the end date to persist when a subscription-updated
// event arrives. Stripe redeliveries are not ordered, so taking the later
// of the two keeps an out-of-order event from shortening a paid period.
func ResolveEndDate(existing time.Time, fromEvent time.Time) time.Time {
	if fromEvent.After(existing) {
		return fromEvent
	}
	return existing
}
