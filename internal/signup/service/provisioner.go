package service

import (
	"context"
	"crypto/rand"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	billingeventdomain "github.com/everafterhq/everafter/internal/billingevent/domain"
	identitydomain "github.com/everafterhq/everafter/internal/identity/domain"
	paymentdomain "github.com/everafterhq/everafter/internal/payment/domain"
	profiledomain "github.com/everafterhq/everafter/internal/profile/domain"
	"github.com/everafterhq/everafter/internal/signup/domain"
	"github.com/everafterhq/everafter/internal/subscription"
	weddingdomain "github.com/everafterhq/everafter/internal/wedding/domain"
)

const (
	compensationAttempts = 3
	compensationBackoff  = 500 * time.Millisecond
)

// VerifyPayment runs the provisioning saga: payment check, identity
// account, profile, wedding, in that order, each later step compensating
// the earlier ones on failure. There is no cross-system transaction;
// compensations are bounded-retry imperative deletes, and when they run
// out the orphan is logged for manual cleanup rather than retried forever.
func (s *Service) VerifyPayment(ctx context.Context, req domain.VerifyRequest) (*domain.VerifyResult, error) {
	session, err := s.payments.RetrieveSession(ctx, req.SessionID)
	if err != nil {
		if errors.Is(err, paymentdomain.ErrSessionNotFound) {
			return nil, domain.ErrSignupNotFound
		}
		return nil, err
	}
	if session.PaymentStatus != paymentdomain.PaymentStatusPaid {
		return nil, domain.ErrPaymentNotCompleted
	}

	signup, err := s.repo.FindBySessionID(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	// Idempotent replay: the user refreshed the confirmation page after a
	// completed run. Answer as before, perform no writes.
	if signup.CompletedAt != nil {
		result := &domain.VerifyResult{
			Success:  true,
			Slug:     signup.Slug,
			Redirect: s.redirectFor(signup.Slug),
		}
		s.trySignIn(ctx, result, signup.Email, req.Password)
		return result, nil
	}

	// The reservation was only a pre-claim; the weddings table is the
	// final authority and time has passed since checkout started.
	taken, err := s.weddings.SlugExists(ctx, signup.Slug)
	if err != nil {
		return nil, err
	}
	if taken {
		s.recordSlugConflict(ctx, signup)
		return nil, domain.ErrSlugConflictPostPayment
	}

	user, err := s.identity.CreateUser(ctx, identitydomain.CreateUserRequest{
		Email:    signup.Email,
		Password: req.Password,
		Metadata: map[string]any{"slug": signup.Slug},
	})
	if err != nil {
		if errors.Is(err, identitydomain.ErrEmailExists) {
			return nil, domain.ErrAccountExists
		}
		return nil, domain.ErrProvisionFailed
	}

	now := s.now().UTC()
	profile := &profiledomain.Profile{
		ID:                  user.ID,
		Email:               signup.Email,
		SubscriptionStatus:  subscription.StatusTrial,
		SubscriptionEndDate: now.AddDate(0, 0, s.cfg.Signup.TrialDays),
	}
	if session.CustomerID != "" {
		customerID := session.CustomerID
		profile.PaymentCustomerID = &customerID
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		s.log.Error("profile creation failed, compensating identity account",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
		s.compensateIdentity(ctx, user.ID, signup)
		return nil, domain.ErrProvisionFailed
	}

	wedding := &weddingdomain.Wedding{
		ID:         s.genID.Generate(),
		OwnerID:    user.ID,
		Slug:       signup.Slug,
		GuestCode:  newGuestCode(),
		AdminToken: uuid.NewString(),
		Config: datatypes.JSONMap{
			"theme_id":         signup.ThemeID,
			"partner_name_one": signup.PartnerNameOne,
			"partner_name_two": signup.PartnerNameTwo,
		},
	}
	if signup.EventDate != nil {
		wedding.Config["event_date"] = signup.EventDate.Format(time.DateOnly)
	}
	if err := s.weddings.Create(ctx, wedding); err != nil {
		s.log.Error("wedding creation failed, compensating profile and identity account",
			zap.String("user_id", user.ID),
			zap.String("slug", signup.Slug),
			zap.Error(err),
		)
		s.compensateProfile(ctx, user.ID, signup)
		s.compensateIdentity(ctx, user.ID, signup)
		if errors.Is(err, weddingdomain.ErrSlugTaken) {
			s.recordSlugConflict(ctx, signup)
			return nil, domain.ErrSlugConflictPostPayment
		}
		return nil, domain.ErrProvisionFailed
	}

	if err := s.repo.MarkCompleted(ctx, signup.ID, now); err != nil {
		// The account is fully provisioned; losing the marker only costs
		// replay detection, so the request still succeeds.
		s.log.Error("failed to mark signup completed",
			zap.Int64("signup_id", int64(signup.ID)),
			zap.Error(err),
		)
	}

	s.appendOutbox(ctx, billingeventdomain.SignupCompletedTopic, map[string]any{
		"session_id": session.ID,
		"slug":       signup.Slug,
		"user_id":    user.ID,
	})
	if s.metrics != nil {
		s.metrics.SignupsProvisioned.Inc()
	}

	result := &domain.VerifyResult{
		Success:  true,
		Slug:     signup.Slug,
		Redirect: s.redirectFor(signup.Slug),
	}
	s.trySignIn(ctx, result, signup.Email, req.Password)
	return result, nil
}

// trySignIn is a convenience; a failure leaves the account valid, so the
// result reports needsLogin instead of failing the request.
func (s *Service) trySignIn(ctx context.Context, result *domain.VerifyResult, email, password string) {
	session, err := s.identity.SignIn(ctx, email, password)
	if err != nil {
		s.log.Warn("auto sign-in failed after provisioning", zap.Error(err))
		result.NeedsLogin = true
		return
	}
	result.Session = session
}

func (s *Service) compensateIdentity(ctx context.Context, userID string, signup *domain.PendingSignup) {
	ok := s.runCompensation(ctx, "delete_identity", func(ctx context.Context) error {
		return s.identity.DeleteUser(ctx, userID)
	})
	if !ok {
		s.log.Error("manual cleanup required: orphaned identity account",
			zap.String("user_id", userID),
			zap.String("session_id", signup.PaymentSessionID),
		)
		s.appendOutbox(ctx, billingeventdomain.ManualCleanupTopic, map[string]any{
			"user_id":    userID,
			"session_id": signup.PaymentSessionID,
			"resource":   "identity_account",
		})
	}
}

func (s *Service) compensateProfile(ctx context.Context, userID string, signup *domain.PendingSignup) {
	ok := s.runCompensation(ctx, "delete_profile", func(ctx context.Context) error {
		return s.profiles.Delete(ctx, userID)
	})
	if !ok {
		s.log.Error("manual cleanup required: orphaned profile",
			zap.String("user_id", userID),
			zap.String("session_id", signup.PaymentSessionID),
		)
		s.appendOutbox(ctx, billingeventdomain.ManualCleanupTopic, map[string]any{
			"user_id":    userID,
			"session_id": signup.PaymentSessionID,
			"resource":   "profile",
		})
	}
}

func (s *Service) runCompensation(ctx context.Context, step string, fn func(context.Context) error) bool {
	var lastErr error
	for attempt := 1; attempt <= compensationAttempts; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			if s.metrics != nil {
				s.metrics.CompensationRuns.WithLabelValues(step, "ok").Inc()
			}
			return true
		}
		s.log.Warn("compensation attempt failed",
			zap.String("step", step),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt < compensationAttempts {
			s.sleep(time.Duration(attempt) * compensationBackoff)
		}
	}
	if s.metrics != nil {
		s.metrics.CompensationRuns.WithLabelValues(step, "exhausted").Inc()
	}
	return false
}

// recordSlugConflict leaves a durable trail for support: the customer has
// paid but the slug is gone, and resolution needs a human.
func (s *Service) recordSlugConflict(ctx context.Context, signup *domain.PendingSignup) {
	s.log.Error("slug conflict after payment, support intervention required",
		zap.String("slug", signup.Slug),
		zap.String("session_id", signup.PaymentSessionID),
	)
	s.appendOutbox(ctx, billingeventdomain.SlugConflictTopic, map[string]any{
		"session_id": signup.PaymentSessionID,
		"slug":       signup.Slug,
		"email":      signup.Email,
	})
}

func (s *Service) appendOutbox(ctx context.Context, topic string, payload map[string]any) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.Append(ctx, topic, payload); err != nil {
		s.log.Warn("outbox append failed", zap.String("topic", topic), zap.Error(err))
	}
}

const guestCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func newGuestCode() string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	for i, b := range buf {
		buf[i] = guestCodeAlphabet[int(b)%len(guestCodeAlphabet)]
	}
	return string(buf)
}
