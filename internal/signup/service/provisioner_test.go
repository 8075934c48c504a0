package service

import (
	"context"
	"errors"
	"testing"
	"time"

	billingeventdomain "github.com/everafterhq/everafter/internal/billingevent/domain"
	identitydomain "github.com/everafterhq/everafter/internal/identity/domain"
	profiledomain "github.com/everafterhq/everafter/internal/profile/domain"
	"github.com/everafterhq/everafter/internal/signup/domain"
	"github.com/everafterhq/everafter/internal/subscription"
	weddingdomain "github.com/everafterhq/everafter/internal/wedding/domain"
)

func TestVerifyPayment(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startPaidSignup(t, env)

	result, err := env.svc.VerifyPayment(context.Background(), domain.VerifyRequest{
		SessionID: sessionID,
		Password:  "correct-horse",
	})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if result.Slug != "amelia-and-ben" {
		t.Errorf("slug = %q", result.Slug)
	}
	if result.Redirect != "https://everafter.test/amelia-and-ben" {
		t.Errorf("redirect = %q", result.Redirect)
	}
	if result.Session == nil || result.NeedsLogin {
		t.Errorf("expected signed-in session, got session=%v needsLogin=%v", result.Session, result.NeedsLogin)
	}

	if len(env.identity.createdIDs) != 1 {
		t.Fatalf("created identity accounts = %d, want 1", len(env.identity.createdIDs))
	}
	userID := env.identity.createdIDs[0]

	profile, err := env.profiles.FindByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if profile.SubscriptionStatus != subscription.StatusTrial {
		t.Errorf("status = %q, want trial", profile.SubscriptionStatus)
	}
	wantEnd := env.now.AddDate(0, 0, 31)
	if !profile.SubscriptionEndDate.Equal(wantEnd) {
		t.Errorf("end date = %v, want %v", profile.SubscriptionEndDate, wantEnd)
	}
	if profile.PaymentCustomerID == nil || *profile.PaymentCustomerID == "" {
		t.Error("expected payment customer id on profile")
	}

	wedding, err := env.weddings.FindBySlug(context.Background(), "amelia-and-ben")
	if err != nil {
		t.Fatalf("FindBySlug: %v", err)
	}
	if wedding.OwnerID != userID {
		t.Errorf("owner = %q, want %q", wedding.OwnerID, userID)
	}
	if len(wedding.GuestCode) != 6 {
		t.Errorf("guest code = %q, want 6 chars", wedding.GuestCode)
	}
	if wedding.AdminToken == "" {
		t.Error("expected admin token")
	}
	if wedding.Config["theme_id"] != "classic" {
		t.Errorf("config theme = %v", wedding.Config["theme_id"])
	}

	signup, err := env.svc.repo.FindBySessionID(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("FindBySessionID: %v", err)
	}
	if signup.CompletedAt == nil {
		t.Error("expected completed_at to be set")
	}
	if signup.CheckoutStatus != domain.CheckoutStatusCompleted {
		t.Errorf("checkout status = %q", signup.CheckoutStatus)
	}

	if n := countOutbox(t, env.db, billingeventdomain.SignupCompletedTopic); n != 1 {
		t.Errorf("signup.completed outbox rows = %d, want 1", n)
	}
}

func TestVerifyPaymentReplay(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startPaidSignup(t, env)

	req := domain.VerifyRequest{SessionID: sessionID, Password: "correct-horse"}
	if _, err := env.svc.VerifyPayment(context.Background(), req); err != nil {
		t.Fatalf("first VerifyPayment: %v", err)
	}

	result, err := env.svc.VerifyPayment(context.Background(), req)
	if err != nil {
		t.Fatalf("replayed VerifyPayment: %v", err)
	}
	if !result.Success || result.Slug != "amelia-and-ben" {
		t.Fatalf("replay result = %+v", result)
	}

	// Replay must not provision again.
	if len(env.identity.createdIDs) != 1 {
		t.Errorf("created identity accounts = %d, want 1", len(env.identity.createdIDs))
	}
	var weddings int64
	env.db.Model(&weddingdomain.Wedding{}).Count(&weddings)
	if weddings != 1 {
		t.Errorf("weddings = %d, want 1", weddings)
	}
	if n := countOutbox(t, env.db, billingeventdomain.SignupCompletedTopic); n != 1 {
		t.Errorf("signup.completed outbox rows = %d, want 1", n)
	}
}

func TestVerifyPaymentNotPaid(t *testing.T) {
	env := newTestEnv(t)
	result, err := env.svc.StartCheckout(context.Background(), validCheckoutRequest())
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}

	_, err = env.svc.VerifyPayment(context.Background(), domain.VerifyRequest{
		SessionID: result.SessionID,
		Password:  "correct-horse",
	})
	if !errors.Is(err, domain.ErrPaymentNotCompleted) {
		t.Fatalf("err = %v, want ErrPaymentNotCompleted", err)
	}
	if len(env.identity.createdIDs) != 0 {
		t.Error("unpaid session must not provision")
	}
}

func TestVerifyPaymentUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.VerifyPayment(context.Background(), domain.VerifyRequest{
		SessionID: "cs_missing",
		Password:  "correct-horse",
	})
	if !errors.Is(err, domain.ErrSignupNotFound) {
		t.Fatalf("err = %v, want ErrSignupNotFound", err)
	}
}

func TestVerifyPaymentSlugConflictPostPayment(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startPaidSignup(t, env)

	// The slug gets provisioned out from under the reservation while the
	// customer is at the payment page.
	err := env.weddings.Create(context.Background(), &weddingdomain.Wedding{
		ID:         env.svc.genID.Generate(),
		OwnerID:    "user_rival",
		Slug:       "amelia-and-ben",
		GuestCode:  "XYZ789",
		AdminToken: "token",
	})
	if err != nil {
		t.Fatalf("seed wedding: %v", err)
	}

	_, err = env.svc.VerifyPayment(context.Background(), domain.VerifyRequest{
		SessionID: sessionID,
		Password:  "correct-horse",
	})
	if !errors.Is(err, domain.ErrSlugConflictPostPayment) {
		t.Fatalf("err = %v, want ErrSlugConflictPostPayment", err)
	}
	if len(env.identity.createdIDs) != 0 {
		t.Error("conflict must be detected before creating the identity account")
	}
	if n := countOutbox(t, env.db, billingeventdomain.SlugConflictTopic); n != 1 {
		t.Errorf("slug conflict outbox rows = %d, want 1", n)
	}
}

func TestVerifyPaymentEmailExists(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startPaidSignup(t, env)
	env.identity.createErr = identitydomain.ErrEmailExists

	_, err := env.svc.VerifyPayment(context.Background(), domain.VerifyRequest{
		SessionID: sessionID,
		Password:  "correct-horse",
	})
	if !errors.Is(err, domain.ErrAccountExists) {
		t.Fatalf("err = %v, want ErrAccountExists", err)
	}
}

type failingProfiles struct {
	profiledomain.Repository
	upsertErr error
}

func (f *failingProfiles) Upsert(context.Context, *profiledomain.Profile) error {
	return f.upsertErr
}

func TestVerifyPaymentProfileFailureCompensates(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startPaidSignup(t, env)
	env.svc.profiles = &failingProfiles{Repository: env.profiles, upsertErr: errors.New("db down")}

	_, err := env.svc.VerifyPayment(context.Background(), domain.VerifyRequest{
		SessionID: sessionID,
		Password:  "correct-horse",
	})
	if !errors.Is(err, domain.ErrProvisionFailed) {
		t.Fatalf("err = %v, want ErrProvisionFailed", err)
	}
	if len(env.identity.deletedIDs) != 1 || env.identity.deletedIDs[0] != env.identity.createdIDs[0] {
		t.Fatalf("expected the created account to be deleted, got %v", env.identity.deletedIDs)
	}
}

type conflictWeddings struct {
	weddingdomain.Repository
}

func (conflictWeddings) Create(context.Context, *weddingdomain.Wedding) error {
	return weddingdomain.ErrSlugTaken
}

func TestVerifyPaymentWeddingConflictCompensates(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startPaidSignup(t, env)
	env.svc.weddings = conflictWeddings{Repository: env.weddings}

	_, err := env.svc.VerifyPayment(context.Background(), domain.VerifyRequest{
		SessionID: sessionID,
		Password:  "correct-horse",
	})
	if !errors.Is(err, domain.ErrSlugConflictPostPayment) {
		t.Fatalf("err = %v, want ErrSlugConflictPostPayment", err)
	}

	if len(env.identity.deletedIDs) != 1 {
		t.Fatalf("expected identity compensation, got %v", env.identity.deletedIDs)
	}
	_, err = env.profiles.FindByID(context.Background(), env.identity.createdIDs[0])
	if !errors.Is(err, profiledomain.ErrNotFound) {
		t.Fatalf("expected profile to be deleted, got %v", err)
	}
	if n := countOutbox(t, env.db, billingeventdomain.SlugConflictTopic); n != 1 {
		t.Errorf("slug conflict outbox rows = %d, want 1", n)
	}
}

func TestVerifyPaymentCompensationExhaustion(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startPaidSignup(t, env)
	env.svc.profiles = &failingProfiles{Repository: env.profiles, upsertErr: errors.New("db down")}
	env.identity.deleteErr = errors.New("identity unreachable")

	var slept []time.Duration
	env.svc.sleep = func(d time.Duration) { slept = append(slept, d) }

	_, err := env.svc.VerifyPayment(context.Background(), domain.VerifyRequest{
		SessionID: sessionID,
		Password:  "correct-horse",
	})
	if !errors.Is(err, domain.ErrProvisionFailed) {
		t.Fatalf("err = %v, want ErrProvisionFailed", err)
	}

	// Linear backoff between the three attempts, then give up.
	want := []time.Duration{500 * time.Millisecond, time.Second}
	if len(slept) != len(want) || slept[0] != want[0] || slept[1] != want[1] {
		t.Errorf("backoff = %v, want %v", slept, want)
	}
	if n := countOutbox(t, env.db, billingeventdomain.ManualCleanupTopic); n != 1 {
		t.Errorf("manual cleanup outbox rows = %d, want 1", n)
	}
}

func TestVerifyPaymentSignInFailure(t *testing.T) {
	env := newTestEnv(t)
	sessionID := startPaidSignup(t, env)
	env.identity.signInErr = identitydomain.ErrSignInFailed

	result, err := env.svc.VerifyPayment(context.Background(), domain.VerifyRequest{
		SessionID: sessionID,
		Password:  "correct-horse",
	})
	if err != nil {
		t.Fatalf("VerifyPayment: %v", err)
	}
	if !result.Success || !result.NeedsLogin || result.Session != nil {
		t.Fatalf("result = %+v, want success with needsLogin", result)
	}
}
