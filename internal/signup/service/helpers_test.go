package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/everafterhq/everafter/internal/billingevent"
	billingeventdomain "github.com/everafterhq/everafter/internal/billingevent/domain"
	"github.com/everafterhq/everafter/internal/config"
	identitydomain "github.com/everafterhq/everafter/internal/identity/domain"
	paymentdomain "github.com/everafterhq/everafter/internal/payment/domain"
	profiledomain "github.com/everafterhq/everafter/internal/profile/domain"
	profilerepo "github.com/everafterhq/everafter/internal/profile/repository"
	"github.com/everafterhq/everafter/internal/signup/domain"
	signuprepo "github.com/everafterhq/everafter/internal/signup/repository"
	weddingdomain "github.com/everafterhq/everafter/internal/wedding/domain"
	weddingrepo "github.com/everafterhq/everafter/internal/wedding/repository"
	"github.com/everafterhq/everafter/pkg/db"
)

type fakePaymentGateway struct {
	createErr error
	sessions  map[string]*paymentdomain.CheckoutSession
	created   []paymentdomain.CreateCheckoutParams
}

func newFakePaymentGateway() *fakePaymentGateway {
	return &fakePaymentGateway{sessions: map[string]*paymentdomain.CheckoutSession{}}
}

func (f *fakePaymentGateway) CreateCheckoutSession(_ context.Context, params paymentdomain.CreateCheckoutParams) (*paymentdomain.CheckoutSession, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, params)
	id := fmt.Sprintf("cs_test_%d", len(f.created))
	session := &paymentdomain.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.test/" + id,
		PaymentStatus: "unpaid",
		CustomerID:    "cus_" + id,
		Metadata:      params.Metadata,
	}
	f.sessions[id] = session
	return session, nil
}

func (f *fakePaymentGateway) RetrieveSession(_ context.Context, sessionID string) (*paymentdomain.CheckoutSession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, paymentdomain.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakePaymentGateway) VerifyWebhook([]byte, string) (*paymentdomain.Event, error) {
	return nil, paymentdomain.ErrInvalidSignature
}

func (f *fakePaymentGateway) markPaid(sessionID string) {
	f.sessions[sessionID].PaymentStatus = paymentdomain.PaymentStatusPaid
}

type fakeIdentityGateway struct {
	createErr  error
	deleteErr  error
	signInErr  error
	createdIDs []string
	deletedIDs []string
}

func (f *fakeIdentityGateway) CreateUser(_ context.Context, req identitydomain.CreateUserRequest) (*identitydomain.User, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	id := fmt.Sprintf("user_%d", len(f.createdIDs)+1)
	f.createdIDs = append(f.createdIDs, id)
	return &identitydomain.User{ID: id, Email: req.Email}, nil
}

func (f *fakeIdentityGateway) DeleteUser(_ context.Context, userID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, userID)
	return nil
}

func (f *fakeIdentityGateway) SignIn(_ context.Context, _, _ string) (*identitydomain.Session, error) {
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return &identitydomain.Session{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

type testEnv struct {
	svc      *Service
	db       *gorm.DB
	payments *fakePaymentGateway
	identity *fakeIdentityGateway
	weddings weddingdomain.Repository
	profiles profiledomain.Repository
	now      time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = gdb.AutoMigrate(
		&domain.PendingSignup{},
		&weddingdomain.Wedding{},
		&profiledomain.Profile{},
		&billingeventdomain.BillingEvent{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	err = gdb.Exec(`CREATE UNIQUE INDEX ux_pending_signups_active_slug ON pending_signups (slug) WHERE completed_at IS NULL`).Error
	if err != nil {
		t.Fatalf("create partial index: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	cfg := config.Config{
		BaseURL: "https://everafter.test",
		Stripe: config.StripeConfig{
			PriceID:    "price_123",
			SuccessURL: "https://everafter.test/signup/confirm?session_id={CHECKOUT_SESSION_ID}",
			CancelURL:  "https://everafter.test/signup",
		},
		Signup: config.SignupConfig{
			ReservationTTLHours: 24,
			TrialDays:           31,
			InitialPeriodYears:  1,
		},
	}

	env := &testEnv{
		db:       gdb,
		payments: newFakePaymentGateway(),
		identity: &fakeIdentityGateway{},
		weddings: weddingrepo.New(gdb),
		profiles: profilerepo.New(gdb),
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	env.svc = &Service{
		cfg:      cfg,
		log:      zap.NewNop(),
		genID:    node,
		repo:     signuprepo.New(gdb),
		weddings: env.weddings,
		profiles: env.profiles,
		identity: env.identity,
		payments: env.payments,
		outbox:   billingevent.NewRecorder(gdb, node),
		now:      func() time.Time { return env.now },
		sleep:    func(time.Duration) {},
	}
	return env
}

func validCheckoutRequest() domain.CheckoutRequest {
	return domain.CheckoutRequest{
		Email:          "amelia@example.com",
		Password:       "correct-horse",
		PartnerNameOne: "Amelia",
		PartnerNameTwo: "Ben",
		Slug:           "amelia-and-ben",
		ThemeID:        "classic",
	}
}

// startPaidSignup runs a checkout and marks its session paid at the
// processor, leaving the flow ready for VerifyPayment.
func startPaidSignup(t *testing.T, env *testEnv) string {
	t.Helper()
	result, err := env.svc.StartCheckout(context.Background(), validCheckoutRequest())
	if err != nil {
		t.Fatalf("StartCheckout: %v", err)
	}
	env.payments.markPaid(result.SessionID)
	return result.SessionID
}

func countOutbox(t *testing.T, gdb *gorm.DB, topic string) int64 {
	t.Helper()
	var count int64
	err := gdb.Model(&billingeventdomain.BillingEvent{}).
		Where("event_type = ?", topic).
		Count(&count).Error
	if err != nil {
		t.Fatalf("count outbox %s: %v", topic, err)
	}
	return count
}
