package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	gosslug "github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/everafterhq/everafter/internal/billingevent"
	"github.com/everafterhq/everafter/internal/config"
	identitydomain "github.com/everafterhq/everafter/internal/identity/domain"
	obsmetrics "github.com/everafterhq/everafter/internal/observability/metrics"
	paymentdomain "github.com/everafterhq/everafter/internal/payment/domain"
	profiledomain "github.com/everafterhq/everafter/internal/profile/domain"
	"github.com/everafterhq/everafter/internal/signup/domain"
	weddingdomain "github.com/everafterhq/everafter/internal/wedding/domain"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Weddings weddingdomain.Repository
	Profiles profiledomain.Repository
	Identity identitydomain.Gateway
	Payments paymentdomain.Gateway
	Outbox   *billingevent.Recorder
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	cfg      config.Config
	log      *zap.Logger
	genID    *snowflake.Node
	repo     domain.Repository
	weddings weddingdomain.Repository
	profiles profiledomain.Repository
	identity identitydomain.Gateway
	payments paymentdomain.Gateway
	outbox   *billingevent.Recorder
	metrics  *obsmetrics.Metrics
	now      func() time.Time
	sleep    func(time.Duration)
}

func New(p Params) domain.Service {
	return &Service{
		cfg:      p.Cfg,
		log:      p.Log.Named("signup.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		weddings: p.Weddings,
		profiles: p.Profiles,
		identity: p.Identity,
		payments: p.Payments,
		outbox:   p.Outbox,
		metrics:  p.Metrics,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// StartCheckout reserves the slug and opens a hosted checkout session.
// The pre-check against provisioned weddings is cheap but not
// authoritative; the reservation insert and, later, the weddings table
// are the real serialization points.
func (s *Service) StartCheckout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResult, error) {
	if err := validateCheckout(&req); err != nil {
		return nil, err
	}

	taken, err := s.weddings.SlugExists(ctx, req.Slug)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrSlugTaken
	}

	session, err := s.payments.CreateCheckoutSession(ctx, paymentdomain.CreateCheckoutParams{
		CustomerEmail: req.Email,
		PriceID:       s.cfg.Stripe.PriceID,
		SuccessURL:    s.cfg.Stripe.SuccessURL,
		CancelURL:     s.cfg.Stripe.CancelURL,
		Metadata: map[string]string{
			paymentdomain.MetadataTypeKey:  paymentdomain.MetadataSignup,
			paymentdomain.MetadataSlugKey:  req.Slug,
			paymentdomain.MetadataEmailKey: req.Email,
		},
	})
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	signup := &domain.PendingSignup{
		ID:               s.genID.Generate(),
		PaymentSessionID: session.ID,
		Email:            req.Email,
		PartnerNameOne:   req.PartnerNameOne,
		PartnerNameTwo:   req.PartnerNameTwo,
		Slug:             req.Slug,
		ThemeID:          req.ThemeID,
		EventDate:        req.EventDate,
		CheckoutStatus:   domain.CheckoutStatusPending,
		ExpiresAt:        now.Add(time.Duration(s.cfg.Signup.ReservationTTLHours) * time.Hour),
	}
	if err := s.repo.Create(ctx, signup); err != nil {
		if errors.Is(err, domain.ErrSlugReserved) {
			// The checkout session at the processor is abandoned and
			// expires on its own; it is not actively cancelled.
			s.log.Info("slug reserved by concurrent signup, abandoning checkout session",
				zap.String("slug", req.Slug),
				zap.String("session_id", session.ID),
			)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.CheckoutsStarted.WithLabelValues(req.ThemeID).Inc()
	}
	return &domain.CheckoutResult{SessionID: session.ID, URL: session.URL}, nil
}

var reservedSlugs = map[string]struct{}{
	"admin":    {},
	"api":      {},
	"app":      {},
	"assets":   {},
	"checkout": {},
	"health":   {},
	"login":    {},
	"metrics":  {},
	"signup":   {},
	"static":   {},
	"webhook":  {},
	"www":      {},
}

func validateCheckout(req *domain.CheckoutRequest) error {
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return domain.ErrInvalidEmail
	}
	if len(req.Password) < 8 {
		return domain.ErrInvalidPassword
	}

	req.PartnerNameOne = strings.TrimSpace(req.PartnerNameOne)
	req.PartnerNameTwo = strings.TrimSpace(req.PartnerNameTwo)
	if req.PartnerNameOne == "" || req.PartnerNameTwo == "" {
		return domain.ErrInvalidPartnerNames
	}

	req.ThemeID = strings.TrimSpace(req.ThemeID)
	if req.ThemeID == "" {
		return domain.ErrInvalidTheme
	}

	req.Slug = strings.TrimSpace(strings.ToLower(req.Slug))
	if len(req.Slug) < 3 || len(req.Slug) > 63 || !gosslug.IsSlug(req.Slug) {
		return domain.ErrInvalidSlug
	}
	if _, reserved := reservedSlugs[req.Slug]; reserved {
		return domain.ErrInvalidSlug
	}
	return nil
}

func (s *Service) redirectFor(slug string) string {
	return fmt.Sprintf("%s/%s", s.cfg.BaseURL, slug)
}
