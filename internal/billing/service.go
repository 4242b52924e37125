package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"textlens-backend/internal/credits"
	"textlens-backend/internal/shared/telemetry"
)

// Pack is a purchasable bundle of analysis credits.
type Pack struct {
	ID       string
	PriceID  string
	Credits  int
	Unlocks  bool // grants unlimited access instead of a balance top-up
	Label    string
}

// DefaultPacks returns the stock credit packs. Price IDs come from the
// Stripe dashboard via environment variables when set.
func DefaultPacks() []Pack {
	return []Pack{
		{ID: "starter", PriceID: priceID("STRIPE_PRICE_STARTER"), Credits: 10, Label: "Starter (10 credits)"},
		{ID: "pro", PriceID: priceID("STRIPE_PRICE_PRO"), Credits: 50, Label: "Pro (50 credits)"},
		{ID: "unlimited", PriceID: priceID("STRIPE_PRICE_UNLIMITED"), Unlocks: true, Label: "Unlimited"},
	}
}

func priceID(envKey string) string {
	return os.Getenv(envKey)
}

// ErrUnknownPack is returned for a checkout request naming no configured pack.
var ErrUnknownPack = errors.New("unknown credit pack")

// ErrNotConfigured is returned when Stripe credentials are absent.
var ErrNotConfigured = errors.New("billing is not configured")

// Service creates checkout sessions and applies completed purchases.
type Service struct {
	api           *client.API
	webhookSecret string
	successURL    string
	cancelURL     string
	packs         map[string]Pack
	credits       *credits.Service
}

// Config carries the Stripe wiring for the billing service.
type Config struct {
	APIKey        string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
	Packs         []Pack
}

// NewService constructs a billing Service. A missing API key yields a service
// whose operations return ErrNotConfigured, so the rest of the app can run
// without Stripe credentials.
func NewService(cfg Config, creditSvc *credits.Service) *Service {
	s := &Service{
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		packs:         make(map[string]Pack, len(cfg.Packs)),
		credits:       creditSvc,
	}
	for _, pack := range cfg.Packs {
		s.packs[pack.ID] = pack
	}
	if cfg.APIKey != "" {
		api := &client.API{}
		api.Init(cfg.APIKey, nil)
		s.api = api
	}
	return s
}

// Configured reports whether Stripe credentials are present.
func (s *Service) Configured() bool {
	return s.api != nil
}

// Packs lists the configured credit packs.
func (s *Service) Packs() []Pack {
	out := make([]Pack, 0, len(s.packs))
	for _, pack := range s.packs {
		out = append(out, pack)
	}
	return out
}

// CreateCheckout starts a Stripe Checkout session for the given pack and
// returns the hosted payment URL.
func (s *Service) CreateCheckout(ctx context.Context, userID, packID string) (string, error) {
	if s.api == nil {
		return "", ErrNotConfigured
	}
	pack, ok := s.packs[packID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(pack.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)
	params.AddMetadata("pack_id", pack.ID)

	session, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return session.URL, nil
}

// HandleWebhook verifies a Stripe webhook payload and applies completed
// checkouts to the buyer's credit account.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return ErrNotConfigured
	}

	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return fmt.Errorf("verify webhook: %w", err)
	}

	if event.Type != "checkout.session.completed" {
		telemetry.Info("billing.webhook_ignored", map[string]any{"type": event.Type})
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("decode checkout session: %w", err)
	}

	userID := session.Metadata["user_id"]
	packID := session.Metadata["pack_id"]
	pack, ok := s.packs[packID]
	if userID == "" || !ok {
		telemetry.Warn("billing.webhook_unmatched", map[string]any{
			"session_id": session.ID,
			"pack_id":    packID,
		})
		return nil
	}

	if pack.Unlocks {
		if _, err := s.credits.SetUnlimited(ctx, userID, true); err != nil {
			return fmt.Errorf("apply unlimited pack: %w", err)
		}
	} else if _, err := s.credits.Grant(ctx, userID, pack.Credits); err != nil {
		return fmt.Errorf("apply credit pack: %w", err)
	}

	telemetry.Info("billing.purchase_applied", map[string]any{
		"user_id": userID,
		"pack_id": pack.ID,
	})
	return nil
}
