// Package payments wraps the payment processor: it creates hosted checkout
// sessions and verifies and decodes signed webhook events.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/pkg/config"
)

// SignatureHeader carries the webhook signature.
const SignatureHeader = "Stripe-Signature"

// DefaultTolerance is the maximum age of a signed webhook timestamp.
const DefaultTolerance = 5 * time.Minute

// Package is one purchasable website package.
type Package struct {
	Name    string                     `json:"name"`
	PriceID string                     `json:"-"`
	Mode    stripe.CheckoutSessionMode `json:"mode"`
}

var packageModes = map[string]stripe.CheckoutSessionMode{
	config.PackagePremium:      stripe.CheckoutSessionModePayment,
	config.PackageStandard:     stripe.CheckoutSessionModePayment,
	config.PackageAllInclusive: stripe.CheckoutSessionModeSubscription,
}

// Catalog builds the offered packages from the configured price ids.
// Packages without a price or without a known mode are not offered.
func Catalog(prices map[string]string) map[string]Package {
	out := make(map[string]Package, len(prices))
	for name, price := range prices {
		mode, ok := packageModes[name]
		if !ok || price == "" {
			continue
		}
		out[name] = Package{Name: name, PriceID: price, Mode: mode}
	}
	return out
}

// CheckoutRequest is the client payload for a new checkout.
type CheckoutRequest struct {
	Package      string `json:"package"`
	BusinessName string `json:"business_name"`
	Industry     string `json:"industry"`
	Email        string `json:"email"`

	// BaseURL is the request origin, used for redirects when the gateway has
	// no configured public origin.
	BaseURL string `json:"-"`
}

// CheckoutSession is returned to the client to redirect into the hosted flow.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// SessionCreator creates hosted checkout sessions. The processor SDK's
// checkout session client satisfies it.
type SessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Gateway is the payment processor adapter.
type Gateway struct {
	sessions      SessionCreator
	webhookSecret string
	packages      map[string]Package
	baseURL       string
	tolerance     time.Duration
	logger        *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithSessionCreator replaces the SDK session client.
func WithSessionCreator(s SessionCreator) Option {
	return func(g *Gateway) { g.sessions = s }
}

// WithTolerance overrides the webhook timestamp tolerance.
func WithTolerance(d time.Duration) Option {
	return func(g *Gateway) { g.tolerance = d }
}

// NewGateway creates a Gateway. baseURL is the public origin used for the
// success and cancel redirects; when empty each request supplies its own.
func NewGateway(cfg config.StripeConfig, baseURL string, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{
		webhookSecret: cfg.WebhookSecret,
		packages:      Catalog(cfg.Prices),
		baseURL:       strings.TrimRight(baseURL, "/"),
		tolerance:     DefaultTolerance,
		logger:        logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.sessions == nil {
		g.sessions = client.New(cfg.SecretKey, nil).CheckoutSessions
	}
	return g
}

// Packages returns the offered package names in sorted order.
func (g *Gateway) Packages() []string {
	names := make([]string, 0, len(g.packages))
	for name := range g.packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateCheckoutSession opens a hosted checkout for the requested package.
// The business fields travel as metadata so the webhook can rebuild the
// profile.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Package == "" {
		req.Package = config.PackageAllInclusive
	}
	pkg, ok := g.packages[req.Package]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, req.Package)
	}

	base := g.baseURL
	if base == "" {
		base = strings.TrimRight(req.BaseURL, "/")
	}

	metadata := map[string]string{
		"package":       req.Package,
		"business_name": req.BusinessName,
		"industry":      req.Industry,
		"email":         req.Email,
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(pkg.PriceID), Quantity: stripe.Int64(1)},
		},
		Mode:       stripe.String(string(pkg.Mode)),
		SuccessURL: stripe.String(base + "/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(base + "/cancel"),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	// Copy the metadata onto the objects later events are about, so
	// invoice and payment intent events carry the business too.
	switch pkg.Mode {
	case stripe.CheckoutSessionModeSubscription:
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{Metadata: metadata}
	case stripe.CheckoutSessionModePayment:
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{Metadata: metadata}
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}

	sess, err := g.sessions.New(params)
	if err != nil {
		g.logger.Error("creating checkout session failed", "package", req.Package, "error", err)
		return nil, vendorError(err)
	}

	g.logger.Info("checkout session created",
		"session_id", sess.ID,
		"package", req.Package,
		"mode", pkg.Mode,
	)
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// Event kinds keyed by processor event type.
var eventKinds = map[string]models.EventKind{
	"checkout.session.completed":           models.EventCheckoutCompleted,
	"invoice.paid":                         models.EventCheckoutCompleted,
	"payment_intent.payment_failed":        models.EventPaymentFailed,
	"checkout.session.async_payment_failed": models.EventPaymentFailed,
}

// KindOf maps a processor event type to its kind.
func KindOf(eventType string) models.EventKind {
	if k, ok := eventKinds[eventType]; ok {
		return k
	}
	return models.EventIgnored
}
