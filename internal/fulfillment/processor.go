// Package fulfillment applies verified payment events: a completed checkout
// builds the customer's site and records the payment and deployment, exactly
// once per checkout.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/buildswift/orchestrator/internal/applog"
	"github.com/buildswift/orchestrator/internal/builder"
	"github.com/buildswift/orchestrator/internal/dedupe"
	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/pkg/logger"
)

// Outcome describes what Handle did with an event.
type Outcome string

const (
	// OutcomeProcessed means the event's effects were applied.
	OutcomeProcessed Outcome = "processed"
	// OutcomeRecorded means a renewal payment was logged without a build.
	OutcomeRecorded Outcome = "recorded"
	// OutcomeRejected means the payment was logged but its profile cannot be
	// built; retrying will not help.
	OutcomeRejected Outcome = "rejected"
	// OutcomeDuplicate means the event or its checkout was already handled.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeIgnored means the event kind needs no action.
	OutcomeIgnored Outcome = "ignored"
)

// SiteBuilder builds and publishes a site for a profile.
type SiteBuilder interface {
	Build(ctx context.Context, profile models.BusinessProfile) (*models.BuildArtifact, error)
}

// Result is returned for every handled event.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Slug    string  `json:"slug,omitempty"`
	Domain  string  `json:"domain,omitempty"`
}

// Processor applies payment events idempotently.
type Processor struct {
	builder SiteBuilder
	logs    applog.Store
	seen    *dedupe.Set
	logger  *slog.Logger
}

// New creates a Processor.
func New(b SiteBuilder, logs applog.Store, seen *dedupe.Set, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{builder: b, logs: logs, seen: seen, logger: logger}
}

// Seed marks the events and checkouts already present in the payments log,
// so a restart does not rebuild sites for redelivered events. It returns the
// number of records read.
func (p *Processor) Seed(ctx context.Context) (int, error) {
	records, err := applog.ListAs[models.PaymentRecord](ctx, p.logs, models.LogPayments)
	if err != nil {
		return 0, fmt.Errorf("seeding processed events: %w", err)
	}
	for _, r := range records {
		p.seen.Mark(r.EventID)
		if r.Status == models.PaymentStatusSucceeded && !r.Renewal {
			p.seen.Mark(r.SessionID, r.Subscription)
		}
	}
	return len(records), nil
}

// Handle applies event. Concurrent deliveries of the same checkout share one
// execution; later ones report OutcomeDuplicate. A failed build returns an
// error and leaves the event unprocessed so the processor redelivers it.
func (p *Processor) Handle(ctx context.Context, event *models.PaymentEvent) (*Result, error) {
	if event == nil {
		return nil, errors.New("nil payment event")
	}
	if event.Kind == models.EventIgnored {
		return &Result{Outcome: OutcomeIgnored}, nil
	}
	// Once accepted, the effects run to completion even if the delivery
	// connection drops.
	ctx = context.WithoutCancel(ctx)

	led := false
	v, err, _ := p.seen.Do(flightKey(event), func() (any, error) {
		led = true
		return p.apply(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*Result)
	if !led {
		return &Result{Outcome: OutcomeDuplicate, Slug: res.Slug, Domain: res.Domain}, nil
	}
	return res, nil
}

// flightKey groups deliveries that must not run concurrently: everything
// belonging to one checkout shares its subscription or session key.
func flightKey(e *models.PaymentEvent) string {
	if e.Kind == models.EventCheckoutCompleted && !e.Renewal {
		if keys := e.FulfillmentKeys(); len(keys) > 0 {
			return keys[len(keys)-1]
		}
	}
	return e.ID
}

func (p *Processor) apply(ctx context.Context, e *models.PaymentEvent) (*Result, error) {
	ctx = logger.ContextWithEventID(ctx, e.ID)
	log := logger.Wrap(p.logger).WithContext(ctx).With("type", e.Type)

	if p.seen.Seen(e.ID) {
		log.Info("duplicate event delivery")
		return &Result{Outcome: OutcomeDuplicate}, nil
	}

	switch {
	case e.Kind == models.EventPaymentFailed:
		rec := paymentRecord(e, models.PaymentStatusFailed)
		rec.FailureReason = e.FailureCode
		if err := p.logs.Append(ctx, models.LogPayments, rec); err != nil {
			return nil, err
		}
		p.seen.Mark(e.ID)
		log.Warn("payment failed", "business", e.BusinessName, "reason", e.FailureCode)
		return &Result{Outcome: OutcomeProcessed}, nil

	case e.Renewal:
		if err := p.logs.Append(ctx, models.LogPayments, paymentRecord(e, models.PaymentStatusSucceeded)); err != nil {
			return nil, err
		}
		p.seen.Mark(e.ID)
		log.Info("renewal payment recorded", "subscription", e.Subscription)
		return &Result{Outcome: OutcomeRecorded}, nil
	}

	keys := e.FulfillmentKeys()
	if p.seen.Seen(keys...) {
		p.seen.Mark(e.ID)
		log.Info("checkout already fulfilled", "keys", keys)
		return &Result{Outcome: OutcomeDuplicate}, nil
	}

	profile := e.Profile().WithCheckoutDefaults()
	log.Info("payment received, building site", "business", profile.Name, "industry", profile.Industry)

	art, err := p.builder.Build(ctx, profile)
	if errors.Is(err, builder.ErrInvalidProfile) {
		rec := paymentRecord(e, models.PaymentStatusSucceeded)
		rec.FailureReason = "build skipped: " + err.Error()
		if appendErr := p.logs.Append(ctx, models.LogPayments, rec); appendErr != nil {
			return nil, appendErr
		}
		p.seen.Mark(append(keys, e.ID)...)
		log.Error("paid checkout has an unbuildable profile", "error", err)
		return &Result{Outcome: OutcomeRejected}, nil
	}
	if err != nil {
		log.Error("site build failed", "error", err)
		return nil, err
	}

	if err := p.logs.Append(ctx, models.LogPayments, paymentRecord(e, models.PaymentStatusSucceeded)); err != nil {
		return nil, err
	}
	deployment := &models.DeploymentRecord{
		EventID:   e.ID,
		SessionID: e.SessionID,
		Business:  art.Manifest.Business,
		Slug:      art.Slug,
		Domain:    art.Domain,
		BuildDir:  art.Dir,
		Industry:  art.Manifest.Industry,
		CostUSD:   art.Manifest.CostEstimateUSD,
		Status:    models.DeploymentStatusDeployed,
	}
	if err := p.logs.Append(ctx, models.LogDeployments, deployment); err != nil {
		return nil, err
	}
	p.seen.Mark(append(keys, e.ID)...)

	log.Info("site deployed", "slug", art.Slug, "domain", art.Domain)
	return &Result{Outcome: OutcomeProcessed, Slug: art.Slug, Domain: art.Domain}, nil
}

func paymentRecord(e *models.PaymentEvent, status models.PaymentStatus) *models.PaymentRecord {
	return &models.PaymentRecord{
		EventID:      e.ID,
		EventType:    e.Type,
		SessionID:    e.SessionID,
		Subscription: e.Subscription,
		PaymentID:    e.PaymentID,
		Package:      e.Package,
		BusinessName: e.BusinessName,
		Industry:     e.Industry,
		Email:        e.Email,
		AmountUSD:    e.AmountUSD(),
		Currency:     e.Currency,
		Status:       status,
		Renewal:      e.Renewal,
	}
}
