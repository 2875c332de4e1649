package payments

import (
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v76/webhook"
	"github.com/tidwall/gjson"

	"github.com/buildswift/orchestrator/internal/models"
)

// Business defaults used when a paid event carries no metadata.
const (
	UnknownBusiness = "Unknown"
)

// VerifyWebhook checks the signature of a webhook body and decodes it. An
// unverified body is never decoded.
func (g *Gateway) VerifyWebhook(payload []byte, signature string) (*models.PaymentEvent, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		Tolerance:                g.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotSigned),
			errors.Is(err, webhook.ErrInvalidHeader),
			errors.Is(err, webhook.ErrNoValidSignature),
			errors.Is(err, webhook.ErrTooOld):
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if evt.ID == "" || evt.Data == nil {
		return nil, fmt.Errorf("%w: event has no id or data", ErrInvalidPayload)
	}

	event := &models.PaymentEvent{
		ID:   evt.ID,
		Type: string(evt.Type),
		Kind: KindOf(string(evt.Type)),
	}
	if event.Kind == models.EventIgnored {
		return event, nil
	}

	obj := gjson.ParseBytes(evt.Data.Raw)
	if !obj.IsObject() {
		return nil, fmt.Errorf("%w: event data is not an object", ErrInvalidPayload)
	}
	switch {
	case strings.HasPrefix(event.Type, "checkout.session."):
		decodeSession(event, obj)
	case strings.HasPrefix(event.Type, "invoice."):
		decodeInvoice(event, obj)
	case strings.HasPrefix(event.Type, "payment_intent."):
		decodePaymentIntent(event, obj)
	}
	applyDefaults(event)

	g.logger.Info("webhook verified",
		"event_id", event.ID,
		"type", event.Type,
		"kind", event.Kind,
	)
	return event, nil
}

func decodeSession(e *models.PaymentEvent, obj gjson.Result) {
	e.SessionID = obj.Get("id").String()
	e.PaymentID = idOf(obj.Get("payment_intent"))
	e.Subscription = idOf(obj.Get("subscription"))
	e.AmountCents = obj.Get("amount_total").Int()
	e.Currency = obj.Get("currency").String()
	applyMetadata(e, obj.Get("metadata"))
	e.Email = firstNonEmpty(e.Email, obj.Get("customer_email").String(), obj.Get("customer_details.email").String())
}

func decodeInvoice(e *models.PaymentEvent, obj gjson.Result) {
	e.PaymentID = idOf(obj.Get("payment_intent"))
	if e.PaymentID == "" {
		e.PaymentID = obj.Get("id").String()
	}
	e.Subscription = idOf(obj.Get("subscription"))
	e.Renewal = obj.Get("billing_reason").String() == "subscription_cycle"
	e.AmountCents = obj.Get("amount_paid").Int()
	e.Currency = obj.Get("currency").String()
	applyMetadata(e, obj.Get("metadata"))
	applyMetadata(e, obj.Get("subscription_details.metadata"))
	e.Email = firstNonEmpty(e.Email, obj.Get("customer_email").String())
}

func decodePaymentIntent(e *models.PaymentEvent, obj gjson.Result) {
	e.PaymentID = obj.Get("id").String()
	e.AmountCents = obj.Get("amount").Int()
	e.Currency = obj.Get("currency").String()
	e.FailureCode = firstNonEmpty(
		obj.Get("last_payment_error.decline_code").String(),
		obj.Get("last_payment_error.code").String(),
	)
	applyMetadata(e, obj.Get("metadata"))
	e.Email = firstNonEmpty(e.Email, obj.Get("receipt_email").String())
}

// applyMetadata fills fields still empty from a metadata object.
func applyMetadata(e *models.PaymentEvent, md gjson.Result) {
	if !md.IsObject() {
		return
	}
	e.BusinessName = firstNonEmpty(e.BusinessName, md.Get("business_name").String())
	e.Industry = firstNonEmpty(e.Industry, md.Get("industry").String())
	e.Email = firstNonEmpty(e.Email, md.Get("email").String())
	e.Package = firstNonEmpty(e.Package, md.Get("package").String())
}

func applyDefaults(e *models.PaymentEvent) {
	e.BusinessName = strings.TrimSpace(e.BusinessName)
	if e.BusinessName == "" {
		e.BusinessName = UnknownBusiness
	}
	if strings.TrimSpace(e.Industry) == "" {
		e.Industry = models.DefaultIndustry
	}
}

// idOf returns the id of a field that is either an id string or an
// expanded object.
func idOf(r gjson.Result) string {
	if r.IsObject() {
		return r.Get("id").String()
	}
	return r.String()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
