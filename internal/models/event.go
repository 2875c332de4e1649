package models

// EventKind is the processor-independent classification of a webhook event.
type EventKind string

const (
	EventCheckoutCompleted EventKind = "checkout.completed"
	EventPaymentFailed     EventKind = "payment.failed"
	EventIgnored           EventKind = "ignored"
)

// PaymentEvent is a verified webhook event reduced to the fields fulfillment needs.
type PaymentEvent struct {
	ID           string    `json:"id"`
	Kind         EventKind `json:"kind"`
	Type         string    `json:"type"`
	SessionID    string    `json:"session_id,omitempty"`
	Subscription string    `json:"subscription_id,omitempty"`
	PaymentID    string    `json:"payment_id,omitempty"`
	Package      string    `json:"package,omitempty"`
	BusinessName string    `json:"business_name"`
	Industry     string    `json:"industry"`
	Email        string    `json:"email,omitempty"`
	AmountCents  int64     `json:"amount_cents"`
	Currency     string    `json:"currency,omitempty"`
	FailureCode  string    `json:"failure_code,omitempty"`

	// Renewal marks a recurring subscription charge, which is recorded but
	// never triggers a build.
	Renewal bool `json:"renewal,omitempty"`
}

// Profile returns the business profile carried in the event metadata.
func (e PaymentEvent) Profile() BusinessProfile {
	return BusinessProfile{
		Name:     e.BusinessName,
		Industry: e.Industry,
		Email:    e.Email,
	}
}

// AmountUSD converts the minor-unit amount to dollars.
func (e PaymentEvent) AmountUSD() float64 {
	return float64(e.AmountCents) / 100
}

// FulfillmentKeys returns the identifiers that tie a completed checkout to a
// single build: the checkout session and, for subscriptions, the
// subscription. Renewal invoices share the subscription key.
func (e PaymentEvent) FulfillmentKeys() []string {
	var keys []string
	if e.SessionID != "" {
		keys = append(keys, e.SessionID)
	}
	if e.Subscription != "" {
		keys = append(keys, e.Subscription)
	}
	return keys
}
