package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/buildswift/orchestrator/internal/models"
	"github.com/buildswift/orchestrator/pkg/config"
	"github.com/buildswift/orchestrator/pkg/logger"
)

const testWebhookSecret = "whsec_test_secret"

type fakeSessions struct {
	params *stripe.CheckoutSessionParams
	err    error
}

func (f *fakeSessions) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.params = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.com/c/pay/cs_test_123"}, nil
}

func newTestGateway(sessions SessionCreator) *Gateway {
	return NewGateway(config.StripeConfig{
		SecretKey:     "sk_test_x",
		WebhookSecret: testWebhookSecret,
		Prices: map[string]string{
			config.PackagePremium:      "price_premium",
			config.PackageStandard:     "price_standard",
			config.PackageAllInclusive: "price_all",
		},
	}, "https://buildswift.test/", logger.Discard(), WithSessionCreator(sessions))
}

// signPayload builds a signature header the way the processor does:
// t=<unix>,v1=hex(hmac_sha256(secret, "<t>.<payload>")).
func signPayload(payload []byte, secret string, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestCatalogSkipsUnpricedPackages(t *testing.T) {
	cat := Catalog(map[string]string{
		config.PackagePremium:      "price_p",
		config.PackageAllInclusive: "",
		"platinum":                 "price_x",
	})
	require.Len(t, cat, 1)
	assert.Equal(t, stripe.CheckoutSessionModePayment, cat[config.PackagePremium].Mode)
}

func TestCreateCheckoutSession(t *testing.T) {
	sessions := &fakeSessions{}
	g := newTestGateway(sessions)

	sess, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{
		Package:      config.PackagePremium,
		BusinessName: "Bella's Italian Kitchen",
		Industry:     "restaurant",
		Email:        "b@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_123", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_123", sess.URL)

	p := sessions.params
	require.NotNil(t, p)
	assert.Equal(t, "payment", *p.Mode)
	assert.Equal(t, "https://buildswift.test/success?session_id={CHECKOUT_SESSION_ID}", *p.SuccessURL)
	assert.Equal(t, "https://buildswift.test/cancel", *p.CancelURL)
	assert.Equal(t, "b@example.com", *p.CustomerEmail)
	require.Len(t, p.LineItems, 1)
	assert.Equal(t, "price_premium", *p.LineItems[0].Price)
	assert.Equal(t, int64(1), *p.LineItems[0].Quantity)
	assert.Equal(t, "Bella's Italian Kitchen", p.Metadata["business_name"])
	assert.Equal(t, "restaurant", p.Metadata["industry"])
	assert.Equal(t, config.PackagePremium, p.Metadata["package"])
	require.NotNil(t, p.PaymentIntentData)
	assert.Equal(t, "restaurant", p.PaymentIntentData.Metadata["industry"])
	assert.Nil(t, p.SubscriptionData)
}

func TestCreateCheckoutSessionDefaultsToAllInclusive(t *testing.T) {
	sessions := &fakeSessions{}
	g := newTestGateway(sessions)

	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{BusinessName: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "subscription", *sessions.params.Mode)
	assert.Equal(t, "price_all", *sessions.params.LineItems[0].Price)
	assert.Nil(t, sessions.params.CustomerEmail)
	require.NotNil(t, sessions.params.SubscriptionData)
	assert.Equal(t, "Acme", sessions.params.SubscriptionData.Metadata["business_name"])
}

func TestCreateCheckoutSessionUnknownPackage(t *testing.T) {
	sessions := &fakeSessions{}
	g := newTestGateway(sessions)

	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Package: "gold"})
	assert.ErrorIs(t, err, ErrUnknownPackage)
	assert.Nil(t, sessions.params)
}

func TestCreateCheckoutSessionVendorError(t *testing.T) {
	g := newTestGateway(&fakeSessions{err: &stripe.Error{
		HTTPStatusCode: 402,
		Code:           stripe.ErrorCodeCardDeclined,
		Msg:            "Your card was declined.",
	}})

	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Package: config.PackageStandard})
	var ve *VendorError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 402, ve.StatusCode)
	assert.Equal(t, "card_declined", ve.Code)
	assert.False(t, ve.Retryable())
}

const sessionCompletedPayload = `{
  "id": "evt_1",
  "object": "event",
  "type": "checkout.session.completed",
  "data": {"object": {
    "id": "cs_test_abc",
    "object": "checkout.session",
    "payment_intent": "pi_123",
    "subscription": null,
    "amount_total": 49900,
    "currency": "usd",
    "customer_email": "owner@example.com",
    "metadata": {"business_name": "Bella's Italian Kitchen", "industry": "restaurant", "package": "premium", "email": ""}
  }}
}`

func TestVerifyWebhookCheckoutCompleted(t *testing.T) {
	g := newTestGateway(&fakeSessions{})
	payload := []byte(sessionCompletedPayload)

	evt, err := g.VerifyWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, models.EventCheckoutCompleted, evt.Kind)
	assert.Equal(t, "checkout.session.completed", evt.Type)
	assert.Equal(t, "cs_test_abc", evt.SessionID)
	assert.Equal(t, "pi_123", evt.PaymentID)
	assert.Empty(t, evt.Subscription)
	assert.Equal(t, "Bella's Italian Kitchen", evt.BusinessName)
	assert.Equal(t, "restaurant", evt.Industry)
	assert.Equal(t, "owner@example.com", evt.Email)
	assert.Equal(t, "premium", evt.Package)
	assert.Equal(t, int64(49900), evt.AmountCents)
	assert.InDelta(t, 499.0, evt.AmountUSD(), 1e-9)
	assert.Equal(t, []string{"cs_test_abc"}, evt.FulfillmentKeys())
}

func TestVerifyWebhookInvoicePaidUsesSubscriptionMetadata(t *testing.T) {
	g := newTestGateway(&fakeSessions{})
	payload := []byte(`{"id":"evt_2","object":"event","type":"invoice.paid","data":{"object":{
		"id":"in_1","object":"invoice","subscription":"sub_9","payment_intent":{"id":"pi_9"},
		"amount_paid":9900,"currency":"usd","customer_email":"c@example.com","metadata":{},
		"subscription_details":{"metadata":{"business_name":"Acme Plumbing","industry":"plumber"}}}}}`)

	evt, err := g.VerifyWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, models.EventCheckoutCompleted, evt.Kind)
	assert.Equal(t, "sub_9", evt.Subscription)
	assert.Equal(t, "pi_9", evt.PaymentID)
	assert.Equal(t, "Acme Plumbing", evt.BusinessName)
	assert.Equal(t, "plumber", evt.Industry)
	assert.Equal(t, "c@example.com", evt.Email)
	assert.Equal(t, []string{"sub_9"}, evt.FulfillmentKeys())
	assert.False(t, evt.Renewal)
}

func TestVerifyWebhookRenewalInvoice(t *testing.T) {
	g := newTestGateway(&fakeSessions{})
	payload := []byte(`{"id":"evt_6","object":"event","type":"invoice.paid","data":{"object":{
		"id":"in_2","subscription":"sub_9","billing_reason":"subscription_cycle","amount_paid":9900}}}`)

	evt, err := g.VerifyWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.True(t, evt.Renewal)
	assert.Equal(t, "in_2", evt.PaymentID)
}

func TestVerifyWebhookDefaultsMissingMetadata(t *testing.T) {
	g := newTestGateway(&fakeSessions{})
	payload := []byte(`{"id":"evt_3","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_x","amount_total":100}}}`)

	evt, err := g.VerifyWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, UnknownBusiness, evt.BusinessName)
	assert.Equal(t, models.DefaultIndustry, evt.Industry)
}

func TestVerifyWebhookPaymentFailed(t *testing.T) {
	g := newTestGateway(&fakeSessions{})
	payload := []byte(`{"id":"evt_4","object":"event","type":"payment_intent.payment_failed","data":{"object":{
		"id":"pi_7","amount":49900,"currency":"usd","last_payment_error":{"code":"card_declined","decline_code":"insufficient_funds"},
		"metadata":{"business_name":"Acme"}}}}`)

	evt, err := g.VerifyWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, models.EventPaymentFailed, evt.Kind)
	assert.Equal(t, "pi_7", evt.PaymentID)
	assert.Equal(t, "insufficient_funds", evt.FailureCode)
	assert.Equal(t, "Acme", evt.BusinessName)
}

func TestVerifyWebhookIgnoredType(t *testing.T) {
	g := newTestGateway(&fakeSessions{})
	payload := []byte(`{"id":"evt_5","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)

	evt, err := g.VerifyWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, models.EventIgnored, evt.Kind)
	assert.Equal(t, "customer.created", evt.Type)
}

func TestVerifyWebhookRejectsBadSignatures(t *testing.T) {
	g := newTestGateway(&fakeSessions{})
	payload := []byte(sessionCompletedPayload)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"garbage", "not-a-signature"},
		{"wrong secret", signPayload(payload, "whsec_other", time.Now())},
		{"stale", signPayload(payload, testWebhookSecret, time.Now().Add(-10*time.Minute))},
		{"tampered body", signPayload([]byte(`{"id":"evt_1"}`), testWebhookSecret, time.Now())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, err := g.VerifyWebhook(payload, tt.header)
			assert.Nil(t, evt)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestVerifyWebhookSignedGarbage(t *testing.T) {
	g := newTestGateway(&fakeSessions{})
	payload := []byte(`{not json`)

	_, err := g.VerifyWebhook(payload, signPayload(payload, testWebhookSecret, time.Now()))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, models.EventCheckoutCompleted, KindOf("checkout.session.completed"))
	assert.Equal(t, models.EventCheckoutCompleted, KindOf("invoice.paid"))
	assert.Equal(t, models.EventPaymentFailed, KindOf("checkout.session.async_payment_failed"))
	assert.Equal(t, models.EventIgnored, KindOf("charge.refunded"))
}
