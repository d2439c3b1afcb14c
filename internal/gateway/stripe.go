package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/webhook"
	"github.com/visaflow/visaflow-api/internal/domain"
)

const MethodCard domain.PaymentMethod = "card"

// StripeGateway is the card-network adapter. It creates hosted checkout
// sessions, so the caller's email is mandatory (Stripe sends the receipt).
type StripeGateway struct {
	successURL    string
	failureURL    string
	webhookSecret string
}

func NewStripeGateway(successURL, failureURL, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		successURL:    successURL,
		failureURL:    failureURL,
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) Method() domain.PaymentMethod {
	return MethodCard
}

func (g *StripeGateway) Info() domain.MethodInfo {
	return domain.MethodInfo{
		Method:          MethodCard,
		DisplayName:     "Credit / Debit Card",
		Description:     "International cards via Stripe Checkout",
		Currencies:      []string{"USD", "EUR", "GBP"},
		SupportsRefunds: true,
		RequiresEmail:   true,
	}
}

func (g *StripeGateway) CreatePayment(ctx context.Context, params domain.CreatePaymentParams) (*domain.CreatePaymentResult, error) {
	description := params.Description
	if description == "" {
		description = "Visa application fee"
	}

	sessionParams := &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(params.Currency),
					UnitAmount: stripe.Int64(minorUnits(params.Amount)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(g.successURL),
		CancelURL:     stripe.String(g.failureURL),
		CustomerEmail: stripe.String(params.UserEmail),
		Metadata: map[string]string{
			"user_id":        fmt.Sprintf("%d", params.UserID),
			"application_id": fmt.Sprintf("%d", params.ApplicationID),
		},
	}

	sess, err := session.New(sessionParams)
	if err != nil {
		return nil, g.classify(err)
	}

	data := domain.GatewayData{"checkout_session_id": sess.ID}
	if sess.PaymentIntent != nil {
		data["payment_intent_id"] = sess.PaymentIntent.ID
	}

	return &domain.CreatePaymentResult{
		PaymentURL:    sess.URL,
		TransactionID: sess.ID,
		GatewayData:   data,
	}, nil
}

func (g *StripeGateway) VerifyPayment(ctx context.Context, transactionID string) (bool, error) {
	sess, err := session.Get(transactionID, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return false, g.classify(err)
	}
	return sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid, nil
}

func (g *StripeGateway) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.NewGatewayFailure(MethodCard, "malformed webhook payload", false, err)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, domain.NewGatewayFailure(MethodCard, "malformed webhook object", false, err)
	}

	normalized := &domain.WebhookEvent{
		Type:          string(event.Type),
		TransactionID: sess.ID,
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		normalized.Status = domain.PaymentStatusCompleted
	case "checkout.session.expired":
		normalized.Status = domain.PaymentStatusCancelled
		normalized.FailureReason = "checkout session expired"
	case "checkout.session.async_payment_failed":
		normalized.Status = domain.PaymentStatusFailed
		normalized.FailureReason = "asynchronous payment failed"
	}

	return normalized, nil
}

func (g *StripeGateway) CancelPayment(ctx context.Context, transactionID string) error {
	_, err := session.Expire(transactionID, &stripe.CheckoutSessionExpireParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return g.classify(err)
	}
	return nil
}

func (g *StripeGateway) CreateRefund(ctx context.Context, transactionID string, amount decimal.Decimal, reason string) (string, error) {
	sess, err := session.Get(transactionID, &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		return "", g.classify(err)
	}
	if sess.PaymentIntent == nil {
		return "", domain.NewInvalidStateError(MethodCard, "checkout session has no payment intent to refund")
	}

	params := &stripe.RefundParams{
		Params:        stripe.Params{Context: ctx},
		PaymentIntent: stripe.String(sess.PaymentIntent.ID),
		Amount:        stripe.Int64(minorUnits(amount)),
	}
	if reason != "" {
		params.Metadata = map[string]string{"reason": reason}
	}

	ref, err := refund.New(params)
	if err != nil {
		return "", g.classify(err)
	}

	return ref.ID, nil
}

// classify maps Stripe's error shapes into the shared taxonomy before they
// reach the retry executor.
func (g *StripeGateway) classify(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		// Transport-level failure: timeout, DNS, connection reset.
		return domain.NewNetworkError(MethodCard, err)
	}

	switch stripeErr.Type {
	case stripe.ErrorTypeCard:
		return domain.NewGatewayFailure(MethodCard, "card declined", false, err)
	case stripe.ErrorTypeInvalidRequest:
		return domain.NewValidationError(MethodCard, stripeErr.Msg)
	case stripe.ErrorTypeAPI:
		// Stripe-side 5xx, safe to retry.
		return domain.NewGatewayFailure(MethodCard, "stripe api error", true, err)
	default:
		return domain.NewGatewayFailure(MethodCard, "stripe error", false, err)
	}
}

// StripeWebhookVerifier checks Stripe's signed-header scheme. It plugs into
// the webhook security service as the verifier for the card method.
type StripeWebhookVerifier struct {
	secret string
}

func NewStripeWebhookVerifier(secret string) *StripeWebhookVerifier {
	return &StripeWebhookVerifier{secret: secret}
}

func (v *StripeWebhookVerifier) Verify(payload []byte, signature string) error {
	_, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	return err
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}
