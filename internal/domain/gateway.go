package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// CreatePaymentParams is the uniform input every adapter accepts. Adapters
// that talk to card networks additionally require UserEmail; the router
// rejects such requests before any attempt is made.
type CreatePaymentParams struct {
	UserID        int64
	ApplicationID int64
	Amount        decimal.Decimal
	Currency      string
	ReturnURL     string
	Description   string
	UserEmail     string
}

type CreatePaymentResult struct {
	PaymentURL    string
	TransactionID string
	GatewayData   GatewayData
}

// WebhookEvent is an adapter's normalized view of one provider notification.
type WebhookEvent struct {
	Type          string
	TransactionID string
	Status        PaymentStatus
	FailureReason string
}

// MethodInfo is the descriptive metadata surface exposed to callers such as
// an admin UI. Purely informational, no side effects.
type MethodInfo struct {
	Method          PaymentMethod `json:"method"`
	DisplayName     string        `json:"displayName"`
	Description     string        `json:"description"`
	Currencies      []string      `json:"currencies"`
	SupportsRefunds bool          `json:"supportsRefunds"`
	RequiresEmail   bool          `json:"requiresEmail"`
}

// PaymentGateway is the contract every provider adapter implements. The core
// depends only on this interface; wire-level request shapes, HMAC
// construction and card-network specifics stay inside the adapter.
type PaymentGateway interface {
	Method() PaymentMethod
	Info() MethodInfo
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*CreatePaymentResult, error)
	VerifyPayment(ctx context.Context, transactionID string) (bool, error)
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
	CancelPayment(ctx context.Context, transactionID string) error
}

// RefundGateway is the optional refund capability. Adapters that do not
// implement it cause refund requests to fail with ErrKindRefundNotSupported.
type RefundGateway interface {
	CreateRefund(ctx context.Context, transactionID string, amount decimal.Decimal, reason string) (string, error)
}
