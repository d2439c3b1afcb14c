// Package api holds the request and response shapes of the HTTP surface.
package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	ValidationErrors []ValidationError `json:"validationErrors"`
	RequestId        string            `json:"requestId,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
}

type CreatePaymentRequest struct {
	Method        string          `json:"method" validate:"required"`
	ApplicationId int64           `json:"applicationId" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,positive_amount"`
	Currency      string          `json:"currency" validate:"required,iso4217"`
	ReturnUrl     string          `json:"returnUrl" validate:"required,url"`
	Description   string          `json:"description,omitempty" validate:"omitempty,max=200"`
	UserEmail     string          `json:"userEmail,omitempty" validate:"omitempty,email"`
}

type CreatePaymentResponse struct {
	PaymentId   int64  `json:"paymentId"`
	Method      string `json:"method"`
	Status      string `json:"status"`
	RedirectUrl string `json:"redirectUrl"`
	TraceId     string `json:"traceId"`
}

type PaymentResponse struct {
	Id             int64           `json:"id"`
	ApplicationId  int64           `json:"applicationId"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	Method         string          `json:"method"`
	TransactionId  *string         `json:"transactionId,omitempty"`
	RefundedAmount decimal.Decimal `json:"refundedAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type VerifyPaymentResponse struct {
	Verified bool   `json:"verified"`
	Status   string `json:"status"`
}

type CreateRefundRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty" validate:"omitempty,positive_amount"`
	Reason string           `json:"reason" validate:"required,max=500"`
}

type RefundResponse struct {
	Id               int64           `json:"id"`
	PaymentId        int64           `json:"paymentId"`
	Amount           decimal.Decimal `json:"amount"`
	Reason           string          `json:"reason"`
	InitiatedBy      string          `json:"initiatedBy"`
	Status           string          `json:"status"`
	ExternalRefundId *string         `json:"externalRefundId,omitempty"`
	FailureReason    *string         `json:"failureReason,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
}

type RefundListResponse struct {
	Refunds []RefundResponse `json:"refunds"`
}

type CancelRefundRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type PaymentMethodInfo struct {
	Method          string   `json:"method"`
	DisplayName     string   `json:"displayName"`
	Description     string   `json:"description"`
	Currencies      []string `json:"currencies"`
	SupportsRefunds bool     `json:"supportsRefunds"`
	RequiresEmail   bool     `json:"requiresEmail"`
}

type PaymentMethodsResponse struct {
	Methods []PaymentMethodInfo `json:"methods"`
}

type WebhookResponse struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Error     string `json:"error,omitempty"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}
