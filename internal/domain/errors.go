package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound       = errors.New("record not found")
	ErrEditConflict         = errors.New("edit conflict")
	ErrDuplicateWebhook     = errors.New("webhook already processed")
	ErrRefundExceedsBalance = errors.New("refund amount exceeds remaining balance")
)

// ErrorKind classifies a failure independently of which provider produced it.
// The retry executor consults only the kind's retryability; it never inspects
// provider-specific error shapes.
type ErrorKind string

const (
	ErrKindConfigurationMissing ErrorKind = "configuration_missing"
	ErrKindValidation           ErrorKind = "validation"
	ErrKindNetwork              ErrorKind = "network"
	ErrKindGateway              ErrorKind = "gateway"
	ErrKindWebhookVerification  ErrorKind = "webhook_verification_failed"
	ErrKindInvalidState         ErrorKind = "invalid_state"
	ErrKindRefundWindowExpired  ErrorKind = "refund_window_expired"
	ErrKindRefundNotSupported   ErrorKind = "refund_not_supported"
	ErrKindUnknown              ErrorKind = "unknown"
)

// GatewayError is the shared error taxonomy. Adapter-level errors are always
// classified into it before they reach the retry executor.
type GatewayError struct {
	Kind    ErrorKind
	Method  PaymentMethod
	Message string
	// Transient marks a gateway business failure the provider explicitly
	// flagged as temporary. Network errors are retryable regardless.
	Transient bool
	Err       error
}

func (e *GatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Method, e.Message, e.Err)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Method, e.Message)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Retryable() bool {
	switch e.Kind {
	case ErrKindNetwork:
		return true
	case ErrKindGateway, ErrKindUnknown:
		return e.Transient
	default:
		return false
	}
}

func NewConfigurationMissingError(method PaymentMethod) *GatewayError {
	return &GatewayError{Kind: ErrKindConfigurationMissing, Method: method, Message: "payment method is not configured"}
}

func NewValidationError(method PaymentMethod, message string) *GatewayError {
	return &GatewayError{Kind: ErrKindValidation, Method: method, Message: message}
}

func NewNetworkError(method PaymentMethod, err error) *GatewayError {
	return &GatewayError{Kind: ErrKindNetwork, Method: method, Message: "gateway unreachable", Err: err}
}

func NewGatewayFailure(method PaymentMethod, message string, transient bool, err error) *GatewayError {
	return &GatewayError{Kind: ErrKindGateway, Method: method, Message: message, Transient: transient, Err: err}
}

func NewWebhookVerificationError(method PaymentMethod, message string) *GatewayError {
	return &GatewayError{Kind: ErrKindWebhookVerification, Method: method, Message: message}
}

func NewInvalidStateError(method PaymentMethod, message string) *GatewayError {
	return &GatewayError{Kind: ErrKindInvalidState, Method: method, Message: message}
}

func NewRefundWindowExpiredError(method PaymentMethod, message string) *GatewayError {
	return &GatewayError{Kind: ErrKindRefundWindowExpired, Method: method, Message: message}
}

func NewRefundNotSupportedError(method PaymentMethod) *GatewayError {
	return &GatewayError{Kind: ErrKindRefundNotSupported, Method: method, Message: "refunds are not supported by this payment method"}
}

// ClassifyUnknown wraps an unclassified error so that the topmost router
// layer treats it as retryable by default. Adapters must never rely on this;
// they classify their own failures.
func ClassifyUnknown(method PaymentMethod, err error) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &GatewayError{Kind: ErrKindUnknown, Method: method, Message: "unclassified gateway failure", Transient: true, Err: err}
}

// IsRetryable reports whether err is a classified, retryable gateway error.
// Unclassified errors are not retryable here; only the router layer promotes
// them to retryable via ClassifyUnknown.
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable()
	}
	return false
}

// ErrorKindOf extracts the taxonomy kind, defaulting to unknown.
func ErrorKindOf(err error) ErrorKind {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return ErrKindUnknown
}
