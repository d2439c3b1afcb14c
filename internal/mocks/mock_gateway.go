package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/visaflow/visaflow-api/internal/domain"
)

// MockGateway is a configurable adapter stub without refund capability.
type MockGateway struct {
	mock.Mock
	GatewayMethod domain.PaymentMethod
	GatewayInfo   domain.MethodInfo
}

func NewMockGateway(method domain.PaymentMethod, requiresEmail bool) *MockGateway {
	return &MockGateway{
		GatewayMethod: method,
		GatewayInfo: domain.MethodInfo{
			Method:        method,
			DisplayName:   string(method),
			Currencies:    []string{"USD"},
			RequiresEmail: requiresEmail,
		},
	}
}

func (m *MockGateway) Method() domain.PaymentMethod {
	return m.GatewayMethod
}

func (m *MockGateway) Info() domain.MethodInfo {
	return m.GatewayInfo
}

func (m *MockGateway) CreatePayment(ctx context.Context, params domain.CreatePaymentParams) (*domain.CreatePaymentResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreatePaymentResult), args.Error(1)
}

func (m *MockGateway) VerifyPayment(ctx context.Context, transactionID string) (bool, error) {
	args := m.Called(ctx, transactionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockGateway) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WebhookEvent), args.Error(1)
}

func (m *MockGateway) CancelPayment(ctx context.Context, transactionID string) error {
	args := m.Called(ctx, transactionID)
	return args.Error(0)
}

// MockRefundableGateway adds the optional refund capability on top of
// MockGateway, matching adapters that implement domain.RefundGateway.
type MockRefundableGateway struct {
	MockGateway
}

func NewMockRefundableGateway(method domain.PaymentMethod, requiresEmail bool) *MockRefundableGateway {
	g := &MockRefundableGateway{}
	g.GatewayMethod = method
	g.GatewayInfo = domain.MethodInfo{
		Method:          method,
		DisplayName:     string(method),
		Currencies:      []string{"USD"},
		SupportsRefunds: true,
		RequiresEmail:   requiresEmail,
	}
	return g
}

func (m *MockRefundableGateway) CreateRefund(ctx context.Context, transactionID string, amount decimal.Decimal, reason string) (string, error) {
	args := m.Called(ctx, transactionID, amount, reason)
	return args.String(0), args.Error(1)
}
