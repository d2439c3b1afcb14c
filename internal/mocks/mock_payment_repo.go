package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/visaflow/visaflow-api/internal/domain"
)

type MockPaymentRepo struct {
	mock.Mock
	domain.PaymentRepository
}

func (m *MockPaymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepo) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepo) GetByTransactionID(ctx context.Context, method domain.PaymentMethod, transactionID string) (*domain.Payment, error) {
	args := m.Called(ctx, method, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}

func (m *MockPaymentRepo) SetTransaction(ctx context.Context, id int64, method domain.PaymentMethod, transactionID string, data domain.GatewayData) error {
	args := m.Called(ctx, id, method, transactionID, data)
	return args.Error(0)
}

func (m *MockPaymentRepo) UpdateStatus(ctx context.Context, id int64, status domain.PaymentStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockPaymentRepo) UpdateStatusByTransactionID(ctx context.Context, method domain.PaymentMethod, transactionID string, status domain.PaymentStatus) error {
	args := m.Called(ctx, method, transactionID, status)
	return args.Error(0)
}

func (m *MockPaymentRepo) ApplyRefund(ctx context.Context, id int64, amount decimal.Decimal) (*domain.Payment, error) {
	args := m.Called(ctx, id, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Payment), args.Error(1)
}
