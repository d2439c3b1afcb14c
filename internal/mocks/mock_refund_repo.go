package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/visaflow/visaflow-api/internal/domain"
)

type MockRefundRepo struct {
	mock.Mock
	domain.RefundRepository
}

func (m *MockRefundRepo) Create(ctx context.Context, refund *domain.Refund) error {
	args := m.Called(ctx, refund)
	return args.Error(0)
}

func (m *MockRefundRepo) GetByID(ctx context.Context, id int64) (*domain.Refund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Refund), args.Error(1)
}

func (m *MockRefundRepo) GetByPaymentID(ctx context.Context, paymentID int64) ([]domain.Refund, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Refund), args.Error(1)
}

func (m *MockRefundRepo) MarkCompleted(ctx context.Context, id int64, externalRefundID string) error {
	args := m.Called(ctx, id, externalRefundID)
	return args.Error(0)
}

func (m *MockRefundRepo) MarkFailed(ctx context.Context, id int64, failureReason string) error {
	args := m.Called(ctx, id, failureReason)
	return args.Error(0)
}
