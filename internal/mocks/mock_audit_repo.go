package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/visaflow/visaflow-api/internal/domain"
)

type MockAuditLogRepo struct {
	mock.Mock
	domain.AuditLogRepository
}

func (m *MockAuditLogRepo) Insert(ctx context.Context, entry *domain.AuditLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditLogRepo) GetByTraceID(ctx context.Context, traceID string) ([]domain.AuditLogEntry, error) {
	args := m.Called(ctx, traceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuditLogEntry), args.Error(1)
}
