package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/visaflow/visaflow-api/internal/domain"
)

type MockWebhookAttemptRepo struct {
	mock.Mock
	domain.WebhookAttemptRepository
}

func (m *MockWebhookAttemptRepo) IsProcessed(ctx context.Context, webhookID string, method domain.PaymentMethod, externalRef string) (bool, error) {
	args := m.Called(ctx, webhookID, method, externalRef)
	return args.Bool(0), args.Error(1)
}

func (m *MockWebhookAttemptRepo) Record(ctx context.Context, attempt *domain.WebhookAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}
