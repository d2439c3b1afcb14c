package integration_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/visaflow/visaflow-api/internal/domain"
	"github.com/visaflow/visaflow-api/internal/payment"
)

type WebhookLedgerSuite struct {
	BaseSuite
}

func TestWebhookLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	suite.Run(t, new(WebhookLedgerSuite))
}

func (s *WebhookLedgerSuite) SetupTest() {
	s.truncateAll()
}

func (s *WebhookLedgerSuite) attempt(processed bool, failureReason *string) *domain.WebhookAttempt {
	return &domain.WebhookAttempt{
		WebhookID:     "wh_1",
		Method:        domain.PaymentMethod("wallet"),
		ExternalRef:   "ch_1",
		EventType:     "charge.succeeded",
		Payload:       []byte(`{"id":"wh_1"}`),
		Signature:     "sig",
		Processed:     processed,
		FailureReason: failureReason,
	}
}

func (s *WebhookLedgerSuite) TestProcessedRowIsAppendOnly() {
	ctx := context.Background()

	err := s.webhooks.Record(ctx, s.attempt(true, nil))
	s.Require().NoError(err)

	err = s.webhooks.Record(ctx, s.attempt(true, nil))
	s.Require().ErrorIs(err, domain.ErrDuplicateWebhook)

	processed, err := s.webhooks.IsProcessed(ctx, "wh_1", "wallet", "ch_1")
	s.Require().NoError(err)
	s.True(processed)
}

func (s *WebhookLedgerSuite) TestUnprocessedRowIsOverwrittenOnRedelivery() {
	ctx := context.Background()
	reason := "bad signature"

	first := s.attempt(false, &reason)
	err := s.webhooks.Record(ctx, first)
	s.Require().NoError(err)

	processed, err := s.webhooks.IsProcessed(ctx, "wh_1", "wallet", "ch_1")
	s.Require().NoError(err)
	s.False(processed)

	second := s.attempt(true, nil)
	err = s.webhooks.Record(ctx, second)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)

	processed, err = s.webhooks.IsProcessed(ctx, "wh_1", "wallet", "ch_1")
	s.Require().NoError(err)
	s.True(processed)
}

func (s *WebhookLedgerSuite) TestIsProcessed_UnknownTuple() {
	processed, err := s.webhooks.IsProcessed(context.Background(), "wh_unknown", "wallet", "ch_1")
	s.Require().NoError(err)
	s.False(processed)
}

func (s *WebhookLedgerSuite) TestDifferentExternalRefIsSeparateRow() {
	ctx := context.Background()

	err := s.webhooks.Record(ctx, s.attempt(true, nil))
	s.Require().NoError(err)

	other := s.attempt(true, nil)
	other.ExternalRef = "ch_2"
	err = s.webhooks.Record(ctx, other)
	s.Require().NoError(err)
}

// RecordAttempt primes the Redis fast path on processed deliveries, so a
// redelivered webhook is rejected without touching Postgres.
func (s *WebhookLedgerSuite) TestSecurityServicePrimesDuplicateCache() {
	ctx := context.Background()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	security := payment.NewWebhookSecurityService(s.webhooks, s.redisClient, nil, logger)

	err := security.RecordAttempt(ctx, s.attempt(true, nil))
	s.Require().NoError(err)

	n, err := s.redisClient.Exists(ctx, "webhook:processed:wallet:wh_1:ch_1").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	dup, err := security.IsDuplicate(ctx, "wh_1", "wallet", "ch_1")
	s.Require().NoError(err)
	s.True(dup)

	// Drop the cache entry; the ledger stays authoritative.
	s.Require().NoError(s.redisClient.FlushAll(ctx).Err())

	dup, err = security.IsDuplicate(ctx, "wh_1", "wallet", "ch_1")
	s.Require().NoError(err)
	s.True(dup)
}
