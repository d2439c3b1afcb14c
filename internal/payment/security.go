package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/visaflow/visaflow-api/internal/domain"
)

// SignatureVerifier checks one provider's webhook signature scheme.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) error
}

// HMACVerifier implements the plain HMAC-SHA256-over-payload scheme used by
// wallet-style providers. Signatures are hex encoded.
type HMACVerifier struct {
	secret []byte
}

func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

func (v *HMACVerifier) Verify(payload []byte, signature string) error {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("hmac mismatch")
	}
	return nil
}

// HashChainVerifier implements the sha256(secret || payload) scheme some local
// bank gateways use instead of a real HMAC.
type HashChainVerifier struct {
	secret []byte
}

func NewHashChainVerifier(secret string) *HashChainVerifier {
	return &HashChainVerifier{secret: []byte(secret)}
}

func (v *HashChainVerifier) Verify(payload []byte, signature string) error {
	sum := sha256.Sum256(append(append([]byte{}, v.secret...), payload...))
	expected := hex.EncodeToString(sum[:])

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("hash chain mismatch")
	}
	return nil
}

const duplicateCacheTTL = 48 * time.Hour

// WebhookSecurityService protects the core from replayed, forged and
// duplicate webhook deliveries. The persistent ledger is authoritative for
// duplicate detection; Redis is only a fast path in front of it.
type WebhookSecurityService struct {
	attempts  domain.WebhookAttemptRepository
	cache     redis.UniversalClient
	verifiers map[domain.PaymentMethod]SignatureVerifier
	logger    *slog.Logger
}

func NewWebhookSecurityService(
	attempts domain.WebhookAttemptRepository,
	cache redis.UniversalClient,
	verifiers map[domain.PaymentMethod]SignatureVerifier,
	logger *slog.Logger,
) *WebhookSecurityService {
	return &WebhookSecurityService{
		attempts:  attempts,
		cache:     cache,
		verifiers: verifiers,
		logger:    logger,
	}
}

// IsDuplicate reports whether a delivery with the same
// (webhookID, method, externalRef) tuple was already processed.
func (s *WebhookSecurityService) IsDuplicate(
	ctx context.Context,
	webhookID string,
	method domain.PaymentMethod,
	externalRef string,
) (bool, error) {
	if s.cache != nil {
		n, err := s.cache.Exists(ctx, duplicateCacheKey(webhookID, method, externalRef)).Result()
		if err == nil && n > 0 {
			return true, nil
		}
		if err != nil {
			s.logger.Warn("webhook duplicate cache unavailable, falling back to ledger", "error", err)
		}
	}

	return s.attempts.IsProcessed(ctx, webhookID, method, externalRef)
}

// VerifySignature applies the method's scheme. A missing signature or a
// method without a configured verifier is always invalid; unsigned payloads
// are never trusted.
func (s *WebhookSecurityService) VerifySignature(
	method domain.PaymentMethod,
	payload []byte,
	signature string,
) error {
	if signature == "" {
		return domain.NewWebhookVerificationError(method, "missing webhook signature")
	}

	verifier, ok := s.verifiers[method]
	if !ok {
		return domain.NewWebhookVerificationError(method, "no signature verifier configured")
	}

	if err := verifier.Verify(payload, signature); err != nil {
		return domain.NewWebhookVerificationError(method, err.Error())
	}

	return nil
}

// RecordAttempt appends the ledger row for this delivery. It is called
// exactly once per delivery regardless of the business-logic outcome, so
// later duplicate checks stay accurate even when processing failed.
func (s *WebhookSecurityService) RecordAttempt(ctx context.Context, attempt *domain.WebhookAttempt) error {
	err := s.attempts.Record(ctx, attempt)
	if err != nil {
		return err
	}

	if attempt.Processed && s.cache != nil {
		key := duplicateCacheKey(attempt.WebhookID, attempt.Method, attempt.ExternalRef)
		if cacheErr := s.cache.Set(ctx, key, 1, duplicateCacheTTL).Err(); cacheErr != nil {
			s.logger.Warn("failed to prime webhook duplicate cache", "error", cacheErr)
		}
	}

	return nil
}

func duplicateCacheKey(webhookID string, method domain.PaymentMethod, externalRef string) string {
	return fmt.Sprintf("webhook:processed:%s:%s:%s", method, webhookID, externalRef)
}
