package app

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/visaflow/visaflow-api/api"
	"github.com/visaflow/visaflow-api/internal/domain"
	"github.com/visaflow/visaflow-api/internal/mocks"
	"github.com/visaflow/visaflow-api/internal/payment"
)

type WebhookHandlerTestSuite struct {
	suite.Suite
	app         *Application
	wallet      *mocks.MockRefundableGateway
	paymentRepo *mocks.MockPaymentRepo
	attempts    *mocks.MockWebhookAttemptRepo
}

func TestWebhookHandlerSuite(t *testing.T) {
	suite.Run(t, new(WebhookHandlerTestSuite))
}

func (s *WebhookHandlerTestSuite) SetupTest() {
	s.wallet = mocks.NewMockRefundableGateway("wallet", false)
	s.paymentRepo = new(mocks.MockPaymentRepo)
	s.attempts = new(mocks.MockWebhookAttemptRepo)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := payment.NewAuditLogger(logger, nil)
	security := payment.NewWebhookSecurityService(s.attempts, nil, map[domain.PaymentMethod]payment.SignatureVerifier{
		"wallet": payment.NewHMACVerifier("wallet-secret"),
	}, logger)

	router := payment.NewRouter(payment.RouterParams{
		Adapters: map[domain.PaymentMethod]domain.PaymentGateway{
			"wallet": s.wallet,
		},
		Retrier:  newTestRetrier(audit),
		Audit:    audit,
		Security: security,
		Payments: s.paymentRepo,
		Logger:   logger,
	})

	s.app = newTestApplication(func(a *Application) {
		a.paymentRepo = s.paymentRepo
		a.router = router
	})
}

func signWallet(payload []byte) string {
	mac := hmac.New(sha256.New, []byte("wallet-secret"))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *WebhookHandlerTestSuite) post(method string, payload []byte, signature string) *http.Response {
	r := httptest.NewRequest(http.MethodPost, "/webhooks/"+method, bytes.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")
	if signature != "" {
		r.Header.Set("X-Wallet-Signature", signature)
	}
	r = withURLParams(r, map[string]string{"method": method})
	w := httptest.NewRecorder()

	s.app.GatewayWebhookHandler(w, r)

	return w.Result()
}

func (s *WebhookHandlerTestSuite) TestGatewayWebhookHandler_UnknownMethod() {
	resp := s.post("crypto", []byte(`{}`), "")
	defer resp.Body.Close()

	s.Equal(http.StatusNotFound, resp.StatusCode)
}

func (s *WebhookHandlerTestSuite) TestGatewayWebhookHandler_DuplicateDelivery() {
	payload := []byte(`{"eventId":"evt-1","event":"charge.succeeded","chargeId":"ch_9"}`)

	s.attempts.On("IsProcessed", mock.Anything, "evt-1", domain.PaymentMethod("wallet"), "ch_9").
		Return(true, nil).Once()

	resp := s.post("wallet", payload, signWallet(payload))
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var body api.WebhookResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.True(body.Received)
	s.True(body.Duplicate)
	s.wallet.AssertNotCalled(s.T(), "ProcessWebhook")
}

func (s *WebhookHandlerTestSuite) TestGatewayWebhookHandler_InvalidSignature() {
	payload := []byte(`{"eventId":"evt-1","event":"charge.succeeded","chargeId":"ch_9"}`)

	s.attempts.On("IsProcessed", mock.Anything, "evt-1", domain.PaymentMethod("wallet"), "ch_9").
		Return(false, nil).Once()
	s.attempts.On("Record", mock.Anything, mock.Anything).Return(nil).Once()

	resp := s.post("wallet", payload, "forged")
	defer resp.Body.Close()

	s.Equal(http.StatusBadRequest, resp.StatusCode)

	var body api.WebhookResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.False(body.Received)
	s.NotEmpty(body.Error)
}

func (s *WebhookHandlerTestSuite) TestGatewayWebhookHandler_ProcessesDelivery() {
	payload := []byte(`{"eventId":"evt-1","event":"charge.succeeded","chargeId":"ch_9"}`)
	signature := signWallet(payload)

	s.attempts.On("IsProcessed", mock.Anything, "evt-1", domain.PaymentMethod("wallet"), "ch_9").
		Return(false, nil).Once()
	s.wallet.On("ProcessWebhook", mock.Anything, payload, signature).
		Return(&domain.WebhookEvent{
			Type:          "charge.succeeded",
			TransactionID: "ch_9",
			Status:        domain.PaymentStatusCompleted,
		}, nil).Once()
	s.paymentRepo.On("GetByTransactionID", mock.Anything, domain.PaymentMethod("wallet"), "ch_9").
		Return(&domain.Payment{ID: 101, Status: domain.PaymentStatusPending}, nil).Once()
	s.paymentRepo.On("UpdateStatusByTransactionID", mock.Anything, domain.PaymentMethod("wallet"), "ch_9", domain.PaymentStatusCompleted).
		Return(nil).Once()
	s.attempts.On("Record", mock.Anything, mock.Anything).Return(nil).Once()

	resp := s.post("wallet", payload, signature)
	defer resp.Body.Close()

	s.Equal(http.StatusOK, resp.StatusCode)

	var body api.WebhookResponse
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	s.True(body.Received)
	s.False(body.Duplicate)
}

func TestExtractWebhookRefs(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantID   string
		wantRef  string
	}{
		{
			name:    "stripe envelope",
			payload: `{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`,
			wantID:  "evt_1",
			wantRef: "cs_1",
		},
		{
			name:    "wallet envelope",
			payload: `{"eventId":"evt-9","event":"charge.succeeded","chargeId":"ch_9"}`,
			wantID:  "evt-9",
			wantRef: "ch_9",
		},
		{
			name:    "missing fields come back empty",
			payload: `{"event":"ping"}`,
		},
		{
			name:    "malformed payload comes back empty",
			payload: `not-json`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ref := extractWebhookRefs([]byte(tt.payload))

			require.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantRef, ref)
		})
	}
}
