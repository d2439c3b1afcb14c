package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visaflow/visaflow-api/internal/domain"
)

func walletParams() domain.CreatePaymentParams {
	return domain.CreatePaymentParams{
		UserID:        7,
		ApplicationID: 42,
		Amount:        decimal.NewFromFloat(149.50),
		Currency:      "AED",
		ReturnURL:     "https://app.example.com/return",
	}
}

func TestWalletGateway_CreatePayment(t *testing.T) {
	var gotBody map[string]any
	var gotSignature, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/charges", r.URL.Path)

		gotSignature = r.Header.Get("X-Wallet-Signature")
		gotAuth = r.Header.Get("Authorization")

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotBody))

		mac := hmac.New(sha256.New, []byte("wallet-secret"))
		mac.Write(body)
		require.Equal(t, hex.EncodeToString(mac.Sum(nil)), gotSignature)

		json.NewEncoder(w).Encode(walletCharge{
			ID:          "ch_9",
			Status:      "created",
			RedirectURL: "https://wallet.example.com/pay/ch_9",
		})
	}))
	defer server.Close()

	g := NewWalletGateway(server.URL, "api-key", "wallet-secret")

	result, err := g.CreatePayment(context.Background(), walletParams())

	require.NoError(t, err)
	assert.Equal(t, "ch_9", result.TransactionID)
	assert.Equal(t, "https://wallet.example.com/pay/ch_9", result.PaymentURL)
	assert.Equal(t, "ch_9", result.GatewayData["wallet_charge_id"])

	assert.Equal(t, "Bearer api-key", gotAuth)
	assert.Equal(t, "149.50", gotBody["amount"])
	assert.Equal(t, "AED", gotBody["currency"])
	assert.Equal(t, "app-42-user-7", gotBody["reference"])
}

func TestWalletGateway_ErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantKind      domain.ErrorKind
		wantRetryable bool
	}{
		{
			name:          "server error is a transient gateway failure",
			status:        http.StatusInternalServerError,
			wantKind:      domain.ErrKindGateway,
			wantRetryable: true,
		},
		{
			name:          "rate limiting is a transient gateway failure",
			status:        http.StatusTooManyRequests,
			wantKind:      domain.ErrKindGateway,
			wantRetryable: true,
		},
		{
			name:          "client rejection is permanent",
			status:        http.StatusBadRequest,
			body:          `{"code":"insufficient_funds","message":"insufficient wallet balance"}`,
			wantKind:      domain.ErrKindGateway,
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					io.WriteString(w, tt.body)
				}
			}))
			defer server.Close()

			g := NewWalletGateway(server.URL, "api-key", "wallet-secret")

			_, err := g.CreatePayment(context.Background(), walletParams())

			require.Error(t, err)
			assert.Equal(t, tt.wantKind, domain.ErrorKindOf(err))
			assert.Equal(t, tt.wantRetryable, domain.IsRetryable(err))
		})
	}
}

func TestWalletGateway_TransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	g := NewWalletGateway(server.URL, "api-key", "wallet-secret")

	_, err := g.CreatePayment(context.Background(), walletParams())

	require.Error(t, err)
	assert.Equal(t, domain.ErrKindNetwork, domain.ErrorKindOf(err))
	assert.True(t, domain.IsRetryable(err))
}

func TestWalletGateway_VerifyPayment(t *testing.T) {
	status := "paid"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/charges/ch_9", r.URL.Path)
		json.NewEncoder(w).Encode(walletCharge{ID: "ch_9", Status: status})
	}))
	defer server.Close()

	g := NewWalletGateway(server.URL, "api-key", "wallet-secret")

	paid, err := g.VerifyPayment(context.Background(), "ch_9")
	require.NoError(t, err)
	assert.True(t, paid)

	status = "created"
	paid, err = g.VerifyPayment(context.Background(), "ch_9")
	require.NoError(t, err)
	assert.False(t, paid)
}

func TestWalletGateway_CreateRefund(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/charges/ch_9/refunds", r.URL.Path)

		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "25.00", body["amount"])
		assert.Equal(t, "application withdrawn", body["reason"])

		json.NewEncoder(w).Encode(map[string]string{"id": "re_7"})
	}))
	defer server.Close()

	g := NewWalletGateway(server.URL, "api-key", "wallet-secret")

	id, err := g.CreateRefund(context.Background(), "ch_9", decimal.NewFromInt(25), "application withdrawn")

	require.NoError(t, err)
	assert.Equal(t, "re_7", id)
}

func TestWalletGateway_ProcessWebhook(t *testing.T) {
	g := NewWalletGateway("http://unused", "api-key", "wallet-secret")

	tests := []struct {
		name       string
		payload    string
		wantStatus domain.PaymentStatus
		wantReason string
	}{
		{
			name:       "charge succeeded",
			payload:    `{"event":"charge.succeeded","chargeId":"ch_9"}`,
			wantStatus: domain.PaymentStatusCompleted,
		},
		{
			name:       "charge failed",
			payload:    `{"event":"charge.failed","chargeId":"ch_9","reason":"insufficient balance"}`,
			wantStatus: domain.PaymentStatusFailed,
			wantReason: "insufficient balance",
		},
		{
			name:       "charge expired",
			payload:    `{"event":"charge.expired","chargeId":"ch_9"}`,
			wantStatus: domain.PaymentStatusCancelled,
		},
		{
			name:    "informational event carries no status",
			payload: `{"event":"charge.created","chargeId":"ch_9"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := g.ProcessWebhook(context.Background(), []byte(tt.payload), "sig")

			require.NoError(t, err)
			assert.Equal(t, "ch_9", event.TransactionID)
			assert.Equal(t, tt.wantStatus, event.Status)
			assert.Equal(t, tt.wantReason, event.FailureReason)
		})
	}
}

func TestWalletGateway_ProcessWebhookRejectsMalformedPayload(t *testing.T) {
	g := NewWalletGateway("http://unused", "api-key", "wallet-secret")

	_, err := g.ProcessWebhook(context.Background(), []byte("not-json"), "sig")

	require.Error(t, err)
	assert.Equal(t, domain.ErrKindGateway, domain.ErrorKindOf(err))
	assert.False(t, domain.IsRetryable(err))
}
