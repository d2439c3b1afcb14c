package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/visaflow/visaflow-api/internal/domain"
)

const MethodWallet domain.PaymentMethod = "wallet"

// WalletGateway talks to a hosted local-wallet provider over signed JSON
// HTTP. Unlike the card adapter it needs no email: the wallet provider knows
// its own users.
type WalletGateway struct {
	baseURL string
	apiKey  string
	secret  []byte
	client  *http.Client
}

func NewWalletGateway(baseURL, apiKey, secret string) *WalletGateway {
	return &WalletGateway{
		baseURL: baseURL,
		apiKey:  apiKey,
		secret:  []byte(secret),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (g *WalletGateway) Method() domain.PaymentMethod {
	return MethodWallet
}

func (g *WalletGateway) Info() domain.MethodInfo {
	return domain.MethodInfo{
		Method:          MethodWallet,
		DisplayName:     "Local Wallet",
		Description:     "Domestic wallet transfer",
		Currencies:      []string{"USD", "AED", "INR"},
		SupportsRefunds: true,
		RequiresEmail:   false,
	}
}

type walletCharge struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirectUrl"`
}

type walletError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (g *WalletGateway) CreatePayment(ctx context.Context, params domain.CreatePaymentParams) (*domain.CreatePaymentResult, error) {
	body := map[string]any{
		"amount":    params.Amount.StringFixed(2),
		"currency":  params.Currency,
		"reference": fmt.Sprintf("app-%d-user-%d", params.ApplicationID, params.UserID),
		"returnUrl": params.ReturnURL,
	}
	if params.Description != "" {
		body["description"] = params.Description
	}

	var charge walletCharge
	if err := g.call(ctx, http.MethodPost, "/v1/charges", body, &charge); err != nil {
		return nil, err
	}

	return &domain.CreatePaymentResult{
		PaymentURL:    charge.RedirectURL,
		TransactionID: charge.ID,
		GatewayData:   domain.GatewayData{"wallet_charge_id": charge.ID},
	}, nil
}

func (g *WalletGateway) VerifyPayment(ctx context.Context, transactionID string) (bool, error) {
	var charge walletCharge
	if err := g.call(ctx, http.MethodGet, "/v1/charges/"+transactionID, nil, &charge); err != nil {
		return false, err
	}
	return charge.Status == "paid", nil
}

func (g *WalletGateway) ProcessWebhook(ctx context.Context, payload []byte, signature string) (*domain.WebhookEvent, error) {
	var notification struct {
		Event    string `json:"event"`
		ChargeID string `json:"chargeId"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(payload, &notification); err != nil {
		return nil, domain.NewGatewayFailure(MethodWallet, "malformed webhook payload", false, err)
	}

	event := &domain.WebhookEvent{
		Type:          notification.Event,
		TransactionID: notification.ChargeID,
		FailureReason: notification.Reason,
	}

	switch notification.Event {
	case "charge.succeeded":
		event.Status = domain.PaymentStatusCompleted
	case "charge.failed":
		event.Status = domain.PaymentStatusFailed
	case "charge.expired":
		event.Status = domain.PaymentStatusCancelled
	}

	return event, nil
}

func (g *WalletGateway) CancelPayment(ctx context.Context, transactionID string) error {
	return g.call(ctx, http.MethodPost, "/v1/charges/"+transactionID+"/cancel", map[string]any{}, nil)
}

func (g *WalletGateway) CreateRefund(ctx context.Context, transactionID string, amount decimal.Decimal, reason string) (string, error) {
	body := map[string]any{
		"amount": amount.StringFixed(2),
		"reason": reason,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := g.call(ctx, http.MethodPost, "/v1/charges/"+transactionID+"/refunds", body, &result); err != nil {
		return "", err
	}

	return result.ID, nil
}

// call performs one signed request and classifies every failure into the
// shared taxonomy.
func (g *WalletGateway) call(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	var raw []byte

	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return domain.NewValidationError(MethodWallet, err.Error())
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return domain.NewValidationError(MethodWallet, err.Error())
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("X-Wallet-Signature", g.sign(raw))

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.NewNetworkError(MethodWallet, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.NewNetworkError(MethodWallet, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return domain.NewGatewayFailure(MethodWallet, "malformed gateway response", false, err)
		}
		return nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return domain.NewGatewayFailure(MethodWallet, fmt.Sprintf("wallet gateway unavailable (%d)", resp.StatusCode), true, nil)
	default:
		var gwErr walletError
		_ = json.Unmarshal(respBody, &gwErr)
		msg := gwErr.Message
		if msg == "" {
			msg = fmt.Sprintf("wallet gateway rejected the request (%d)", resp.StatusCode)
		}
		return domain.NewGatewayFailure(MethodWallet, msg, false, nil)
	}
}

func (g *WalletGateway) sign(body []byte) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
