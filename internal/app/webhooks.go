package app

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/visaflow/visaflow-api/api"
	"github.com/visaflow/visaflow-api/internal/domain"
	"github.com/visaflow/visaflow-api/internal/gateway"
	"github.com/visaflow/visaflow-api/internal/payment"
)

const maxWebhookBodyBytes = 1 << 20

// signatureHeaders maps each payment method to the header its provider signs
// deliveries with.
var signatureHeaders = map[domain.PaymentMethod]string{
	gateway.MethodCard:   "Stripe-Signature",
	gateway.MethodWallet: "X-Wallet-Signature",
}

// GatewayWebhookHandler receives provider callbacks. It answers 200 for
// processed and duplicate deliveries, 400 for rejected ones, and 500 for
// internal failures so well-behaved providers redeliver.
func (app *Application) GatewayWebhookHandler(w http.ResponseWriter, r *http.Request) {
	method := domain.PaymentMethod(chi.URLParam(r, "method"))

	header, ok := signatureHeaders[method]
	if !ok {
		app.notFoundResponse(w, r)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	webhookId, externalRef := extractWebhookRefs(payload)

	outcome := app.router.ProcessWebhook(r.Context(), payment.WebhookRequest{
		Method:      method,
		Payload:     payload,
		Signature:   r.Header.Get(header),
		WebhookID:   webhookId,
		ExternalRef: externalRef,
	})

	resp := api.WebhookResponse{
		Received:  outcome.Success,
		Duplicate: outcome.Duplicate,
	}

	status := http.StatusOK
	if !outcome.Success {
		resp.Error = outcome.Err.Error()

		switch domain.ErrorKindOf(outcome.Err) {
		case domain.ErrKindWebhookVerification, domain.ErrKindValidation, domain.ErrKindInvalidState:
			status = http.StatusBadRequest
		default:
			status = http.StatusInternalServerError
		}
	}

	err = app.writeJSON(w, status, resp, nil)
	if err != nil {
		app.logError(r, err)
	}
}

// extractWebhookRefs pulls the delivery id and transaction reference out of a
// provider payload without binding to one provider's envelope. Stripe events
// carry a top-level id plus data.object.id; the wallet provider sends eventId
// and chargeId. Missing fields come back empty and the core synthesizes a
// delivery id from the payload digest.
func extractWebhookRefs(payload []byte) (webhookId, externalRef string) {
	var envelope struct {
		Id      string `json:"id"`
		EventId string `json:"eventId"`
		Charge  string `json:"chargeId"`
		Data    struct {
			Object struct {
				Id string `json:"id"`
			} `json:"object"`
		} `json:"data"`
	}

	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", ""
	}

	webhookId = envelope.Id
	if webhookId == "" {
		webhookId = envelope.EventId
	}

	externalRef = envelope.Data.Object.Id
	if externalRef == "" {
		externalRef = envelope.Charge
	}

	return webhookId, externalRef
}
