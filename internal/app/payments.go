package app

import (
	"net/http"

	"github.com/visaflow/visaflow-api/api"
	"github.com/visaflow/visaflow-api/internal/domain"
)

func (app *Application) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var input api.CreatePaymentRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	userId := app.contextGetUserId(r)

	result, err := app.router.InitiatePayment(r.Context(), domain.PaymentMethod(input.Method), domain.CreatePaymentParams{
		UserID:        userId,
		ApplicationID: input.ApplicationId,
		Amount:        input.Amount,
		Currency:      input.Currency,
		ReturnURL:     input.ReturnUrl,
		Description:   input.Description,
		UserEmail:     input.UserEmail,
	})
	if err != nil {
		app.gatewayErrorResponse(w, r, err)
		return
	}

	if input.UserEmail != "" {
		go func() {
			defer func() {
				if rec := recover(); rec != nil {
					app.logger.Error("payment email goroutine panicked", "error", rec)
				}
			}()

			data := map[string]any{
				"Amount":        result.Payment.Amount,
				"Currency":      result.Payment.Currency,
				"ApplicationID": result.Payment.ApplicationID,
				"PaymentURL":    result.PaymentURL,
			}

			if err := app.mailer.Send(input.UserEmail, "payment_initiated.tmpl", data); err != nil {
				app.logger.Error("failed to send payment email", "error", err, "paymentId", result.Payment.ID)
			}
		}()
	}

	resp := api.CreatePaymentResponse{
		PaymentId:   result.Payment.ID,
		Method:      string(result.Payment.Method),
		Status:      string(result.Payment.Status),
		RedirectUrl: result.PaymentURL,
		TraceId:     result.TraceID,
	}

	err = app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	pmt, ok := app.paymentForRequest(w, r)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, toPaymentResponse(pmt), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	pmt, ok := app.paymentForRequest(w, r)
	if !ok {
		return
	}

	if pmt.TransactionID == nil {
		app.editConflictResponse(w, r)
		return
	}

	verified, err := app.router.VerifyPayment(r.Context(), pmt.Method, *pmt.TransactionID)
	if err != nil {
		app.gatewayErrorResponse(w, r, err)
		return
	}

	status := pmt.Status
	if verified {
		// Re-read so the response reflects the promotion to completed.
		refreshed, err := app.paymentRepo.GetByID(r.Context(), pmt.ID)
		if err == nil {
			status = refreshed.Status
		}
	}

	resp := api.VerifyPaymentResponse{
		Verified: verified,
		Status:   string(status),
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelPaymentHandler(w http.ResponseWriter, r *http.Request) {
	pmt, ok := app.paymentForRequest(w, r)
	if !ok {
		return
	}

	if pmt.TransactionID == nil {
		app.editConflictResponse(w, r)
		return
	}

	err := app.router.CancelPayment(r.Context(), pmt.Method, *pmt.TransactionID)
	if err != nil {
		app.gatewayErrorResponse(w, r, err)
		return
	}

	pmt.Status = domain.PaymentStatusCancelled

	err = app.writeJSON(w, http.StatusOK, toPaymentResponse(pmt), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// paymentForRequest loads the payment named by the paymentId URL parameter
// and enforces that it belongs to the session user.
func (app *Application) paymentForRequest(w http.ResponseWriter, r *http.Request) (*domain.Payment, bool) {
	paymentId, err := app.readIDParam(r, "paymentId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return nil, false
	}

	pmt, err := app.paymentRepo.GetByID(r.Context(), paymentId)
	if err != nil {
		app.gatewayErrorResponse(w, r, err)
		return nil, false
	}

	if pmt.UserID != app.contextGetUserId(r) {
		app.forbiddenResponse(w, r)
		return nil, false
	}

	return pmt, true
}

func toPaymentResponse(pmt *domain.Payment) api.PaymentResponse {
	return api.PaymentResponse{
		Id:             pmt.ID,
		ApplicationId:  pmt.ApplicationID,
		Amount:         pmt.Amount,
		Currency:       pmt.Currency,
		Status:         string(pmt.Status),
		Method:         string(pmt.Method),
		TransactionId:  pmt.TransactionID,
		RefundedAmount: pmt.RefundedAmount,
		CreatedAt:      pmt.CreatedAt,
	}
}
