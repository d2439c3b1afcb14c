package app

import (
	"errors"
	"net/http"

	"github.com/visaflow/visaflow-api/api"
	"github.com/visaflow/visaflow-api/internal/domain"
	"github.com/visaflow/visaflow-api/internal/payment"
)

func (app *Application) CreateRefundHandler(w http.ResponseWriter, r *http.Request) {
	pmt, ok := app.paymentForRequest(w, r)
	if !ok {
		return
	}

	var input api.CreateRefundRequest

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

	refund, err := app.refunds.InitiateRefund(r.Context(), payment.RefundRequest{
		PaymentID:   pmt.ID,
		Amount:      input.Amount,
		Reason:      input.Reason,
		InitiatedBy: domain.RefundInitiatorUser,
	})
	if err != nil {
		app.gatewayErrorResponse(w, r, err)
		return
	}

	recipient := app.contextGetEmail(r)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				app.logger.Error("refund email goroutine panicked", "error", rec)
			}
		}()

		if recipient == "" {
			return
		}

		data := map[string]any{
			"Amount":    refund.Amount,
			"Currency":  pmt.Currency,
			"PaymentID": pmt.ID,
		}

		if err := app.mailer.Send(recipient, "refund_completed.tmpl", data); err != nil {
			app.logger.Error("failed to send refund email", "error", err, "refundId", refund.ID)
		}
	}()

	err = app.writeJSON(w, http.StatusCreated, toRefundResponse(refund), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) ListRefundsHandler(w http.ResponseWriter, r *http.Request) {
	pmt, ok := app.paymentForRequest(w, r)
	if !ok {
		return
	}

	refunds, err := app.refunds.RefundsForPayment(r.Context(), pmt.ID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.RefundListResponse{
		Refunds: make([]api.RefundResponse, 0, len(refunds)),
	}
	for i := range refunds {
		resp.Refunds = append(resp.Refunds, toRefundResponse(&refunds[i]))
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelRefundHandler(w http.ResponseWriter, r *http.Request) {
	refundId, err := app.readIDParam(r, "refundId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input api.CancelRefundRequest

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	refund, err := app.refundRepo.GetByID(r.Context(), refundId)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			app.notFoundResponse(w, r)
			return
		}
		app.serverErrorResponse(w, r, err)
		return
	}

	pmt, err := app.paymentRepo.GetByID(r.Context(), refund.PaymentID)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	if pmt.UserID != app.contextGetUserId(r) {
		app.forbiddenResponse(w, r)
		return
	}

	cancelled, err := app.refunds.CancelRefund(r.Context(), refundId, input.Reason)
	if err != nil {
		app.gatewayErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toRefundResponse(cancelled), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toRefundResponse(refund *domain.Refund) api.RefundResponse {
	return api.RefundResponse{
		Id:               refund.ID,
		PaymentId:        refund.PaymentID,
		Amount:           refund.Amount,
		Reason:           refund.Reason,
		InitiatedBy:      string(refund.InitiatedBy),
		Status:           string(refund.Status),
		ExternalRefundId: refund.ExternalRefundID,
		FailureReason:    refund.FailureReason,
		CreatedAt:        refund.CreatedAt,
	}
}
