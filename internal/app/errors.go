package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/visaflow/visaflow-api/api"
	"github.com/visaflow/visaflow-api/internal/domain"
	appvalidator "github.com/visaflow/visaflow-api/internal/validator"
)

func (app *Application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.Error(err.Error(), "method", method, "uri", uri)
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *Application) errorResponse(w http.ResponseWriter, r *http.Request, status int, message string) {
	resp := api.ErrorResponse{
		Message:   message,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	err := app.writeJSON(w, status, resp, nil)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	message := "The server encountered a problem and could not process your request"
	app.errorResponse(w, r, http.StatusInternalServerError, message)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "The requested resource not found"
	app.errorResponse(w, r, http.StatusNotFound, message)
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func (app *Application) editConflictResponse(w http.ResponseWriter, r *http.Request) {
	message := "Unable to complete the request due to a conflict, please try again"
	app.errorResponse(w, r, http.StatusConflict, message)
}

func (app *Application) unauthorizedAccessResponse(w http.ResponseWriter, r *http.Request) {
	message := "You must be authenticated to access this resource"
	app.errorResponse(w, r, http.StatusUnauthorized, message)
}

func (app *Application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	message := "You do not have permission to access this resource"
	app.errorResponse(w, r, http.StatusForbidden, message)
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		app.serverErrorResponse(w, r, err)
		return
	}

	fieldErrors := make([]api.ValidationError, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		fieldErrors = append(fieldErrors, api.ValidationError{
			Field: fieldErr.Field(),
			Issue: appvalidator.ValidationMessage(fieldErr),
		})
	}

	resp := api.ValidationErrorResponse{
		Message:          "Request validation failed",
		ValidationErrors: fieldErrors,
		RequestId:        middleware.GetReqID(r.Context()),
		Timestamp:        time.Now(),
	}

	writeErr := app.writeJSON(w, http.StatusUnprocessableEntity, resp, nil)
	if writeErr != nil {
		app.logError(r, writeErr)
		w.WriteHeader(500)
	}
}

// gatewayErrorResponse maps orchestration errors to HTTP statuses. Transient
// infrastructure failures become 502 so clients know the request may succeed
// on retry; everything the caller can fix stays in the 4xx range.
func (app *Application) gatewayErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrRecordNotFound):
		app.notFoundResponse(w, r)
		return
	case errors.Is(err, domain.ErrEditConflict):
		app.editConflictResponse(w, r)
		return
	}

	var gwErr *domain.GatewayError
	if !errors.As(err, &gwErr) {
		app.serverErrorResponse(w, r, err)
		return
	}

	switch gwErr.Kind {
	case domain.ErrKindValidation:
		app.errorResponse(w, r, http.StatusUnprocessableEntity, gwErr.Message)
	case domain.ErrKindConfigurationMissing:
		app.errorResponse(w, r, http.StatusBadRequest, gwErr.Message)
	case domain.ErrKindInvalidState:
		app.errorResponse(w, r, http.StatusConflict, gwErr.Message)
	case domain.ErrKindRefundWindowExpired, domain.ErrKindRefundNotSupported:
		app.errorResponse(w, r, http.StatusUnprocessableEntity, gwErr.Message)
	case domain.ErrKindWebhookVerification:
		app.errorResponse(w, r, http.StatusBadRequest, gwErr.Message)
	default:
		app.logError(r, err)
		app.errorResponse(w, r, http.StatusBadGateway, "The payment provider is currently unavailable, please try again later")
	}
}
