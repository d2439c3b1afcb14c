package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/visaflow/visaflow-api/api"
	"github.com/visaflow/visaflow-api/internal/domain"
)

func (app *Application) GetPaymentMethodsHandler(w http.ResponseWriter, r *http.Request) {
	infos := app.router.AvailableMethods()

	resp := api.PaymentMethodsResponse{
		Methods: make([]api.PaymentMethodInfo, 0, len(infos)),
	}
	for _, info := range infos {
		resp.Methods = append(resp.Methods, toMethodInfo(info))
	}

	err := app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetPaymentMethodHandler(w http.ResponseWriter, r *http.Request) {
	method := domain.PaymentMethod(chi.URLParam(r, "method"))

	info, err := app.router.MethodInfo(method)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toMethodInfo(info), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toMethodInfo(info domain.MethodInfo) api.PaymentMethodInfo {
	return api.PaymentMethodInfo{
		Method:          string(info.Method),
		DisplayName:     info.DisplayName,
		Description:     info.Description,
		Currencies:      info.Currencies,
		SupportsRefunds: info.SupportsRefunds,
		RequiresEmail:   info.RequiresEmail,
	}
}
