package billing

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgbilling "github.com/payflowhq/payflow/pkg/billing"
	"github.com/payflowhq/payflow/pkg/plan"
	"github.com/payflowhq/payflow/pkg/subscription"
)

// jsonResponse is the standard response envelope.
type jsonResponse struct {
	Data  any          `json:"data,omitempty"`
	Error *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonResponse{Data: data})
}

// respondError maps domain errors onto HTTP statuses. Conflicts and
// not-founds keep their own codes so clients can branch without parsing
// messages; processor outages surface as 502.
func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"

	switch {
	case errors.Is(err, subscription.ErrAlreadyCanceled):
		status, code = http.StatusConflict, "already_canceled"
	case errors.Is(err, subscription.ErrNotFound):
		status, code = http.StatusNotFound, "subscription_not_found"
	case errors.Is(err, plan.ErrPlanNotFound):
		status, code = http.StatusNotFound, "plan_not_found"
	case errors.Is(err, subscription.ErrNoProcessorCustomer):
		status, code = http.StatusUnprocessableEntity, "no_payment_profile"
	case errors.Is(err, subscription.ErrInvalidTransition):
		status, code = http.StatusConflict, "invalid_transition"
	case errors.Is(err, errBadRequest):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, errUnauthenticated):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, pkgbilling.ErrWebhookVerification):
		status, code = http.StatusBadRequest, "invalid_signature"
	case pkgbilling.IsProcessorError(err):
		status, code = http.StatusBadGateway, "processor_unavailable"
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonResponse{Error: &errorDetail{
		Code:    code,
		Message: err.Error(),
	}})
}

var (
	errBadRequest      = errors.New("bad request")
	errUnauthenticated = errors.New("missing user identity")
)
