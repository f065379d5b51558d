package httpapi

import (
	"encoding/json"
	"net/http"

	"scrapdeouf-engine/internal/credits"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// quotaBody extends the error envelope with the numbers the UI needs to
// render an upgrade prompt.
type quotaBody struct {
	APIError
	Quota struct {
		Estimate  int `json:"estimate"`
		Remaining int `json:"remaining"`
		Shortfall int `json:"shortfall"`
	} `json:"quota"`
}

func WriteQuotaError(w http.ResponseWriter, r *http.Request, qe *credits.QuotaError) {
	var b quotaBody
	b.Error.Code = "insufficient_credits"
	b.Error.Message = qe.Error()
	b.Error.RequestID = RequestIDFrom(r.Context())
	b.Quota.Estimate = qe.Estimate
	b.Quota.Remaining = qe.Remaining
	b.Quota.Shortfall = qe.Shortfall
	WriteJSON(w, http.StatusPaymentRequired, b)
}
