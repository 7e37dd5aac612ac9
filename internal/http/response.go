package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"saldo/internal/auth"
	"saldo/internal/core"
	"saldo/internal/log"
	"saldo/internal/middleware/trace"
	"saldo/internal/store"
)

// LedgerView is the JSON shape of a ledger in API responses.
type LedgerView struct {
	UserID string `json:"user_id"`
	store.Document
	TotalExpenses json.Number `json:"total_expenses"`
	Remaining     json.Number `json:"remaining"`
}

func NewLedgerView(userID string, l core.Ledger) LedgerView {
	return LedgerView{
		UserID:        userID,
		Document:      store.NewDocument(l),
		TotalExpenses: json.Number(l.TotalExpenses().String()),
		Remaining:     json.Number(l.Remaining().String()),
	}
}

// ErrorBody is written for every failed request.
type ErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Failed to write response", log.FieldError, err)
	}
}

// classify maps an error to its status code and a short machine code.
func classify(err error) (int, string) {
	var (
		ve *core.ValidationError
		ie *core.IndexError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, "validation"
	case errors.As(err, &ie):
		return http.StatusConflict, "index_out_of_range"
	case errors.Is(err, auth.ErrEmptyCredentials):
		return http.StatusUnprocessableEntity, "empty_credentials"
	case errors.Is(err, auth.ErrIdentifierTaken):
		return http.StatusConflict, "identifier_taken"
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrNotSignedIn):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, store.ErrBadUser):
		return http.StatusUnprocessableEntity, "invalid_user"
	}
	var pe *store.PersistenceError
	if errors.As(err, &pe) {
		return http.StatusBadGateway, "persistence"
	}
	if errors.Is(err, store.ErrEmptyUser) || errors.Is(err, store.ErrBadPayload) {
		return http.StatusUnprocessableEntity, "bad_payload"
	}
	return http.StatusInternalServerError, "internal"
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := ErrorBody{
		Error:     err.Error(),
		Code:      code,
		RequestID: trace.GetRequestID(r.Context()),
	}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, status,
			log.FieldError, err)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, r, status, body)
}

func writeBadRequest(w http.ResponseWriter, r *http.Request, msg string) {
	writeJSON(w, r, http.StatusBadRequest, ErrorBody{
		Error:     msg,
		Code:      "bad_request",
		RequestID: trace.GetRequestID(r.Context()),
	})
}
