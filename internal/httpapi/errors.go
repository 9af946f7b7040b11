package httpapi

import (
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/finman/internal/errs"
)

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) { writeErr(w, http.StatusBadRequest, msg, "") }
func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// unauthorized challenges the client with the given scheme.
func unauthorized(w http.ResponseWriter, scheme, msg string) {
	w.Header().Set("WWW-Authenticate", scheme)
	writeErr(w, http.StatusUnauthorized, msg, "unauthorized")
}

// statusFor maps service sentinel errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrProtectedAdmin):
		return http.StatusForbidden, "protected_admin"
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, errs.ErrInvalidCategory):
		return http.StatusNotFound, "invalid_category"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, errs.ErrInsufficientFunds):
		return http.StatusNotAcceptable, "insufficient_funds"
	case errors.Is(err, errs.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, errs.ErrDuplicateLogin):
		return http.StatusUnprocessableEntity, "duplicate_login"
	case errors.Is(err, errs.ErrImmutable):
		return http.StatusUnprocessableEntity, "immutable"
	case errors.Is(err, errs.ErrUnprocessable):
		return http.StatusUnprocessableEntity, "validation_error"
	case errors.Is(err, errs.ErrInvalid):
		return http.StatusBadRequest, "invalid"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// serviceErr writes err as a JSON error. Unexpected errors are logged with the request
// id and reported without detail. op labels balance rejections in metrics.
func (s *Server) serviceErr(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		s.log.Error("request failed", "req_id", chimw.GetReqID(r.Context()), "op", op, "err", err)
		writeErr(w, status, "internal error", code)
		return
	case http.StatusNotAcceptable:
		balanceRejections.WithLabelValues(op).Inc()
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Basic")
	}
	writeErr(w, status, err.Error(), code)
}
