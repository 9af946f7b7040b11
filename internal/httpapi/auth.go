package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/tinoosan/finman/internal/authz"
	"github.com/tinoosan/finman/internal/ledger"
)

const ctxKeyUser ctxKey = "authenticatedUser"

// basicAuth authenticates the request with HTTP Basic credentials.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		login, password, ok := r.BasicAuth()
		if !ok {
			unauthorized(w, "Basic", "not authenticated")
			return
		}
		u, err := s.users.Authenticate(r.Context(), login, password)
		if err != nil {
			s.serviceErr(w, r, "authenticate", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyUser, u)))
	})
}

// bearerAuth authenticates the request with a token issued by /users/get-token.
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := parseBearerToken(r)
		if !ok {
			unauthorized(w, "Bearer", "not authenticated")
			return
		}
		u, err := s.users.AuthenticateToken(r.Context(), token)
		if err != nil {
			status, _ := statusFor(err)
			if status == http.StatusUnauthorized {
				unauthorized(w, "Bearer", err.Error())
				return
			}
			s.serviceErr(w, r, "authenticate", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyUser, u)))
	})
}

func parseBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// authedUser returns the user stored by basicAuth or bearerAuth.
func authedUser(r *http.Request) ledger.User {
	u, _ := r.Context().Value(ctxKeyUser).(ledger.User)
	return u
}

func caller(r *http.Request) authz.Caller {
	return authz.FromUser(authedUser(r))
}
