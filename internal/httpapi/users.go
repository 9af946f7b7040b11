// User handlers: registration, authentication checks, tokens and id-addressed updates.
package httpapi

import (
	"net/http"

	"github.com/tinoosan/finman/internal/service/user"
)

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyCredentials).(user.Credentials)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	u, err := s.users.Register(r.Context(), in)
	if err != nil {
		s.serviceErr(w, r, "user_register", err)
		return
	}
	toJSON(w, http.StatusCreated, toUserResponse(u))
}

// currentUser echoes the authenticated user for both the basic and bearer checks.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	toJSON(w, http.StatusOK, toUserResponse(authedUser(r)))
}

func (s *Server) getToken(w http.ResponseWriter, r *http.Request) {
	tok, err := s.users.IssueToken(authedUser(r))
	if err != nil {
		s.serviceErr(w, r, "user_token", err)
		return
	}
	toJSON(w, http.StatusOK, toTokenResponse(tok))
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context(), caller(r))
	if err != nil {
		s.serviceErr(w, r, "user_list", err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Delete(r.Context(), caller(r), pathID(r))
	if err != nil {
		s.serviceErr(w, r, "user_delete", err)
		return
	}
	toJSON(w, http.StatusOK, toUserResponse(u))
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyCredentials).(user.Credentials)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	u, err := s.users.Update(r.Context(), caller(r), pathID(r), in)
	if err != nil {
		s.serviceErr(w, r, "user_update", err)
		return
	}
	toJSON(w, http.StatusOK, toUserResponse(u))
}
