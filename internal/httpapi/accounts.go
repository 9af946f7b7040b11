// Account handlers: create, list, rename and delete.
package httpapi

import (
	"net/http"

	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/service/account"
)

func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyPostAccount).(ledger.Account)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	v, err := s.accounts.Create(r.Context(), caller(r), in)
	if err != nil {
		s.serviceErr(w, r, "account_create", err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountView(v))
}

func (s *Server) listAllAccounts(w http.ResponseWriter, r *http.Request) {
	views, err := s.accounts.ListAll(r.Context(), caller(r))
	if err != nil {
		s.serviceErr(w, r, "account_list", err)
		return
	}
	toJSON(w, http.StatusOK, accountViews(views))
}

func (s *Server) listUserAccounts(w http.ResponseWriter, r *http.Request) {
	views, err := s.accounts.ListByUser(r.Context(), caller(r), pathID(r))
	if err != nil {
		s.serviceErr(w, r, "account_list", err)
		return
	}
	toJSON(w, http.StatusOK, accountViews(views))
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyPutAccount).(account.UpdateInput)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	v, err := s.accounts.Update(r.Context(), caller(r), pathID(r), in)
	if err != nil {
		s.serviceErr(w, r, "account_update", err)
		return
	}
	toJSON(w, http.StatusOK, toAccountView(v))
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	v, err := s.accounts.Delete(r.Context(), caller(r), pathID(r))
	if err != nil {
		s.serviceErr(w, r, "account_delete", err)
		return
	}
	toJSON(w, http.StatusOK, toAccountView(v))
}

func accountViews(views []account.View) []accountResponse {
	out := make([]accountResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toAccountView(v))
	}
	return out
}
