// Transaction handlers. Every mutation moves an account balance; see the transaction
// service for the rules.
package httpapi

import (
	"net/http"

	"github.com/tinoosan/finman/internal/service/transaction"
)

func (s *Server) postTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyTransaction).(transaction.Input)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	v, err := s.txns.Create(r.Context(), caller(r), in)
	if err != nil {
		s.serviceErr(w, r, "transaction_create", err)
		return
	}
	toJSON(w, http.StatusCreated, toTransactionResponse(v))
}

func (s *Server) listAllTransactions(w http.ResponseWriter, r *http.Request) {
	views, err := s.txns.ListAll(r.Context(), caller(r))
	if err != nil {
		s.serviceErr(w, r, "transaction_list", err)
		return
	}
	toJSON(w, http.StatusOK, transactionViews(views))
}

func (s *Server) listUserTransactions(w http.ResponseWriter, r *http.Request) {
	views, err := s.txns.ListByUser(r.Context(), caller(r), pathID(r))
	if err != nil {
		s.serviceErr(w, r, "transaction_list", err)
		return
	}
	toJSON(w, http.StatusOK, transactionViews(views))
}

func (s *Server) updateTransaction(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeyTransaction).(transaction.Input)
	if !ok {
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "validated request missing"})
		return
	}
	v, err := s.txns.Update(r.Context(), caller(r), pathID(r), in)
	if err != nil {
		s.serviceErr(w, r, "transaction_update", err)
		return
	}
	toJSON(w, http.StatusOK, toTransactionResponse(v))
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	v, err := s.txns.Delete(r.Context(), caller(r), pathID(r))
	if err != nil {
		s.serviceErr(w, r, "transaction_delete", err)
		return
	}
	toJSON(w, http.StatusOK, toTransactionResponse(v))
}

func transactionViews(views []transaction.View) []transactionResponse {
	out := make([]transactionResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toTransactionResponse(v))
	}
	return out
}
