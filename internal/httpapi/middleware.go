package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/tinoosan/finman/internal/ledger"
	"github.com/tinoosan/finman/internal/service/account"
	"github.com/tinoosan/finman/internal/service/transaction"
	"github.com/tinoosan/finman/internal/service/user"
)

type ctxKey string

const ctxKeyCredentials ctxKey = "validatedCredentials"
const ctxKeyPostAccount ctxKey = "validatedPostAccount"
const ctxKeyPutAccount ctxKey = "validatedPutAccount"
const ctxKeyTransaction ctxKey = "validatedTransaction"
const ctxKeyPathID ctxKey = "validatedPathID"
const ctxKeyMonthQuery ctxKey = "validatedMonthQuery"

// decodeBody decodes a JSON body into dst, writing 400 on malformed input.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			badRequest(w, "request body is required")
			return false
		}
		badRequest(w, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

// validateCredentials parses a {login, password} body used by register and user update.
func (s *Server) validateCredentials() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req credentialsRequest
			if !decodeBody(w, r, &req) {
				return
			}
			in := user.Credentials{Login: req.Login, Password: req.Password}
			ctx := context.WithValue(r.Context(), ctxKeyCredentials, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validatePathID parses the non-negative {id} path parameter.
func (s *Server) validatePathID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id < 0 {
			unprocessable(w, "id must be a non-negative integer", "validation_error")
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyPathID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validatePostAccount parses and validates POST /accounts body and stores the account.
func (s *Server) validatePostAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req postAccountRequest
			if !decodeBody(w, r, &req) {
				return
			}
			amt, err := ledger.AmountFromFloat(s.currency, req.Amount)
			if err != nil {
				unprocessable(w, "amount: "+err.Error(), "validation_error")
				return
			}
			in, err := s.accounts.ValidateCreate(ledger.Account{UserID: req.UserID, Name: req.AccountName, Amount: amt})
			if err != nil {
				s.serviceErr(w, r, "account_create", err)
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyPostAccount, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validatePutAccount parses PUT /accounts/{id}; immutability is checked by the service.
func (s *Server) validatePutAccount() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req putAccountRequest
			if !decodeBody(w, r, &req) {
				return
			}
			in := account.UpdateInput{Name: req.AccountName, UserID: req.UserID}
			if req.Amount != nil {
				amt, err := ledger.AmountFromFloat(s.currency, *req.Amount)
				if err != nil {
					unprocessable(w, "amount: "+err.Error(), "validation_error")
					return
				}
				in.Amount = &amt
			}
			ctx := context.WithValue(r.Context(), ctxKeyPutAccount, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateTransaction parses POST /transactions and PUT /transactions/{id} bodies.
// user_id 0 is passed through; the service picks the owner.
func (s *Server) validateTransaction() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req transactionRequest
			if !decodeBody(w, r, &req) {
				return
			}
			if req.UserID < 0 || req.AccountID < 0 {
				unprocessable(w, "user_id and account_id must be non-negative", "validation_error")
				return
			}
			amt, err := ledger.AmountFromFloat(s.currency, req.Amount)
			if err != nil {
				unprocessable(w, "amount: "+err.Error(), "validation_error")
				return
			}
			in := transaction.Input{
				UserID:    req.UserID,
				AccountID: req.AccountID,
				Category:  ledger.Category(req.Category),
				Amount:    amt,
			}
			if req.Date != nil {
				d, err := time.Parse(dateLayout, *req.Date)
				if err != nil {
					unprocessable(w, "date must be formatted as YYYY-MM-DD", "validation_error")
					return
				}
				in.Date = d
			}
			ctx := context.WithValue(r.Context(), ctxKeyTransaction, in)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// validateMonthQuery parses the optional month_trans and year_trans query params.
func (s *Server) validateMonthQuery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var q monthQuery
		params := r.URL.Query()
		for _, p := range []struct {
			name string
			dst  *int
		}{{"month_trans", &q.Month}, {"year_trans", &q.Year}} {
			raw := params.Get(p.name)
			if raw == "" {
				continue
			}
			v, err := strconv.Atoi(raw)
			if err != nil {
				unprocessable(w, p.name+" must be an integer", "validation_error")
				return
			}
			*p.dst = v
		}
		ctx := context.WithValue(r.Context(), ctxKeyMonthQuery, q)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func pathID(r *http.Request) int64 {
	id, _ := r.Context().Value(ctxKeyPathID).(int64)
	return id
}
