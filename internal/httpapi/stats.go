package httpapi

import (
	"net/http"

	"github.com/tinoosan/finman/internal/ledger"
)

// GET /stats/user-balances/{id}
func (s *Server) userBalances(w http.ResponseWriter, r *http.Request) {
	b, err := s.stats.UserBalances(r.Context(), caller(r), pathID(r))
	if err != nil {
		s.serviceErr(w, r, "stats_balances", err)
		return
	}
	toJSON(w, http.StatusOK, toBalancesResponse(b))
}

// GET /stats/monthly-category-spent/{id}?month_trans=&year_trans=
func (s *Server) monthlyCategorySpent(w http.ResponseWriter, r *http.Request) {
	q, _ := r.Context().Value(ctxKeyMonthQuery).(monthQuery)
	sums, err := s.stats.MonthlyCategorySpent(r.Context(), caller(r), pathID(r), q.Month, q.Year)
	if err != nil {
		s.serviceErr(w, r, "stats_monthly", err)
		return
	}
	out := make([]categorySpendingResponse, 0, len(sums))
	for _, c := range sums {
		out = append(out, categorySpendingResponse{Category: c.Category, CatAmount: ledger.Float(c.Amount)})
	}
	toJSON(w, http.StatusOK, out)
}
