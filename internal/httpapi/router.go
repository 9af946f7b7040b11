package httpapi

import (
	chi "github.com/go-chi/chi/v5"
)

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	s.rt.Get("/", s.greeting)

	s.rt.Route("/users", func(r chi.Router) {
		r.With(s.validateCredentials()).Post("/register", s.register)
		r.With(s.basicAuth).Get("/authorise-with-password", s.currentUser)
		r.With(s.bearerAuth).Get("/authorise-with-token", s.currentUser)
		r.With(s.basicAuth).Get("/get-token", s.getToken)
		r.With(s.basicAuth).Get("/get-all", s.listUsers)
		r.With(s.basicAuth, s.validatePathID).Delete("/{id}", s.deleteUser)
		r.With(s.bearerAuth, s.validatePathID, s.validateCredentials()).Put("/{id}", s.updateUser)
	})

	s.rt.Route("/accounts", func(r chi.Router) {
		r.Use(s.basicAuth)
		r.With(s.validatePostAccount()).Post("/", s.postAccount)
		r.Get("/get-all", s.listAllAccounts)
		r.With(s.validatePathID).Get("/{id}", s.listUserAccounts)
		r.With(s.validatePathID).Delete("/{id}", s.deleteAccount)
		r.With(s.validatePathID, s.validatePutAccount()).Put("/{id}", s.updateAccount)
	})

	s.rt.Route("/transactions", func(r chi.Router) {
		r.Use(s.basicAuth)
		r.With(s.validateTransaction()).Post("/", s.postTransaction)
		r.Get("/", s.listAllTransactions)
		r.With(s.validatePathID).Get("/{id}", s.listUserTransactions)
		r.With(s.validatePathID).Delete("/{id}", s.deleteTransaction)
		r.With(s.validatePathID, s.validateTransaction()).Put("/{id}", s.updateTransaction)
	})

	s.rt.Route("/stats", func(r chi.Router) {
		r.Use(s.basicAuth)
		r.With(s.validatePathID).Get("/user-balances/{id}", s.userBalances)
		r.With(s.validatePathID, s.validateMonthQuery).Get("/monthly-category-spent/{id}", s.monthlyCategorySpent)
	})

	// Reference data
	s.rt.Get("/dictionary/categories", s.getCategoriesDictionary)
	// Health (unauthenticated)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}
