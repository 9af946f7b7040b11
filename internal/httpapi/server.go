// Package httpapi wires the HTTP surface of the finance manager.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tinoosan/finman/internal/service/account"
	"github.com/tinoosan/finman/internal/service/stats"
	"github.com/tinoosan/finman/internal/service/transaction"
	"github.com/tinoosan/finman/internal/service/user"
)

// ReadyChecker is satisfied by stores that can report readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

// Deps are the collaborators the server delegates to.
type Deps struct {
	Users        user.Service
	Accounts     account.Service
	Transactions transaction.Service
	Stats        stats.Service
	Ready        ReadyChecker
	// Currency is the code float amounts in request bodies are converted into.
	Currency string
}

// Server wires handlers and middleware using Chi.
type Server struct {
	users    user.Service
	accounts account.Service
	txns     transaction.Service
	stats    stats.Service
	ready    ReadyChecker
	currency string
	log      *slog.Logger
	rt       *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request logging, panic recovery and 500 reporting.
func New(d Deps, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	s := &Server{
		users:    d.Users,
		accounts: d.Accounts,
		txns:     d.Transactions,
		stats:    d.Stats,
		ready:    d.Ready,
		currency: d.Currency,
		log:      logger,
		rt:       r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }
