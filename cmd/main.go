package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tinoosan/finman/internal/auth"
	"github.com/tinoosan/finman/internal/authz"
	"github.com/tinoosan/finman/internal/config"
	"github.com/tinoosan/finman/internal/httpapi"
	"github.com/tinoosan/finman/internal/service/account"
	"github.com/tinoosan/finman/internal/service/stats"
	"github.com/tinoosan/finman/internal/service/transaction"
	"github.com/tinoosan/finman/internal/service/user"
	"github.com/tinoosan/finman/internal/storage"
	"github.com/tinoosan/finman/internal/storage/memory"
	pgstore "github.com/tinoosan/finman/internal/storage/postgres"
	"github.com/tinoosan/finman/internal/storage/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	logger := buildLogger(cfg)
	slog.SetDefault(logger)

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("failed to open store", "backend", cfg.Backend(), "err", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("storage backend: " + cfg.Backend())

	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL)
	if err != nil {
		logger.Error("token issuer", "err", err)
		os.Exit(1)
	}
	protect := authz.Protector{AdminLogin: cfg.AdminLogin}
	users := user.New(store, store, tokens, protect)

	admin, created, err := users.EnsureAdmin(ctx, user.Credentials{Login: cfg.AdminLogin, Password: cfg.AdminPassword})
	if err != nil {
		logger.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	logger.Info("admin ready", "user_id", admin.ID, "login", admin.Login, "created", created)

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: httpapi.New(httpapi.Deps{
			Users:        users,
			Accounts:     account.New(store, store, protect),
			Transactions: transaction.New(store, store, protect),
			Stats:        stats.New(store, cfg.Currency),
			Ready:        store,
			Currency:     cfg.Currency,
		}, logger).Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("finman service listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
	case err := <-errCh:
		logger.Error("server error", "err", err)
	}
}

// openStore picks the backend selected by the configuration.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Backend() {
	case "postgres":
		pg, err := pgstore.Open(ctx, cfg.DatabaseURL, cfg.Currency)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "sqlite":
		lite, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.Currency)
		if err != nil {
			return nil, err
		}
		return lite, nil
	default:
		return memory.New(), nil
	}
}

// parseLogLevel maps config values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
