package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bookstall/bookstall-go/internal/config"
	"github.com/bookstall/bookstall-go/internal/crypto"
	"github.com/bookstall/bookstall-go/internal/handler"
	"github.com/bookstall/bookstall-go/internal/metrics"
	"github.com/bookstall/bookstall-go/internal/repository"
	"github.com/bookstall/bookstall-go/internal/router"
	"github.com/bookstall/bookstall-go/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(newLogger(cfg))

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	users, books, closeStore, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hasher, err := crypto.NewHasher(cfg.PasswordHash)
	if err != nil {
		return err
	}
	tokens := crypto.NewTokenManager(cfg.JWTSecret, cfg.JWTExpiry)

	authService := service.NewAuthService(users, hasher, tokens)
	userService := service.NewUserService(users, hasher)
	bookService := service.NewBookService(books, users, metrics.PurchaseRecorder{})

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: router.New(ctx, router.Deps{
			Auth:          handler.NewAuthHandler(authService),
			Users:         handler.NewUserHandler(userService),
			Books:         handler.NewBookHandler(bookService),
			Guard:         authService,
			AuthRateRPS:   cfg.AuthRateRPS,
			AuthRateBurst: cfg.AuthRateBurst,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.Port, "env", cfg.Env, "storage", cfg.Storage)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	slog.Info("server stopped")
	return nil
}

// openStores returns the identity and catalog stores for the configured
// backend and a function releasing their resources.
func openStores(ctx context.Context, cfg config.Config) (service.UserStore, service.BookStore, func(), error) {
	if cfg.Storage == config.StorageMemory {
		slog.Warn("using in-memory storage, data is lost on restart")
		users := repository.NewMemoryUserRepository()
		return users, repository.NewMemoryBookRepository(users), func() {}, nil
	}

	db, err := repository.NewDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			slog.Error("close database", "error", err)
		}
	}

	if cfg.DBMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			closeDB()
			return nil, nil, nil, err
		}
		slog.Info("database migrations applied")
	}

	return repository.NewUserRepository(db), repository.NewBookRepository(db), closeDB, nil
}
