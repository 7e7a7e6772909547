package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bookstall/bookstall-go/internal/handler"
	"github.com/bookstall/bookstall-go/internal/metrics"
	"github.com/bookstall/bookstall-go/internal/middleware"
)

// Deps are the collaborators the route table is built from.
type Deps struct {
	Auth  *handler.AuthHandler
	Users *handler.UserHandler
	Books *handler.BookHandler
	// Guard validates bearer tokens on protected routes.
	Guard middleware.TokenValidator

	AuthRateRPS   float64
	AuthRateBurst int
}

// New builds the HTTP route table. ctx bounds background work such as
// rate limiter cleanup.
func New(ctx context.Context, d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(chimw.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Credential endpoints are public and rate limited per client.
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, d.AuthRateRPS, d.AuthRateBurst))
		r.Post("/auth/login", d.Auth.HandleLogin)
		r.Post("/user", d.Users.HandleCreate)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(d.Guard))

		r.Get("/auth/me", d.Auth.HandleMe)

		r.Get("/user", d.Users.HandleList)
		r.Get("/user/email/{email}", d.Users.HandleGetByEmail)
		r.Get("/user/{id}", d.Users.HandleGet)
		r.Patch("/user/{id}", d.Users.HandleUpdate)
		r.Delete("/user/{id}", d.Users.HandleDelete)

		r.Post("/book", d.Books.HandleCreate)
		r.Get("/book", d.Books.HandleList)
		r.Get("/book/author/{author}", d.Books.HandleListByAuthor)
		r.Get("/book/status/available", d.Books.HandleListAvailable)
		r.Get("/book/status/sold", d.Books.HandleListSold)
		r.Get("/book/{id}", d.Books.HandleGet)
		r.Patch("/book/{id}", d.Books.HandleUpdate)
		r.Delete("/book/{id}", d.Books.HandleDelete)
		r.Patch("/book/{id}/sold", d.Books.HandleMarkSold)
		r.Post("/book/{id}/buy", d.Books.HandleBuy)
	})

	return r
}
