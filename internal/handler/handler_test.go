package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstall/bookstall-go/internal/crypto"
	"github.com/bookstall/bookstall-go/internal/middleware"
	"github.com/bookstall/bookstall-go/internal/model"
	"github.com/bookstall/bookstall-go/internal/repository"
	"github.com/bookstall/bookstall-go/internal/service"
)

type fixture struct {
	router http.Handler
	users  *service.UserService
	books  *service.BookService
	caller string
}

// newFixture mounts the handlers without the auth guard. Requests are made as
// the caller unless they carry the X-Anonymous header.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	h, err := crypto.NewHasher(crypto.AlgorithmBcrypt)
	require.NoError(t, err)
	h = h.WithBcryptCost(4)

	userRepo := repository.NewMemoryUserRepository()
	bookRepo := repository.NewMemoryBookRepository(userRepo)
	users := service.NewUserService(userRepo, h)
	books := service.NewBookService(bookRepo, userRepo, nil)
	auth := service.NewAuthService(userRepo, h, crypto.NewTokenManager("k", time.Hour))

	caller, err := users.Create(context.Background(), model.CreateUserRequest{Name: "A", Email: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)

	uh := NewUserHandler(users)
	bh := NewBookHandler(books)
	ah := NewAuthHandler(auth)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Anonymous") == "" {
				r = r.WithContext(middleware.WithIdentity(r.Context(), model.Identity{UserID: caller.ID}))
			}
			next.ServeHTTP(w, r)
		})
	})
	r.Post("/auth/login", ah.HandleLogin)
	r.Get("/auth/me", ah.HandleMe)
	r.Post("/user", uh.HandleCreate)
	r.Get("/user", uh.HandleList)
	r.Get("/user/email/{email}", uh.HandleGetByEmail)
	r.Get("/user/{id}", uh.HandleGet)
	r.Patch("/user/{id}", uh.HandleUpdate)
	r.Delete("/user/{id}", uh.HandleDelete)
	r.Post("/book", bh.HandleCreate)
	r.Get("/book", bh.HandleList)
	r.Get("/book/status/available", bh.HandleListAvailable)
	r.Get("/book/status/sold", bh.HandleListSold)
	r.Get("/book/author/{author}", bh.HandleListByAuthor)
	r.Get("/book/{id}", bh.HandleGet)
	r.Patch("/book/{id}", bh.HandleUpdate)
	r.Delete("/book/{id}", bh.HandleDelete)
	r.Patch("/book/{id}/sold", bh.HandleMarkSold)
	r.Post("/book/{id}/buy", bh.HandleBuy)

	return &fixture{router: r, users: users, books: books, caller: caller.ID}
}

func (f *fixture) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestDecodeErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{name: "empty", body: "", wantStatus: http.StatusBadRequest, wantMsg: "request body is empty"},
		{name: "malformed", body: "{", wantStatus: http.StatusBadRequest, wantMsg: "invalid request body"},
		{name: "too large", body: `{"title":"` + strings.Repeat("a", maxBodyBytes) + `"}`, wantStatus: http.StatusRequestEntityTooLarge, wantMsg: "request body too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/book", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeBody[errorBody](t, rec)
			assert.Equal(t, tt.wantStatus, body.StatusCode)
			assert.Equal(t, http.StatusText(tt.wantStatus), body.Error)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

func TestUnknownBodyFieldsAreIgnored(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/user", `{"name":"B","email":"b@x.com","password":"Hola123456","role":"admin"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "role")

	rec = f.do(t, http.MethodPost, "/book", `{"title":"T","author":"Au","price":1,"ownerId":"someone"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	book := decodeBody[model.BookResponse](t, rec)
	assert.Nil(t, book.OwnerID)
	assert.False(t, book.IsSold)
}

func TestPathParamsAreDecoded(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/user/email/a%40x.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, f.caller, decodeBody[model.UserResponse](t, rec).ID)

	for _, author := range []string{"Smith, John", "100%"} {
		rec = f.do(t, http.MethodPost, "/book", `{"title":"T","author":"`+author+`","price":1}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	tests := []struct{ path, want string }{
		{path: "/book/author/Smith%2C%20John", want: "Smith, John"},
		{path: "/book/author/Smith,%20John", want: "Smith, John"},
		{path: "/book/author/100%25", want: "100%"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			books := decodeBody[[]model.BookResponse](t, rec)
			require.Len(t, books, 1)
			assert.Equal(t, tt.want, books[0].Author)
		})
	}
}

func TestPathParamBadEscape(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/book/author/x", nil)
	req.URL.RawPath = "/book/author/%zz"
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid path parameter: author", decodeBody[errorBody](t, rec).Message)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantMsg    string
	}{
		{err: &service.NotFoundError{Entity: "Book", ID: "1"}, wantStatus: http.StatusNotFound, wantMsg: "Book with id: 1 not found"},
		{err: &service.ValidationError{Messages: []string{"price must not be less than 0"}}, wantStatus: http.StatusBadRequest, wantMsg: "price must not be less than 0"},
		{err: service.ErrInvalidCredentials, wantStatus: http.StatusUnauthorized, wantMsg: "invalid email or password"},
		{err: service.ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantMsg: "unauthorized"},
		{err: service.ErrEmailTaken, wantStatus: http.StatusConflict, wantMsg: "email already taken"},
		{err: errors.New("dial tcp: connection refused"), wantStatus: http.StatusInternalServerError, wantMsg: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.wantStatus), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeBody[errorBody](t, rec).Message)
		})
	}
}

func TestAuthHandlers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"Secret123"}`, "X-Anonymous", "1")
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeBody[model.LoginResponse](t, rec)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, f.caller, login.User.ID)

	rec = f.do(t, http.MethodPost, "/auth/login", `{"email":"a@x.com","password":"nope"}`, "X-Anonymous", "1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/auth/me", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@x.com", decodeBody[model.UserResponse](t, rec).Email)

	rec = f.do(t, http.MethodGet, "/auth/me", "", "X-Anonymous", "1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserHandlers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/user", `{"name":"B","email":"b@x.com","password":"123456"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/user", `{"name":"B","email":"b@x.com","password":"Hola123456"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	created := decodeBody[model.UserResponse](t, rec)

	rec = f.do(t, http.MethodPost, "/user", `{"name":"C","email":"b@x.com","password":"Hola123456"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/user", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.UserResponse](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/user/email/b@x.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeBody[model.UserResponse](t, rec).ID)

	rec = f.do(t, http.MethodGet, "/user/email/nobody@x.com", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null", strings.TrimSpace(rec.Body.String()))

	rec = f.do(t, http.MethodPatch, "/user/"+created.ID, `{"name":"Bea"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Bea", decodeBody[model.UserResponse](t, rec).Name)

	rec = f.do(t, http.MethodDelete, "/user/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeBody[model.UserResponse](t, rec).ID)

	rec = f.do(t, http.MethodDelete, "/user/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User with id: "+created.ID+" not found", decodeBody[errorBody](t, rec).Message)

	rec = f.do(t, http.MethodGet, "/user/"+created.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookHandlers(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/book", `{"title":"T","author":"Au","price":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "price must not be less than 0", decodeBody[errorBody](t, rec).Message)

	rec = f.do(t, http.MethodPost, "/book", `{"title":"T","author":"Au","price":10,"isSold":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/book", `{"title":"T","author":"Au","price":10}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	book := decodeBody[model.BookResponse](t, rec)
	assert.False(t, book.IsSold)
	assert.NotContains(t, rec.Body.String(), "ownerId")

	rec = f.do(t, http.MethodGet, "/book/author/Au", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.BookResponse](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/book/status/sold", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = f.do(t, http.MethodPatch, "/book/"+book.ID, `{"price":12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 12.0, decodeBody[model.BookResponse](t, rec).Price)

	rec = f.do(t, http.MethodPatch, "/book/"+book.ID, `{"isSold":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "sale state is not updatable")
	assert.Contains(t, decodeBody[errorBody](t, rec).Message, "isSold cannot be updated")

	rec = f.do(t, http.MethodPost, "/book/"+book.ID+"/buy", "", "X-Anonymous", "1")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/book/"+book.ID+"/buy", "")
	require.Equal(t, http.StatusOK, rec.Code)
	bought := decodeBody[model.BookResponse](t, rec)
	assert.True(t, bought.IsSold)
	require.NotNil(t, bought.OwnerID)
	assert.Equal(t, f.caller, *bought.OwnerID)

	rec = f.do(t, http.MethodPost, "/book/"+book.ID+"/buy", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Book with id: "+book.ID+" is already sold", decodeBody[errorBody](t, rec).Message)

	rec = f.do(t, http.MethodDelete, "/book/"+book.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	rec = f.do(t, http.MethodDelete, "/book/"+book.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code, "deleting a missing book is not an error")

	rec = f.do(t, http.MethodGet, "/book/"+book.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkSoldHandler(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPatch, "/book/ghost/sold", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/book", `{"title":"T","author":"Au","price":0}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	book := decodeBody[model.BookResponse](t, rec)

	rec = f.do(t, http.MethodPatch, "/book/"+book.ID+"/sold", "")
	require.Equal(t, http.StatusOK, rec.Code)
	sold := decodeBody[model.BookResponse](t, rec)
	assert.True(t, sold.IsSold)
	assert.Nil(t, sold.OwnerID)

	rec = f.do(t, http.MethodGet, "/book/status/available", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]model.BookResponse](t, rec))
}
