package handler

import (
	"context"
	"net/http"

	"github.com/bookstall/bookstall-go/internal/middleware"
	"github.com/bookstall/bookstall-go/internal/model"
	"github.com/bookstall/bookstall-go/internal/service"
)

// BookHandler handles HTTP requests for the catalog and purchases.
type BookHandler struct {
	service *service.BookService
}

// NewBookHandler creates a new BookHandler.
func NewBookHandler(svc *service.BookService) *BookHandler {
	return &BookHandler{service: svc}
}

// HandleCreate handles POST /book requests.
func (h *BookHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req model.CreateBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.service.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// HandleList handles GET /book requests.
func (h *BookHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.service.FindAll)
}

// HandleListByAuthor handles GET /book/author/{author} requests.
func (h *BookHandler) HandleListByAuthor(w http.ResponseWriter, r *http.Request) {
	author, ok := pathParam(w, r, "author")
	if !ok {
		return
	}

	books, err := h.service.FindByAuthor(r.Context(), author)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

// HandleListAvailable handles GET /book/status/available requests.
func (h *BookHandler) HandleListAvailable(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.service.GetAvailableBooks)
}

// HandleListSold handles GET /book/status/sold requests.
func (h *BookHandler) HandleListSold(w http.ResponseWriter, r *http.Request) {
	h.writeList(w, r, h.service.GetSoldBooks)
}

// HandleGet handles GET /book/{id} requests.
func (h *BookHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	resp, err := h.service.FindOne(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdate handles PATCH /book/{id} requests.
func (h *BookHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	resp, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleDelete handles DELETE /book/{id} requests. It answers 200 with an
// empty body whether or not the book existed.
func (h *BookHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// HandleMarkSold handles PATCH /book/{id}/sold requests.
func (h *BookHandler) HandleMarkSold(w http.ResponseWriter, r *http.Request) {
	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	resp, err := h.service.MarkAsSold(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleBuy handles POST /book/{id}/buy requests. The buyer is the caller.
func (h *BookHandler) HandleBuy(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	id, ok := pathParam(w, r, "id")
	if !ok {
		return
	}

	resp, err := h.service.BuyBook(r.Context(), identity.UserID, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *BookHandler) writeList(w http.ResponseWriter, r *http.Request, list func(ctx context.Context) ([]model.BookResponse, error)) {
	books, err := list(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}
