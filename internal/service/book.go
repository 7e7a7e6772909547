package service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/bookstall/bookstall-go/internal/model"
	"github.com/bookstall/bookstall-go/internal/repository"
)

// BookService manages the catalog and the purchase workflow.
type BookService struct {
	books    BookStore
	users    UserStore
	recorder PurchaseRecorder
	now      func() time.Time
}

// NewBookService creates a new BookService. recorder may be nil.
func NewBookService(books BookStore, users UserStore, recorder PurchaseRecorder) *BookService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &BookService{
		books:    books,
		users:    users,
		recorder: recorder,
		now:      time.Now,
	}
}

// Create lists a new book. Books always enter the catalog available.
func (s *BookService) Create(ctx context.Context, req model.CreateBookRequest) (model.BookResponse, error) {
	if err := validateRequest(req); err != nil {
		return model.BookResponse{}, err
	}
	if req.IsSold != nil && *req.IsSold {
		return model.BookResponse{}, newValidationError("isSold must be false for a new book")
	}

	now := s.now().UTC()
	book := &model.Book{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Author:    req.Author,
		Price:     roundPrice(*req.Price),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.books.Create(ctx, book); err != nil {
		return model.BookResponse{}, errors.Wrap(err, "create book")
	}
	return book.ToResponse(), nil
}

// FindAll lists every book in the catalog.
func (s *BookService) FindAll(ctx context.Context) ([]model.BookResponse, error) {
	return s.list(ctx, model.BookFilter{})
}

// FindOne returns the book with id or a NotFoundError.
func (s *BookService) FindOne(ctx context.Context, id string) (model.BookResponse, error) {
	book, err := s.load(ctx, id)
	if err != nil {
		return model.BookResponse{}, err
	}
	return book.ToResponse(), nil
}

// FindByAuthor matches author exactly.
func (s *BookService) FindByAuthor(ctx context.Context, author string) ([]model.BookResponse, error) {
	return s.list(ctx, model.BookFilter{Author: &author})
}

// GetAvailableBooks lists the books that are still for sale.
func (s *BookService) GetAvailableBooks(ctx context.Context) ([]model.BookResponse, error) {
	sold := false
	return s.list(ctx, model.BookFilter{IsSold: &sold})
}

// GetSoldBooks lists the books that have been sold.
func (s *BookService) GetSoldBooks(ctx context.Context) ([]model.BookResponse, error) {
	sold := true
	return s.list(ctx, model.BookFilter{IsSold: &sold})
}

// Update applies the fields present in req. A request carrying isSold is
// rejected; sale state changes only through MarkAsSold and BuyBook.
func (s *BookService) Update(ctx context.Context, id string, req model.UpdateBookRequest) (model.BookResponse, error) {
	if err := validateRequest(req); err != nil {
		return model.BookResponse{}, err
	}
	if req.IsSold != nil {
		return model.BookResponse{}, newValidationError("isSold cannot be updated, mark the book sold or buy it instead")
	}

	book, err := s.load(ctx, id)
	if err != nil {
		return model.BookResponse{}, err
	}

	if req.Title != nil {
		book.Title = *req.Title
	}
	if req.Author != nil {
		book.Author = *req.Author
	}
	if req.Price != nil {
		book.Price = roundPrice(*req.Price)
	}
	book.UpdatedAt = s.now().UTC()

	if err := s.books.Update(ctx, book); err != nil {
		return model.BookResponse{}, errors.Wrap(err, "update book")
	}
	return book.ToResponse(), nil
}

// Remove deletes a book. Removing a missing book is not an error.
func (s *BookService) Remove(ctx context.Context, id string) error {
	return errors.Wrap(s.books.Delete(ctx, id), "delete book")
}

// MarkAsSold flags a book sold without assigning an owner.
func (s *BookService) MarkAsSold(ctx context.Context, id string) (model.BookResponse, error) {
	book, err := s.load(ctx, id)
	if err != nil {
		return model.BookResponse{}, err
	}

	now := s.now().UTC()
	if err := s.books.MarkSold(ctx, id, now); err != nil {
		return model.BookResponse{}, errors.Wrap(err, "mark book sold")
	}

	book.IsSold = true
	book.UpdatedAt = now
	return book.ToResponse(), nil
}

// BuyBook sells an available book to buyerID. A missing book, a missing
// buyer and an already sold book all fail with ErrNotFound. The sale itself
// is a single conditional write so two buyers can never both succeed.
func (s *BookService) BuyBook(ctx context.Context, buyerID, bookID string) (model.BookResponse, error) {
	book, err := s.books.GetByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			s.recorder.RecordPurchase(PurchaseBookMissing)
			return model.BookResponse{}, bookNotFound(bookID)
		}
		s.recorder.RecordPurchase(PurchaseError)
		return model.BookResponse{}, errors.Wrap(err, "load book")
	}
	if book.IsSold {
		s.recorder.RecordPurchase(PurchaseAlreadySold)
		return model.BookResponse{}, alreadySold(bookID)
	}

	if _, err := s.users.GetByID(ctx, buyerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			s.recorder.RecordPurchase(PurchaseBuyerMissing)
			return model.BookResponse{}, userNotFound(buyerID)
		}
		s.recorder.RecordPurchase(PurchaseError)
		return model.BookResponse{}, errors.Wrap(err, "load buyer")
	}

	now := s.now().UTC()
	if err := s.books.AssignOwner(ctx, bookID, buyerID, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrBookUnavailable):
			s.recorder.RecordPurchase(PurchaseLostRace)
			slog.Warn("purchase lost race", "book_id", bookID, "buyer_id", buyerID)
			return model.BookResponse{}, alreadySold(bookID)
		case errors.Is(err, repository.ErrUserNotFound):
			s.recorder.RecordPurchase(PurchaseBuyerMissing)
			return model.BookResponse{}, userNotFound(buyerID)
		default:
			s.recorder.RecordPurchase(PurchaseError)
			return model.BookResponse{}, errors.Wrap(err, "assign book owner")
		}
	}

	s.recorder.RecordPurchase(PurchaseCompleted)
	slog.Info("book purchased", "book_id", bookID, "buyer_id", buyerID)

	owner := buyerID
	book.IsSold = true
	book.OwnerID = &owner
	book.UpdatedAt = now
	return book.ToResponse(), nil
}

func (s *BookService) list(ctx context.Context, filter model.BookFilter) ([]model.BookResponse, error) {
	books, err := s.books.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list books")
	}
	return model.BooksToResponse(books), nil
}

func (s *BookService) load(ctx context.Context, id string) (*model.Book, error) {
	book, err := s.books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return nil, bookNotFound(id)
		}
		return nil, errors.Wrap(err, "load book")
	}
	return book, nil
}

// roundPrice rounds to the two decimal places the price column holds.
func roundPrice(p float64) float64 {
	return math.Round(p*100) / 100
}

func alreadySold(id string) error {
	return &NotFoundError{Entity: "Book", ID: id, Reason: "is already sold"}
}
