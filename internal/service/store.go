package service

import (
	"context"
	"time"

	"github.com/bookstall/bookstall-go/internal/crypto"
	"github.com/bookstall/bookstall-go/internal/model"
)

// UserStore is the identity store. Implemented by repository.UserRepository
// and repository.MemoryUserRepository.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
}

// BookStore is the catalog store.
type BookStore interface {
	Create(ctx context.Context, book *model.Book) error
	GetByID(ctx context.Context, id string) (*model.Book, error)
	List(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	Update(ctx context.Context, book *model.Book) error
	Delete(ctx context.Context, id string) error
	MarkSold(ctx context.Context, id string, at time.Time) error
	// AssignOwner sells an available book to ownerID in one conditional write.
	AssignOwner(ctx context.Context, id, ownerID string, at time.Time) error
}

// PasswordHasher derives and checks stored password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// TokenManager issues and verifies session tokens.
type TokenManager interface {
	Issue(userID string) (string, time.Time, error)
	Validate(token string) (*crypto.Claims, error)
}

// PurchaseRecorder observes purchase outcomes.
type PurchaseRecorder interface {
	RecordPurchase(result string)
}

// Purchase outcomes reported to the PurchaseRecorder.
const (
	PurchaseCompleted    = "completed"
	PurchaseBookMissing  = "book_missing"
	PurchaseAlreadySold  = "already_sold"
	PurchaseBuyerMissing = "buyer_missing"
	PurchaseLostRace     = "lost_race"
	PurchaseError        = "error"
)

type nopRecorder struct{}

func (nopRecorder) RecordPurchase(string) {}
