package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookstall/bookstall-go/internal/model"
)

// MemoryUserRepository is an in-process user store with the same contract as
// UserRepository. Used with STORAGE=memory and in tests.
type MemoryUserRepository struct {
	mu       sync.RWMutex
	users    map[string]model.User
	onDelete func(id string)
}

// NewMemoryUserRepository creates an empty MemoryUserRepository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]model.User)}
}

// Create stores a copy of user. It returns ErrDuplicateEmail when the address is taken.
func (r *MemoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.emailTakenLocked(user.Email, "") {
		return ErrDuplicateEmail
	}
	r.users[user.ID] = *user
	return nil
}

// GetByID returns a copy of the user with id.
func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// GetByEmail returns a copy of the user registered under email.
func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

// List returns every user ordered by creation time.
func (r *MemoryUserRepository) List(_ context.Context) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].ID < users[j].ID
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

// Update replaces the name and email of an existing user.
func (r *MemoryUserRepository) Update(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return nil
	}
	if r.emailTakenLocked(user.Email, user.ID) {
		return ErrDuplicateEmail
	}
	existing.Email = user.Email
	existing.Name = user.Name
	existing.UpdatedAt = user.UpdatedAt
	r.users[user.ID] = existing
	return nil
}

// Delete removes a user and clears it as owner of any book.
func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.users[id]; !ok {
		r.mu.Unlock()
		return ErrUserNotFound
	}
	delete(r.users, id)
	onDelete := r.onDelete
	r.mu.Unlock()

	if onDelete != nil {
		onDelete(id)
	}
	return nil
}

func (r *MemoryUserRepository) exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok
}

func (r *MemoryUserRepository) emailTakenLocked(email, exceptID string) bool {
	for id, u := range r.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

// MemoryBookRepository is an in-process book store with the same contract as
// BookRepository. When built with a user store it enforces the owner
// reference the way the books.owner_id foreign key does.
type MemoryBookRepository struct {
	mu    sync.RWMutex
	books map[string]model.Book
	users *MemoryUserRepository
}

// NewMemoryBookRepository creates an empty MemoryBookRepository. users may be nil.
func NewMemoryBookRepository(users *MemoryUserRepository) *MemoryBookRepository {
	r := &MemoryBookRepository{books: make(map[string]model.Book), users: users}
	if users != nil {
		users.mu.Lock()
		users.onDelete = r.clearOwner
		users.mu.Unlock()
	}
	return r
}

// Create stores a copy of book.
func (r *MemoryBookRepository) Create(_ context.Context, book *model.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.books[book.ID] = copyBook(*book)
	return nil
}

// GetByID returns a copy of the book with id.
func (r *MemoryBookRepository) GetByID(_ context.Context, id string) (*model.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.books[id]
	if !ok {
		return nil, ErrBookNotFound
	}
	b = copyBook(b)
	return &b, nil
}

// List returns the books matching filter ordered by creation time.
func (r *MemoryBookRepository) List(_ context.Context, filter model.BookFilter) ([]model.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	books := []model.Book{}
	for _, b := range r.books {
		if filter.Author != nil && b.Author != *filter.Author {
			continue
		}
		if filter.IsSold != nil && b.IsSold != *filter.IsSold {
			continue
		}
		books = append(books, copyBook(b))
	}
	sort.Slice(books, func(i, j int) bool {
		if books[i].CreatedAt.Equal(books[j].CreatedAt) {
			return books[i].ID < books[j].ID
		}
		return books[i].CreatedAt.Before(books[j].CreatedAt)
	})
	return books, nil
}

// Update writes the listing fields of an existing book, leaving sale state alone.
func (r *MemoryBookRepository) Update(_ context.Context, book *model.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.books[book.ID]
	if !ok {
		return nil
	}
	existing.Title = book.Title
	existing.Author = book.Author
	existing.Price = book.Price
	existing.UpdatedAt = book.UpdatedAt
	r.books[book.ID] = existing
	return nil
}

// Delete removes a book. Deleting a missing book is not an error.
func (r *MemoryBookRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.books, id)
	return nil
}

// MarkSold flags a book as sold without touching its owner.
func (r *MemoryBookRepository) MarkSold(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.books[id]
	if !ok {
		return nil
	}
	b.IsSold = true
	b.UpdatedAt = at
	r.books[id] = b
	return nil
}

// AssignOwner moves an available book to sold under the store lock. It
// returns ErrBookUnavailable when the book is already sold.
func (r *MemoryBookRepository) AssignOwner(_ context.Context, id, ownerID string, at time.Time) error {
	if r.users != nil && !r.users.exists(ownerID) {
		return ErrUserNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.books[id]
	if !ok || b.IsSold {
		return ErrBookUnavailable
	}
	owner := ownerID
	b.IsSold = true
	b.OwnerID = &owner
	b.UpdatedAt = at
	r.books[id] = b
	return nil
}

// clearOwner drops ownerID from every book it owns, mirroring ON DELETE SET NULL.
func (r *MemoryBookRepository) clearOwner(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, b := range r.books {
		if b.OwnerID != nil && *b.OwnerID == ownerID {
			b.OwnerID = nil
			r.books[id] = b
		}
	}
}

func copyBook(b model.Book) model.Book {
	if b.OwnerID != nil {
		owner := *b.OwnerID
		b.OwnerID = &owner
	}
	return b
}
