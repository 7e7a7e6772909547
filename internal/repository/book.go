package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bookstall/bookstall-go/internal/model"
)

var (
	ErrBookNotFound = errors.New("book not found")
	// ErrBookUnavailable is returned when a sale targets a book that is missing or already sold.
	ErrBookUnavailable = errors.New("book is not available")
)

const bookColumns = `id, title, author, price, is_sold, owner_id, created_at, updated_at`

// BookRepository handles book persistence operations.
type BookRepository struct {
	db *sql.DB
}

// NewBookRepository creates a new BookRepository.
func NewBookRepository(db *sql.DB) *BookRepository {
	return &BookRepository{db: db}
}

// Create inserts a new book. ID and timestamps must already be set.
func (r *BookRepository) Create(ctx context.Context, book *model.Book) error {
	query := `INSERT INTO books (id, title, author, price, is_sold, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		book.ID, book.Title, book.Author, book.Price, book.IsSold, nullString(book.OwnerID),
		book.CreatedAt, book.UpdatedAt,
	)
	return errors.Wrap(err, "insert book")
}

// GetByID retrieves a book by its ID.
func (r *BookRepository) GetByID(ctx context.Context, id string) (*model.Book, error) {
	query := `SELECT ` + bookColumns + ` FROM books WHERE id = ?`

	book, err := scanBook(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, errors.Wrap(err, "select book")
	}
	return book, nil
}

// List returns the books matching filter ordered by creation time.
func (r *BookRepository) List(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	var (
		where []string
		args  []any
	)
	if filter.Author != nil {
		where = append(where, "author = ?")
		args = append(args, *filter.Author)
	}
	if filter.IsSold != nil {
		where = append(where, "is_sold = ?")
		args = append(args, *filter.IsSold)
	}

	query := `SELECT ` + bookColumns + ` FROM books`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list books")
	}
	defer rows.Close()

	books := []model.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan book")
		}
		books = append(books, *book)
	}

	return books, errors.Wrap(rows.Err(), "iterate books")
}

// Update writes the listing fields of an existing book. Sale state columns are
// never written here so a concurrent purchase cannot be undone by an edit.
func (r *BookRepository) Update(ctx context.Context, book *model.Book) error {
	query := `UPDATE books SET title = ?, author = ?, price = ?, updated_at = ? WHERE id = ?`

	_, err := r.db.ExecContext(ctx, query, book.Title, book.Author, book.Price, book.UpdatedAt, book.ID)
	return errors.Wrap(err, "update book")
}

// Delete removes a book by ID. Deleting a missing book is not an error.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
	return errors.Wrap(err, "delete book")
}

// MarkSold flags a book as sold without touching its owner.
func (r *BookRepository) MarkSold(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE books SET is_sold = TRUE, updated_at = ? WHERE id = ?`, at, id)
	return errors.Wrap(err, "mark book sold")
}

// AssignOwner atomically moves an available book to sold and records its owner.
// It returns ErrBookUnavailable when no available row matched, which covers a
// concurrent buyer winning the race, and ErrUserNotFound when the owner row
// vanished before the write.
func (r *BookRepository) AssignOwner(ctx context.Context, id, ownerID string, at time.Time) error {
	query := `UPDATE books SET is_sold = TRUE, owner_id = ?, updated_at = ? WHERE id = ? AND is_sold = FALSE`

	result, err := r.db.ExecContext(ctx, query, ownerID, at, id)
	if err != nil {
		if isMissingReferenceError(err) {
			return ErrUserNotFound
		}
		return errors.Wrap(err, "assign book owner")
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "assign book owner")
	}
	if rowsAffected == 0 {
		return ErrBookUnavailable
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner) (*model.Book, error) {
	var (
		book  model.Book
		owner sql.NullString
	)
	if err := row.Scan(
		&book.ID, &book.Title, &book.Author, &book.Price, &book.IsSold, &owner,
		&book.CreatedAt, &book.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if owner.Valid {
		book.OwnerID = &owner.String
	}
	return &book, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
