package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookstall/bookstall-go/internal/model"
)

var bookRowColumns = []string{"id", "title", "author", "price", "is_sold", "owner_id", "created_at", "updated_at"}

var bookTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testBook() *model.Book {
	return &model.Book{
		ID:        "b-1",
		Title:     "T",
		Author:    "Au",
		Price:     10,
		CreatedAt: bookTime,
		UpdatedAt: bookTime,
	}
}

func TestBookRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	b := testBook()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO books")).
		WithArgs(b.ID, b.Title, b.Author, b.Price, false, sql.NullString{}, b.CreatedAt, b.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewBookRepository(db).Create(context.Background(), b))
}

func TestBookRepositoryGetByID(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM books WHERE id = ?")).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows(bookRowColumns).
			AddRow("b-1", "T", "Au", 10.5, true, "u-1", bookTime, bookTime))

	got, err := NewBookRepository(db).GetByID(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, 10.5, got.Price)
	assert.True(t, got.IsSold)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, "u-1", *got.OwnerID)
}

func TestBookRepositoryGetByIDNullOwner(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM books WHERE id = ?")).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows(bookRowColumns).
			AddRow("b-1", "T", "Au", 10.0, false, nil, bookTime, bookTime))

	got, err := NewBookRepository(db).GetByID(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Nil(t, got.OwnerID)
	assert.False(t, got.IsSold)
}

func TestBookRepositoryGetByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM books WHERE id = ?")).
		WithArgs("invalid-id").
		WillReturnError(sql.ErrNoRows)

	_, err := NewBookRepository(db).GetByID(context.Background(), "invalid-id")
	assert.ErrorIs(t, err, ErrBookNotFound)
}

func TestBookRepositoryListFilters(t *testing.T) {
	author := "Au"
	sold := true

	tests := []struct {
		name   string
		filter model.BookFilter
		query  string
		args   []driver.Value
	}{
		{name: "all", filter: model.BookFilter{}, query: "FROM books ORDER BY created_at, id"},
		{name: "by author", filter: model.BookFilter{Author: &author}, query: "FROM books WHERE author = ? ORDER BY", args: []driver.Value{"Au"}},
		{name: "by status", filter: model.BookFilter{IsSold: &sold}, query: "FROM books WHERE is_sold = ? ORDER BY", args: []driver.Value{true}},
		{name: "both", filter: model.BookFilter{Author: &author, IsSold: &sold}, query: "WHERE author = ? AND is_sold = ?", args: []driver.Value{"Au", true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)

			exp := mock.ExpectQuery(regexp.QuoteMeta(tt.query))
			if len(tt.args) > 0 {
				exp = exp.WithArgs(tt.args...)
			}
			exp.WillReturnRows(sqlmock.NewRows(bookRowColumns).
				AddRow("b-1", "T", "Au", 10.0, true, nil, bookTime, bookTime))

			books, err := NewBookRepository(db).List(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Len(t, books, 1)
		})
	}
}

func TestBookRepositoryUpdateLeavesSaleStateAlone(t *testing.T) {
	db, mock := newMockDB(t)
	b := testBook()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE books SET title = ?, author = ?, price = ?, updated_at = ? WHERE id = ?")).
		WithArgs(b.Title, b.Author, b.Price, b.UpdatedAt, b.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewBookRepository(db).Update(context.Background(), b))
}

func TestBookRepositoryDeleteMissingIsNotAnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM books WHERE id = ?")).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewBookRepository(db).Delete(context.Background(), "ghost"))
}

func TestBookRepositoryMarkSold(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE books SET is_sold = TRUE, updated_at = ? WHERE id = ?")).
		WithArgs(bookTime, "b-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, NewBookRepository(db).MarkSold(context.Background(), "b-1", bookTime))
}

func TestBookRepositoryAssignOwner(t *testing.T) {
	const query = "UPDATE books SET is_sold = TRUE, owner_id = ?, updated_at = ? WHERE id = ? AND is_sold = FALSE"

	tests := []struct {
		name    string
		result  driver.Result
		err     error
		wantErr error
	}{
		{name: "available", result: sqlmock.NewResult(0, 1)},
		{name: "already sold or missing", result: sqlmock.NewResult(0, 0), wantErr: ErrBookUnavailable},
		{name: "owner vanished", err: &mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"}, wantErr: ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)

			exp := mock.ExpectExec(regexp.QuoteMeta(query)).WithArgs("u-1", bookTime, "b-1")
			if tt.err != nil {
				exp.WillReturnError(tt.err)
			} else {
				exp.WillReturnResult(tt.result)
			}

			err := NewBookRepository(db).AssignOwner(context.Background(), "b-1", "u-1", bookTime)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBookRepositoryAssignOwnerDBError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE books SET is_sold = TRUE, owner_id = ?")).
		WillReturnError(errors.New("lock wait timeout"))

	err := NewBookRepository(db).AssignOwner(context.Background(), "b-1", "u-1", bookTime)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBookUnavailable)
	assert.Contains(t, err.Error(), "assign book owner")
}
