package model

import "time"

// Book represents a listing in the catalog store.
// OwnerID is set when the book was acquired through a purchase.
type Book struct {
	ID        string
	Title     string
	Author    string
	Price     float64
	IsSold    bool
	OwnerID   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BookFilter narrows catalog listings. Nil fields do not filter.
type BookFilter struct {
	Author *string
	IsSold *bool
}

// MaxPrice is the largest price the catalog column can hold. Prices are
// stored with two decimal places.
const MaxPrice = 9999999999.99

// CreateBookRequest represents a new listing.
type CreateBookRequest struct {
	Title  string   `json:"title" validate:"required,max=255"`
	Author string   `json:"author" validate:"required,max=255"`
	Price  *float64 `json:"price" validate:"required,gte=0,lte=9999999999.99"`
	IsSold *bool    `json:"isSold"`
}

// UpdateBookRequest carries a partial book update. IsSold is decoded only so
// that an attempt to change sale state can be rejected.
type UpdateBookRequest struct {
	Title  *string  `json:"title" validate:"omitempty,min=1,max=255"`
	Author *string  `json:"author" validate:"omitempty,min=1,max=255"`
	Price  *float64 `json:"price" validate:"omitempty,gte=0,lte=9999999999.99"`
	IsSold *bool    `json:"isSold"`
}

// BookResponse represents a book in API responses.
type BookResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Price     float64   `json:"price"`
	IsSold    bool      `json:"isSold"`
	OwnerID   *string   `json:"ownerId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ToResponse converts the stored record into its API shape.
func (b *Book) ToResponse() BookResponse {
	return BookResponse{
		ID:        b.ID,
		Title:     b.Title,
		Author:    b.Author,
		Price:     b.Price,
		IsSold:    b.IsSold,
		OwnerID:   b.OwnerID,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

// BooksToResponse converts a slice of books, never returning nil.
func BooksToResponse(books []Book) []BookResponse {
	result := make([]BookResponse, len(books))
	for i := range books {
		result[i] = books[i].ToResponse()
	}
	return result
}
