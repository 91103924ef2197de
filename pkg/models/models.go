package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid marks a record that fails its field rules.
var ErrInvalid = errors.New("invalid record")

var validate = validator.New(validator.WithRequiredStructEnabled())

// books collection
type Book struct {
	ID        string   `json:"id"`
	Title     string   `json:"title" validate:"required,min=3"`
	Published *int     `json:"published,omitempty"`
	Genres    []string `json:"genres"`
	AuthorID  string   `json:"author_id" validate:"required"`
}

// authors collection; bookCount/books are derived from books.author_id
type Author struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required,min=3"`
	Born *int   `json:"born,omitempty"`
}

// users collection
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username" validate:"required,min=3"`
	FavoriteGenre string `json:"favorite_genre" validate:"required,min=3"`
	PasswordHash  string `json:"-"`
}

// BookAdded is pushed to feed subscribers after a book is stored.
type BookAdded struct {
	BookID    string   `json:"book_id"`
	Title     string   `json:"title"`
	Author    string   `json:"author"`
	Genres    []string `json:"genres"`
	Timestamp int64    `json:"timestamp"`
}

func (b *Book) Validate() error  { return check(validate.Struct(b)) }
func (a *Author) Validate() error { return check(validate.Struct(a)) }
func (u *User) Validate() error   { return check(validate.Struct(u)) }

// ValidateDetails checks every rule except the author reference, which is
// not known until the author has been found or created.
func (b *Book) ValidateDetails() error { return check(validate.StructExcept(b, "AuthorID")) }

// TrimGenres strips surrounding whitespace from every genre, keeping order.
func TrimGenres(genres []string) []string {
	out := make([]string, len(genres))
	for i, g := range genres {
		out[i] = strings.TrimSpace(g)
	}
	return out
}

func check(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		parts := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(parts, ", "))
	}
	return fmt.Errorf("%w: %v", ErrInvalid, err)
}
