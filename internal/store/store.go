// Package store defines the catalog persistence contract and opens a backend
// for a database URI.
package store

import (
	"context"
	"errors"
	"strings"

	"bookgraph/pkg/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// BookFilter narrows ListBooks. A nil field does not filter; a non-nil one
// is matched exactly, even when it points at "".
type BookFilter struct {
	AuthorName *string
	Genre      *string
}

// Store is the set of collection operations the API layer needs.
// Lookups return ErrNotFound when nothing matches.
type Store interface {
	CountBooks(ctx context.Context) (int, error)
	ListBooks(ctx context.Context, f BookFilter) ([]models.Book, error)
	BookByTitle(ctx context.Context, title string) (models.Book, error)
	BooksByAuthor(ctx context.Context, authorID string) ([]models.Book, error)
	CountBooksByAuthor(ctx context.Context, authorID string) (int, error)
	InsertBook(ctx context.Context, b *models.Book) error

	CountAuthors(ctx context.Context) (int, error)
	ListAuthors(ctx context.Context) ([]models.Author, error)
	AuthorByID(ctx context.Context, id string) (models.Author, error)
	AuthorByName(ctx context.Context, name string) (models.Author, error)
	InsertAuthor(ctx context.Context, a *models.Author) error
	UpdateAuthor(ctx context.Context, a models.Author) error

	InsertUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id string) (models.User, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)

	Close() error
}

// Open picks the backend from the URI scheme: mongodb:// and mongodb+srv://
// go to MongoDB, anything else is treated as a SQLite path.
func Open(ctx context.Context, uri, mongoDatabase string) (Store, error) {
	if IsMongoURI(uri) {
		return OpenMongo(ctx, uri, mongoDatabase)
	}
	return OpenSQLite(uri)
}

func IsMongoURI(uri string) bool {
	return strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")
}

// FindOrCreateAuthor returns the author with exactly this name, inserting a
// new one when none exists. The two steps are not atomic.
func FindOrCreateAuthor(ctx context.Context, s Store, name string) (models.Author, error) {
	a, err := s.AuthorByName(ctx, name)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return models.Author{}, err
	}
	a = models.Author{Name: name}
	if err := s.InsertAuthor(ctx, &a); err != nil {
		return models.Author{}, err
	}
	return a, nil
}
