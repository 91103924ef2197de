package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"bookgraph/internal/author"
	"bookgraph/internal/book"
	"bookgraph/internal/user"
	"bookgraph/pkg/database"
	"bookgraph/pkg/models"
)

// SQLite implements Store on an embedded SQLite file. Ids are random UUIDs.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) CountBooks(ctx context.Context) (int, error) {
	return book.Count(ctx, s.db)
}

func (s *SQLite) ListBooks(ctx context.Context, f BookFilter) ([]models.Book, error) {
	return book.Search(ctx, s.db, f.AuthorName, f.Genre)
}

func (s *SQLite) BookByTitle(ctx context.Context, title string) (models.Book, error) {
	b, err := book.GetByTitle(ctx, s.db, title)
	return b, notFound(err)
}

func (s *SQLite) BooksByAuthor(ctx context.Context, authorID string) ([]models.Book, error) {
	return book.ListByAuthor(ctx, s.db, authorID)
}

func (s *SQLite) CountBooksByAuthor(ctx context.Context, authorID string) (int, error) {
	return book.CountByAuthor(ctx, s.db, authorID)
}

func (s *SQLite) InsertBook(ctx context.Context, b *models.Book) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if _, err := author.GetByID(ctx, s.db, b.AuthorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: author %s does not exist", models.ErrInvalid, b.AuthorID)
		}
		return err
	}
	rec := *b
	rec.ID = uuid.NewString()
	if err := book.Insert(ctx, s.db, rec); err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	*b = rec
	return nil
}

func (s *SQLite) CountAuthors(ctx context.Context) (int, error) {
	return author.Count(ctx, s.db)
}

func (s *SQLite) ListAuthors(ctx context.Context) ([]models.Author, error) {
	return author.List(ctx, s.db)
}

func (s *SQLite) AuthorByID(ctx context.Context, id string) (models.Author, error) {
	a, err := author.GetByID(ctx, s.db, id)
	return a, notFound(err)
}

func (s *SQLite) AuthorByName(ctx context.Context, name string) (models.Author, error) {
	a, err := author.GetByName(ctx, s.db, name)
	return a, notFound(err)
}

func (s *SQLite) InsertAuthor(ctx context.Context, a *models.Author) error {
	if err := a.Validate(); err != nil {
		return err
	}
	rec := *a
	rec.ID = uuid.NewString()
	if err := author.Insert(ctx, s.db, rec); err != nil {
		return fmt.Errorf("insert author: %w", err)
	}
	*a = rec
	return nil
}

func (s *SQLite) UpdateAuthor(ctx context.Context, a models.Author) error {
	if err := a.Validate(); err != nil {
		return err
	}
	return notFound(author.Update(ctx, s.db, a))
}

func (s *SQLite) InsertUser(ctx context.Context, u *models.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	rec := *u
	rec.ID = uuid.NewString()
	if err := user.Create(ctx, s.db, rec); err != nil {
		var sqErr sqlite3.Error
		if errors.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("%w: username %q taken", ErrDuplicate, u.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	*u = rec
	return nil
}

func (s *SQLite) UserByID(ctx context.Context, id string) (models.User, error) {
	u, err := user.GetByID(ctx, s.db, id)
	return u, notFound(err)
}

func (s *SQLite) UserByUsername(ctx context.Context, username string) (models.User, error) {
	u, err := user.GetByUsername(ctx, s.db, username)
	return u, notFound(err)
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
