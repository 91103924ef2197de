package book

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"bookgraph/pkg/models"
)

const selectCols = `SELECT b.id, b.title, b.published, b.genres, b.author_id FROM books b`

type scanner interface {
	Scan(dest ...any) error
}

func Count(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n)
	return n, err
}

// Search lists books filtered by exact author name and genre membership.
// Nil arguments do not filter.
func Search(ctx context.Context, db *sql.DB, authorName, genre *string) ([]models.Book, error) {
	q := selectCols
	args := []any{}

	if authorName != nil {
		q += " JOIN authors a ON a.id = b.author_id AND a.name = ?"
		args = append(args, *authorName)
	}
	q += " WHERE 1=1"
	if genre != nil {
		q += " AND EXISTS (SELECT 1 FROM json_each(b.genres) WHERE json_each.value = ?)"
		args = append(args, *genre)
	}
	q += " ORDER BY b.rowid"

	return list(ctx, db, q, args...)
}

func GetByTitle(ctx context.Context, db *sql.DB, title string) (models.Book, error) {
	row := db.QueryRowContext(ctx, selectCols+` WHERE b.title = ? ORDER BY b.rowid LIMIT 1`, title)
	return scan(row)
}

func ListByAuthor(ctx context.Context, db *sql.DB, authorID string) ([]models.Book, error) {
	return list(ctx, db, selectCols+` WHERE b.author_id = ? ORDER BY b.rowid`, authorID)
}

func CountByAuthor(ctx context.Context, db *sql.DB, authorID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books WHERE author_id = ?`, authorID).Scan(&n)
	return n, err
}

func Insert(ctx context.Context, db *sql.DB, b models.Book) error {
	genres := b.Genres
	if genres == nil {
		genres = []string{}
	}
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("marshal genres for %s: %w", b.Title, err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO books(id, title, published, genres, author_id) VALUES(?,?,?,?,?)`,
		b.ID, b.Title, b.Published, string(genresJSON), b.AuthorID)
	return err
}

func list(ctx context.Context, db *sql.DB, q string, args ...any) ([]models.Book, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := []models.Book{}
	for rows.Next() {
		b, err := scan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

func scan(s scanner) (models.Book, error) {
	var (
		b         models.Book
		published sql.NullInt64
		genres    string
	)
	if err := s.Scan(&b.ID, &b.Title, &published, &genres, &b.AuthorID); err != nil {
		return models.Book{}, err
	}
	if published.Valid {
		p := int(published.Int64)
		b.Published = &p
	}
	if err := json.Unmarshal([]byte(genres), &b.Genres); err != nil {
		return models.Book{}, fmt.Errorf("decode genres of %s: %w", b.ID, err)
	}
	if b.Genres == nil {
		b.Genres = []string{}
	}
	return b, nil
}
