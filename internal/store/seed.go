package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"bookgraph/pkg/models"
)

// SeedData is the JSON layout accepted by Seed.
type SeedData struct {
	Authors []SeedAuthor `json:"authors"`
	Books   []SeedBook   `json:"books"`
}

type SeedAuthor struct {
	Name string `json:"name"`
	Born *int   `json:"born,omitempty"`
}

type SeedBook struct {
	Title     string   `json:"title"`
	Published *int     `json:"published,omitempty"`
	Author    string   `json:"author"`
	Genres    []string `json:"genres"`
}

func LoadSeedFromJSON(jsonPath string) (SeedData, error) {
	b, err := os.ReadFile(jsonPath)
	if err != nil {
		return SeedData{}, fmt.Errorf("read seed json: %w", err)
	}
	var data SeedData
	if err := json.Unmarshal(b, &data); err != nil {
		return SeedData{}, fmt.Errorf("unmarshal seed json: %w", err)
	}
	return data, nil
}

// Seed writes data through s. Authors are matched by name and get their
// born year set when the seed has one; books whose title already exists are
// skipped. It returns the number of books inserted.
func Seed(ctx context.Context, s Store, data SeedData) (int, error) {
	for _, sa := range data.Authors {
		a, err := FindOrCreateAuthor(ctx, s, sa.Name)
		if err != nil {
			return 0, fmt.Errorf("seed author %q: %w", sa.Name, err)
		}
		if sa.Born != nil && (a.Born == nil || *a.Born != *sa.Born) {
			a.Born = sa.Born
			if err := s.UpdateAuthor(ctx, a); err != nil {
				return 0, fmt.Errorf("seed author %q: %w", sa.Name, err)
			}
		}
	}

	inserted := 0
	for _, sb := range data.Books {
		_, err := s.BookByTitle(ctx, sb.Title)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return inserted, fmt.Errorf("seed book %q: %w", sb.Title, err)
		}

		a, err := FindOrCreateAuthor(ctx, s, sb.Author)
		if err != nil {
			return inserted, fmt.Errorf("seed book %q: %w", sb.Title, err)
		}
		b := models.Book{
			Title:     sb.Title,
			Published: sb.Published,
			Genres:    models.TrimGenres(sb.Genres),
			AuthorID:  a.ID,
		}
		if err := s.InsertBook(ctx, &b); err != nil {
			return inserted, fmt.Errorf("seed book %q: %w", sb.Title, err)
		}
		inserted++
	}
	return inserted, nil
}
