package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedJSON = `{
	"authors": [
		{"name": "Robert Martin", "born": 1952},
		{"name": "Joshua Kerievsky"}
	],
	"books": [
		{"title": "Clean Code", "published": 2008, "author": "Robert Martin", "genres": ["refactoring"]},
		{"title": "Agile software development", "published": 2002, "author": "Robert Martin", "genres": ["agile", " patterns "]},
		{"title": "Demons", "published": 1872, "author": "Fyodor Dostoevsky", "genres": ["classic", "revolution"]}
	]
}`

func TestSeedFromJSON(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "books.json")
	require.NoError(t, os.WriteFile(path, []byte(seedJSON), 0o644))

	data, err := LoadSeedFromJSON(path)
	require.NoError(t, err)
	require.Len(t, data.Books, 3)

	s := tempStore(t)
	n, err := Seed(ctx, s, data)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	authors, err := s.CountAuthors(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, authors)

	martin, err := s.AuthorByName(ctx, "Robert Martin")
	require.NoError(t, err)
	require.NotNil(t, martin.Born)
	assert.Equal(t, 1952, *martin.Born)

	agile, err := s.BookByTitle(ctx, "Agile software development")
	require.NoError(t, err)
	assert.Equal(t, []string{"agile", "patterns"}, agile.Genres)

	// second run is a no-op
	n, err = Seed(ctx, s, data)
	require.NoError(t, err)
	assert.Zero(t, n)
	books, err := s.CountBooks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, books)
}

func TestLoadSeedMissingFile(t *testing.T) {
	_, err := LoadSeedFromJSON(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
