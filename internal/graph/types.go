package graph

import (
	"context"
	"errors"

	graphql "github.com/graph-gophers/graphql-go"

	"bookgraph/internal/store"
	"bookgraph/pkg/models"
)

const unknownAuthor = "Unknown"

type bookResolver struct {
	r *Resolver
	b models.Book
}

func (b *bookResolver) ID() graphql.ID    { return graphql.ID(b.b.ID) }
func (b *bookResolver) Title() string     { return b.b.Title }
func (b *bookResolver) Published() *int32 { return int32From(b.b.Published) }

func (b *bookResolver) Genres() []string {
	if b.b.Genres == nil {
		return []string{}
	}
	return b.b.Genres
}

// Author falls back to a placeholder when the referenced record is missing.
func (b *bookResolver) Author(ctx context.Context) (*authorResolver, error) {
	a, err := b.r.store.AuthorByID(ctx, b.b.AuthorID)
	if errors.Is(err, store.ErrNotFound) {
		return &authorResolver{r: b.r, a: models.Author{Name: unknownAuthor}, placeholder: true}, nil
	}
	if err != nil {
		return nil, b.r.internal("Book.author", err)
	}
	return &authorResolver{r: b.r, a: a}, nil
}

type authorResolver struct {
	r           *Resolver
	a           models.Author
	placeholder bool
}

func (a *authorResolver) ID() *graphql.ID {
	if a.placeholder {
		return nil
	}
	id := graphql.ID(a.a.ID)
	return &id
}

func (a *authorResolver) Name() string {
	if a.a.Name == "" {
		return unknownAuthor
	}
	return a.a.Name
}

func (a *authorResolver) Born() *int32 { return int32From(a.a.Born) }

func (a *authorResolver) BookCount(ctx context.Context) (int32, error) {
	if a.placeholder {
		return 0, nil
	}
	n, err := a.r.store.CountBooksByAuthor(ctx, a.a.ID)
	if err != nil {
		return 0, a.r.internal("Author.bookCount", err)
	}
	return int32(n), nil
}

func (a *authorResolver) Books(ctx context.Context) ([]*bookResolver, error) {
	if a.placeholder {
		return []*bookResolver{}, nil
	}
	books, err := a.r.store.BooksByAuthor(ctx, a.a.ID)
	if err != nil {
		return nil, a.r.internal("Author.books", err)
	}
	out := make([]*bookResolver, len(books))
	for i, b := range books {
		out[i] = &bookResolver{r: a.r, b: b}
	}
	return out, nil
}

type userResolver struct {
	u models.User
}

func (u *userResolver) ID() graphql.ID        { return graphql.ID(u.u.ID) }
func (u *userResolver) Username() string      { return u.u.Username }
func (u *userResolver) FavoriteGenre() string { return u.u.FavoriteGenre }

type tokenResolver struct {
	value string
}

func (t *tokenResolver) Value() string { return t.value }

func int32From(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}
