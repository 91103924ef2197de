// Package graph implements the catalog GraphQL schema on top of a store.
package graph

import (
	"context"
	"errors"
	"time"

	graphql "github.com/graph-gophers/graphql-go"
	"go.uber.org/zap"

	"bookgraph/internal/auth"
	"bookgraph/internal/events"
	"bookgraph/internal/store"
)

const maxQueryDepth = 12

type Options struct {
	Store     store.Store
	Tokens    *auth.TokenService
	Passwords auth.PasswordChecker
	Events    events.Publisher
	Logger    *zap.Logger
}

// Resolver is the root resolver for both Query and Mutation. Every field of
// those types maps to one method.
type Resolver struct {
	store     store.Store
	tokens    *auth.TokenService
	passwords auth.PasswordChecker
	events    events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewResolver(o Options) *Resolver {
	r := &Resolver{
		store:     o.Store,
		tokens:    o.Tokens,
		passwords: o.Passwords,
		events:    o.Events,
		log:       o.Logger,
		now:       time.Now,
	}
	if r.events == nil {
		r.events = events.Nop{}
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	return r
}

// NewSchema binds the schema to r. It fails if a field has no matching method.
func NewSchema(r *Resolver) (*graphql.Schema, error) {
	return graphql.ParseSchema(Schema, r, graphql.MaxDepth(maxQueryDepth))
}

func (r *Resolver) BooksCount(ctx context.Context) (int32, error) {
	n, err := r.store.CountBooks(ctx)
	if err != nil {
		return 0, r.internal("booksCount", err)
	}
	return int32(n), nil
}

func (r *Resolver) AuthorsCount(ctx context.Context) (int32, error) {
	n, err := r.store.CountAuthors(ctx)
	if err != nil {
		return 0, r.internal("authorsCount", err)
	}
	return int32(n), nil
}

type allBooksArgs struct {
	Author *string
	Genre  *string
}

func (r *Resolver) AllBooks(ctx context.Context, args allBooksArgs) ([]*bookResolver, error) {
	books, err := r.store.ListBooks(ctx, store.BookFilter{AuthorName: args.Author, Genre: args.Genre})
	if err != nil {
		return nil, r.internal("allBooks", err)
	}
	out := make([]*bookResolver, len(books))
	for i, b := range books {
		out[i] = &bookResolver{r: r, b: b}
	}
	return out, nil
}

func (r *Resolver) AllAuthors(ctx context.Context) ([]*authorResolver, error) {
	authors, err := r.store.ListAuthors(ctx)
	if err != nil {
		return nil, r.internal("allAuthors", err)
	}
	out := make([]*authorResolver, len(authors))
	for i, a := range authors {
		out[i] = &authorResolver{r: r, a: a}
	}
	return out, nil
}

func (r *Resolver) FindBook(ctx context.Context, args struct{ Title string }) (*bookResolver, error) {
	b, err := r.store.BookByTitle(ctx, args.Title)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, r.internal("findBook", err)
	}
	return &bookResolver{r: r, b: b}, nil
}

func (r *Resolver) FindAuthor(ctx context.Context, args struct{ Name string }) (*authorResolver, error) {
	a, err := r.store.AuthorByName(ctx, args.Name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, r.internal("findAuthor", err)
	}
	return &authorResolver{r: r, a: a}, nil
}

func (r *Resolver) Me(ctx context.Context) *userResolver {
	u := auth.SessionFrom(ctx).CurrentUser()
	if u == nil {
		return nil
	}
	return &userResolver{u: *u}
}

func (r *Resolver) internal(field string, err error) error {
	r.log.Error("resolver failed", zap.String("field", field), zap.Error(err))
	return errInternal
}
