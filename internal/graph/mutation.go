package graph

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"bookgraph/internal/auth"
	"bookgraph/internal/store"
	"bookgraph/pkg/models"
)

type addBookArgs struct {
	Title     string
	Published *int32
	Author    string
	Genres    []string
}

func (r *Resolver) AddBook(ctx context.Context, args addBookArgs) (*bookResolver, error) {
	caller, err := auth.SessionFrom(ctx).RequireUser()
	if err != nil {
		return nil, errNotAuthenticated
	}

	b := models.Book{
		Title:     args.Title,
		Published: intFrom32(args.Published),
		Genres:    models.TrimGenres(args.Genres),
	}
	// a rejected book must not leave a new author behind
	if err := b.ValidateDetails(); err != nil {
		return nil, r.writeFailed("addBook", err, "error creating book")
	}

	a, err := store.FindOrCreateAuthor(ctx, r.store, args.Author)
	if err != nil {
		return nil, r.writeFailed("addBook", err, "error creating book")
	}

	b.AuthorID = a.ID
	if err := r.store.InsertBook(ctx, &b); err != nil {
		return nil, r.writeFailed("addBook", err, "error creating book")
	}
	r.log.Info("book added",
		zap.String("book_id", b.ID),
		zap.String("author_id", a.ID),
		zap.String("by", caller.Username))

	evt := models.BookAdded{
		BookID:    b.ID,
		Title:     b.Title,
		Author:    a.Name,
		Genres:    b.Genres,
		Timestamp: r.now().Unix(),
	}
	if err := r.events.Publish(ctx, evt); err != nil {
		r.log.Warn("publish book added", zap.String("book_id", b.ID), zap.Error(err))
	}
	return &bookResolver{r: r, b: b}, nil
}

type editAuthorArgs struct {
	Name      string
	SetBornTo int32
}

// EditAuthor looks the author up before checking the caller, so a missing
// author yields null for anyone.
func (r *Resolver) EditAuthor(ctx context.Context, args editAuthorArgs) (*authorResolver, error) {
	a, err := r.store.AuthorByName(ctx, args.Name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, r.internal("editAuthor", err)
	}

	if _, err := auth.SessionFrom(ctx).RequireUser(); err != nil {
		return nil, errNotAuthenticated
	}

	born := int(args.SetBornTo)
	a.Born = &born
	if err := r.store.UpdateAuthor(ctx, a); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, r.writeFailed("editAuthor", err, "error editing author")
	}
	return &authorResolver{r: r, a: a}, nil
}

type createUserArgs struct {
	Username      string
	FavoriteGenre string
	Password      *string
}

func (r *Resolver) CreateUser(ctx context.Context, args createUserArgs) (*userResolver, error) {
	u := models.User{Username: args.Username, FavoriteGenre: args.FavoriteGenre}
	if args.Password != nil && *args.Password != "" {
		hash, err := auth.HashPassword(*args.Password)
		if err != nil {
			return nil, r.internal("createUser", err)
		}
		u.PasswordHash = hash
	}
	if err := r.store.InsertUser(ctx, &u); err != nil {
		return nil, r.writeFailed("createUser", err, "error creating user")
	}
	return &userResolver{u: u}, nil
}

type loginArgs struct {
	Username string
	Password string
}

// Login reports an unknown user and a wrong password the same way.
func (r *Resolver) Login(ctx context.Context, args loginArgs) (*tokenResolver, error) {
	u, err := r.store.UserByUsername(ctx, args.Username)
	if errors.Is(err, store.ErrNotFound) {
		r.passwords.VerifyUnknown(args.Password)
		return nil, errInvalidLogin
	}
	if err != nil {
		return nil, r.internal("login", err)
	}
	if !r.passwords.Verify(u, args.Password) {
		return nil, errInvalidLogin
	}

	tok, err := r.tokens.Sign(u.ID, u.Username)
	if err != nil {
		return nil, r.internal("login", err)
	}
	return &tokenResolver{value: tok}, nil
}

// writeFailed maps a store write error: input problems become msg with
// BAD_USER_INPUT, anything else is internal. Detail stays in the log.
func (r *Resolver) writeFailed(field string, err error, msg string) error {
	if isUserFault(err) {
		r.log.Info("rejected write", zap.String("field", field), zap.Error(err))
		return badInput(msg)
	}
	return r.internal(field, err)
}

func intFrom32(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
