package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bookgraph/internal/store"
	"bookgraph/pkg/models"
)

var ErrUnauthenticated = errors.New("not authenticated")

// State is the outcome of deriving a caller from a request.
type State int

const (
	Anonymous State = iota
	Authenticated
	Invalid
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Invalid:
		return "invalid"
	default:
		return "anonymous"
	}
}

// Session is the per-request caller. User is set only when Authenticated,
// Err only when Invalid.
type Session struct {
	State State
	User  models.User
	Err   error
}

// CurrentUser returns the authenticated user or nil.
func (s Session) CurrentUser() *models.User {
	if s.State != Authenticated {
		return nil
	}
	u := s.User
	return &u
}

// RequireUser is the gate for mutations.
func (s Session) RequireUser() (models.User, error) {
	switch s.State {
	case Authenticated:
		return s.User, nil
	case Invalid:
		return models.User{}, fmt.Errorf("%w: %v", ErrUnauthenticated, s.Err)
	default:
		return models.User{}, ErrUnauthenticated
	}
}

type sessionKey struct{}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the request's session, Anonymous when none was set.
func SessionFrom(ctx context.Context) Session {
	if s, ok := ctx.Value(sessionKey{}).(Session); ok {
		return s
	}
	return Session{State: Anonymous}
}

type UserLookup interface {
	UserByID(ctx context.Context, id string) (models.User, error)
}

// Authenticator derives sessions from Authorization headers.
type Authenticator struct {
	tokens *TokenService
	users  UserLookup
	log    *zap.Logger
}

func NewAuthenticator(tokens *TokenService, users UserLookup, log *zap.Logger) *Authenticator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{tokens: tokens, users: users, log: log}
}

// Derive maps a header value to a session. Headers without the Bearer
// scheme are ignored. The error is reserved for lookup failures.
func (a *Authenticator) Derive(ctx context.Context, header string) (Session, error) {
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return Session{State: Anonymous}, nil
	}
	claims, err := a.tokens.Parse(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return Session{State: Invalid, Err: err}, nil
	}
	u, err := a.users.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			a.log.Warn("token for unknown user", zap.String("user_id", claims.UserID))
			return Session{State: Anonymous}, nil
		}
		return Session{}, fmt.Errorf("load user %s: %w", claims.UserID, err)
	}
	return Session{State: Authenticated, User: u}, nil
}
