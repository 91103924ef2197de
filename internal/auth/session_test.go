package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookgraph/internal/store"
	"bookgraph/pkg/models"
)

type fakeUsers map[string]models.User

func (f fakeUsers) UserByID(_ context.Context, id string) (models.User, error) {
	if id == "boom" {
		return models.User{}, errors.New("disk on fire")
	}
	u, ok := f[id]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func newAuthenticator(t *testing.T) (*Authenticator, *TokenService) {
	t.Helper()
	tokens := newTokens(t, "topsecret", 0)
	users := fakeUsers{"u1": {ID: "u1", Username: "alice", FavoriteGenre: "crime"}}
	return NewAuthenticator(tokens, users, nil), tokens
}

func TestDeriveStates(t *testing.T) {
	ctx := context.Background()
	a, tokens := newAuthenticator(t)

	s, err := a.Derive(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, Anonymous, s.State)

	s, err = a.Derive(ctx, "Basic YWxpY2U6c2VjcmV0")
	require.NoError(t, err)
	assert.Equal(t, Anonymous, s.State)

	s, err = a.Derive(ctx, "Bearer junk")
	require.NoError(t, err)
	assert.Equal(t, Invalid, s.State)
	assert.ErrorIs(t, s.Err, ErrInvalidToken)

	tok, err := tokens.Sign("u1", "alice")
	require.NoError(t, err)
	s, err = a.Derive(ctx, "Bearer "+tok)
	require.NoError(t, err)
	require.Equal(t, Authenticated, s.State)
	assert.Equal(t, "alice", s.CurrentUser().Username)

	gone, err := tokens.Sign("u2", "bob")
	require.NoError(t, err)
	s, err = a.Derive(ctx, "Bearer "+gone)
	require.NoError(t, err)
	assert.Equal(t, Anonymous, s.State)

	broken, err := tokens.Sign("boom", "carol")
	require.NoError(t, err)
	_, err = a.Derive(ctx, "Bearer "+broken)
	assert.Error(t, err)
}

func TestRequireUser(t *testing.T) {
	_, err := Session{State: Anonymous}.RequireUser()
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = Session{State: Invalid, Err: ErrInvalidToken}.RequireUser()
	assert.ErrorIs(t, err, ErrUnauthenticated)

	u, err := Session{State: Authenticated, User: models.User{ID: "u1"}}.RequireUser()
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	assert.Nil(t, Session{State: Anonymous}.CurrentUser())
	assert.Equal(t, Anonymous, SessionFrom(context.Background()).State)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a, tokens := newAuthenticator(t)

	r := gin.New()
	r.Use(a.Middleware())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, SessionFrom(c.Request.Context()).State.String())
	})

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	tok, err := tokens.Sign("u1", "alice")
	require.NoError(t, err)
	w = do("Bearer " + tok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "authenticated", w.Body.String())

	w = do("Bearer " + tok + "x")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHENTICATED")

	broken, err := tokens.Sign("boom", "carol")
	require.NoError(t, err)
	w = do("Bearer " + broken)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
