package graph

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	graphql "github.com/graph-gophers/graphql-go"
	gqlerrors "github.com/graph-gophers/graphql-go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookgraph/internal/auth"
	"bookgraph/internal/store"
	"bookgraph/pkg/models"
)

type recordingPublisher struct {
	events []models.BookAdded
}

func (p *recordingPublisher) Publish(_ context.Context, evt models.BookAdded) error {
	p.events = append(p.events, evt)
	return nil
}

type fixture struct {
	store  store.Store
	schema *graphql.Schema
	tokens *auth.TokenService
	pub    *recordingPublisher
	alice  models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return newFixtureWithStore(t, s)
}

func newFixtureWithStore(t *testing.T, s store.Store) *fixture {
	t.Helper()
	tokens, err := auth.NewTokenService([]byte("test-secret"), 0)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	schema, err := NewSchema(NewResolver(Options{
		Store:     s,
		Tokens:    tokens,
		Passwords: auth.PasswordChecker{Shared: "secret"},
		Events:    pub,
	}))
	require.NoError(t, err)

	alice := models.User{Username: "alice", FavoriteGenre: "crime"}
	require.NoError(t, s.InsertUser(context.Background(), &alice))

	return &fixture{store: s, schema: schema, tokens: tokens, pub: pub, alice: alice}
}

func (f *fixture) authed() auth.Session {
	return auth.Session{State: auth.Authenticated, User: f.alice}
}

var anonymous = auth.Session{State: auth.Anonymous}

// exec runs query as sess. Variables go through JSON so they look like
// what the HTTP handler decodes.
func (f *fixture) exec(t *testing.T, sess auth.Session, query string, vars map[string]interface{}, out interface{}) []*gqlerrors.QueryError {
	t.Helper()
	var decoded map[string]interface{}
	if vars != nil {
		b, err := json.Marshal(vars)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(b, &decoded))
	}
	ctx := auth.WithSession(context.Background(), sess)
	resp := f.schema.Exec(ctx, query, "", decoded)
	if out != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
	return resp.Errors
}

func errCode(t *testing.T, errs []*gqlerrors.QueryError) string {
	t.Helper()
	require.Len(t, errs, 1)
	code, _ := errs[0].Extensions["code"].(string)
	return code
}

const addBookMutation = `
mutation ($title: String!, $published: Int, $author: String!, $genres: [String!]!) {
	addBook(title: $title, published: $published, author: $author, genres: $genres) {
		id title published genres
		author { id name }
	}
}`

type bookOut struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Published *int     `json:"published"`
	Genres    []string `json:"genres"`
	Author    *struct {
		ID   *string `json:"id"`
		Name string  `json:"name"`
		Born *int    `json:"born"`
	} `json:"author"`
}

func (f *fixture) addBook(t *testing.T, title, author string, genres ...string) bookOut {
	t.Helper()
	if genres == nil {
		genres = []string{}
	}
	var out struct {
		AddBook *bookOut `json:"addBook"`
	}
	errs := f.exec(t, f.authed(), addBookMutation, map[string]interface{}{
		"title": title, "published": 2008, "author": author, "genres": genres,
	}, &out)
	require.Empty(t, errs)
	require.NotNil(t, out.AddBook)
	return *out.AddBook
}

func TestSchemaBinds(t *testing.T) {
	_, err := NewSchema(NewResolver(Options{}))
	require.NoError(t, err)
}

func TestAddBookCreatesAndReusesAuthor(t *testing.T) {
	f := newFixture(t)

	first := f.addBook(t, "Crime and punishment", "Fyodor Dostoevsky", "classic", "crime")
	second := f.addBook(t, "Demons", "Fyodor Dostoevsky", "classic")

	require.NotNil(t, first.Author.ID)
	assert.Equal(t, *first.Author.ID, *second.Author.ID)
	assert.Equal(t, "Fyodor Dostoevsky", second.Author.Name)

	var counts struct {
		BooksCount   int `json:"booksCount"`
		AuthorsCount int `json:"authorsCount"`
	}
	require.Empty(t, f.exec(t, anonymous, `{ booksCount authorsCount }`, nil, &counts))
	assert.Equal(t, 2, counts.BooksCount)
	assert.Equal(t, 1, counts.AuthorsCount)

	var found struct {
		FindBook bookOut `json:"findBook"`
	}
	require.Empty(t, f.exec(t, anonymous, `{ findBook(title: "Demons") { title author { id name } } }`, nil, &found))
	assert.Equal(t, *first.Author.ID, *found.FindBook.Author.ID)
}

func TestAddBookTrimsGenres(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "Dune", "Frank Herbert", "  sci-fi ", "drama")

	var out struct {
		AllBooks []bookOut `json:"allBooks"`
	}
	require.Empty(t, f.exec(t, anonymous, `{ allBooks { title genres } }`, nil, &out))
	require.Len(t, out.AllBooks, 1)
	assert.Equal(t, []string{"sci-fi", "drama"}, out.AllBooks[0].Genres)
}

func TestAddBookPublishesEvent(t *testing.T) {
	f := newFixture(t)
	b := f.addBook(t, "Refactoring, edition 2", "Martin Fowler", "refactoring")

	require.Len(t, f.pub.events, 1)
	evt := f.pub.events[0]
	assert.Equal(t, b.ID, evt.BookID)
	assert.Equal(t, "Martin Fowler", evt.Author)
	assert.Equal(t, []string{"refactoring"}, evt.Genres)
}

func TestAddBookValidation(t *testing.T) {
	f := newFixture(t)

	var out struct {
		AddBook *bookOut `json:"addBook"`
	}
	errs := f.exec(t, f.authed(), addBookMutation, map[string]interface{}{
		"title": "Hi", "author": "Robert Martin", "genres": []string{},
	}, &out)
	assert.Equal(t, codeBadUserInput, errCode(t, errs))
	assert.Equal(t, "error creating book", errs[0].Message)
	assert.Nil(t, out.AddBook)

	errs = f.exec(t, f.authed(), addBookMutation, map[string]interface{}{
		"title": "Clean Code", "author": "RM", "genres": []string{},
	}, nil)
	assert.Equal(t, codeBadUserInput, errCode(t, errs))
	assert.Empty(t, f.pub.events)

	n, err := f.store.CountAuthors(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "rejected books must not create their author")
}

func TestMutationsRequireAuthentication(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "Clean Code", "Robert Martin")

	invalid := auth.Session{State: auth.Invalid, Err: auth.ErrInvalidToken}
	for _, sess := range []auth.Session{anonymous, invalid} {
		errs := f.exec(t, sess, addBookMutation, map[string]interface{}{
			"title": "Clean Architecture", "author": "Robert Martin", "genres": []string{"design"},
		}, nil)
		assert.Equal(t, codeUnauthenticated, errCode(t, errs))

		errs = f.exec(t, sess, `mutation { editAuthor(name: "Robert Martin", setBornTo: 1952) { born } }`, nil, nil)
		assert.Equal(t, codeUnauthenticated, errCode(t, errs))
	}

	var counts struct {
		BooksCount int `json:"booksCount"`
	}
	require.Empty(t, f.exec(t, anonymous, `{ booksCount }`, nil, &counts))
	assert.Equal(t, 1, counts.BooksCount)

	var a struct {
		FindAuthor struct {
			Born *int `json:"born"`
		} `json:"findAuthor"`
	}
	require.Empty(t, f.exec(t, anonymous, `{ findAuthor(name: "Robert Martin") { born } }`, nil, &a))
	assert.Nil(t, a.FindAuthor.Born)
}

func TestEditAuthor(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "Clean Code", "Robert Martin")

	var out struct {
		EditAuthor *struct {
			Name string `json:"name"`
			Born *int   `json:"born"`
		} `json:"editAuthor"`
	}
	require.Empty(t, f.exec(t, f.authed(), `mutation { editAuthor(name: "Robert Martin", setBornTo: 1952) { name born } }`, nil, &out))
	require.NotNil(t, out.EditAuthor)
	require.NotNil(t, out.EditAuthor.Born)
	assert.Equal(t, 1952, *out.EditAuthor.Born)

	a, err := f.store.AuthorByName(context.Background(), "Robert Martin")
	require.NoError(t, err)
	assert.Equal(t, 1952, *a.Born)
}

func TestEditMissingAuthorIsNullForEveryone(t *testing.T) {
	f := newFixture(t)

	for _, sess := range []auth.Session{anonymous, f.authed()} {
		var out struct {
			EditAuthor *struct {
				Name string `json:"name"`
			} `json:"editAuthor"`
		}
		errs := f.exec(t, sess, `mutation { editAuthor(name: "Nobody Known", setBornTo: 1900) { name } }`, nil, &out)
		assert.Empty(t, errs)
		assert.Nil(t, out.EditAuthor)
	}

	n, err := f.store.CountAuthors(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBookCountMatchesBooks(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "Clean Code", "Robert Martin", "refactoring")
	f.addBook(t, "Agile software development", "Robert Martin", "agile", "patterns")
	f.addBook(t, "Refactoring to patterns", "Joshua Kerievsky", "refactoring", "patterns")

	var out struct {
		AllAuthors []struct {
			Name      string `json:"name"`
			BookCount int    `json:"bookCount"`
			Books     []struct {
				Title string `json:"title"`
			} `json:"books"`
		} `json:"allAuthors"`
	}
	require.Empty(t, f.exec(t, anonymous, `{ allAuthors { name bookCount books { title } } }`, nil, &out))
	require.Len(t, out.AllAuthors, 2)

	counts := map[string]int{}
	for _, a := range out.AllAuthors {
		assert.Equal(t, a.BookCount, len(a.Books))
		counts[a.Name] = a.BookCount
	}
	assert.Equal(t, map[string]int{"Robert Martin": 2, "Joshua Kerievsky": 1}, counts)
}

func TestAllBooksFilters(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "Clean Code", "Robert Martin", "refactoring")
	f.addBook(t, "Agile software development", "Robert Martin", "agile", "patterns")
	f.addBook(t, "Refactoring to patterns", "Joshua Kerievsky", "refactoring", "patterns")

	titles := func(query string) []string {
		var out struct {
			AllBooks []bookOut `json:"allBooks"`
		}
		require.Empty(t, f.exec(t, anonymous, query, nil, &out))
		res := make([]string, 0, len(out.AllBooks))
		for _, b := range out.AllBooks {
			res = append(res, b.Title)
		}
		return res
	}

	assert.Len(t, titles(`{ allBooks { title } }`), 3)
	assert.ElementsMatch(t, []string{"Clean Code", "Agile software development"},
		titles(`{ allBooks(author: "Robert Martin") { title } }`))
	assert.ElementsMatch(t, []string{"Agile software development", "Refactoring to patterns"},
		titles(`{ allBooks(genre: "patterns") { title } }`))
	assert.Equal(t, []string{"Refactoring to patterns"},
		titles(`{ allBooks(author: "Joshua Kerievsky", genre: "refactoring") { title } }`))
	assert.Empty(t, titles(`{ allBooks(author: "Martin") { title } }`))
}

func TestAllBooksEmptyFilterIsStillAFilter(t *testing.T) {
	f := newFixture(t)
	f.addBook(t, "Clean Code", "Robert Martin", "refactoring")
	f.addBook(t, "Clean Coder", "Robert Martin", "   ")

	titles := func(query string, vars map[string]interface{}) []string {
		var out struct {
			AllBooks []bookOut `json:"allBooks"`
		}
		require.Empty(t, f.exec(t, anonymous, query, vars, &out))
		res := make([]string, 0, len(out.AllBooks))
		for _, b := range out.AllBooks {
			res = append(res, b.Title)
		}
		return res
	}

	assert.Empty(t, titles(`{ allBooks(author: "") { title } }`, nil))
	assert.Equal(t, []string{"Clean Coder"}, titles(`{ allBooks(genre: "") { title } }`, nil))

	// an explicit null is the same as leaving the argument out
	q := `query ($a: String, $g: String) { allBooks(author: $a, genre: $g) { title } }`
	assert.Len(t, titles(q, map[string]interface{}{"a": nil, "g": nil}), 2)
	assert.Empty(t, titles(q, map[string]interface{}{"a": "", "g": nil}))
}

func TestFindMissingIsNull(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		var out struct {
			FindBook   *bookOut `json:"findBook"`
			FindAuthor *struct {
				Name string `json:"name"`
			} `json:"findAuthor"`
		}
		errs := f.exec(t, anonymous, `{ findBook(title: "Nope") { title } findAuthor(name: "Nobody") { name } }`, nil, &out)
		assert.Empty(t, errs)
		assert.Nil(t, out.FindBook)
		assert.Nil(t, out.FindAuthor)
	}
}

type danglingAuthors struct {
	store.Store
}

func (danglingAuthors) AuthorByID(context.Context, string) (models.Author, error) {
	return models.Author{}, store.ErrNotFound
}

func TestBookWithMissingAuthorGetsPlaceholder(t *testing.T) {
	s, err := store.OpenSQLite(filepath.Join(t.TempDir(), "graph.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	a, err := store.FindOrCreateAuthor(context.Background(), s, "Sandi Metz")
	require.NoError(t, err)
	require.NoError(t, s.InsertBook(context.Background(), &models.Book{Title: "POODR", AuthorID: a.ID}))

	f := newFixtureWithStore(t, danglingAuthors{Store: s})
	var out struct {
		AllBooks []bookOut `json:"allBooks"`
	}
	require.Empty(t, f.exec(t, anonymous, `{ allBooks { title author { id name born } } }`, nil, &out))
	require.Len(t, out.AllBooks, 1)
	au := out.AllBooks[0].Author
	require.NotNil(t, au)
	assert.Nil(t, au.ID)
	assert.Equal(t, "Unknown", au.Name)
	assert.Nil(t, au.Born)
}

func TestCreateUser(t *testing.T) {
	f := newFixture(t)

	var out struct {
		CreateUser *struct {
			ID            string `json:"id"`
			Username      string `json:"username"`
			FavoriteGenre string `json:"favoriteGenre"`
		} `json:"createUser"`
	}
	require.Empty(t, f.exec(t, anonymous, `mutation { createUser(username: "bob", favoriteGenre: "drama") { id username favoriteGenre } }`, nil, &out))
	require.NotNil(t, out.CreateUser)
	assert.NotEmpty(t, out.CreateUser.ID)
	assert.Equal(t, "drama", out.CreateUser.FavoriteGenre)

	errs := f.exec(t, anonymous, `mutation { createUser(username: "bob", favoriteGenre: "crime") { id } }`, nil, nil)
	assert.Equal(t, codeBadUserInput, errCode(t, errs))
	assert.Equal(t, "error creating user", errs[0].Message)

	errs = f.exec(t, anonymous, `mutation { createUser(username: "bo", favoriteGenre: "crime") { id } }`, nil, nil)
	assert.Equal(t, codeBadUserInput, errCode(t, errs))
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	var out struct {
		Login *struct {
			Value string `json:"value"`
		} `json:"login"`
	}
	require.Empty(t, f.exec(t, anonymous, `mutation { login(username: "alice", password: "secret") { value } }`, nil, &out))
	require.NotNil(t, out.Login)
	require.NotEmpty(t, out.Login.Value)

	claims, err := f.tokens.Parse(out.Login.Value)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)

	wrong := f.exec(t, anonymous, `mutation { login(username: "alice", password: "wrong") { value } }`, nil, nil)
	nobody := f.exec(t, anonymous, `mutation { login(username: "nobody", password: "secret") { value } }`, nil, nil)
	assert.Equal(t, codeBadUserInput, errCode(t, wrong))
	assert.Equal(t, errCode(t, wrong), errCode(t, nobody))
	assert.Equal(t, wrong[0].Message, nobody[0].Message)
}

func TestLoginWithOwnPassword(t *testing.T) {
	f := newFixture(t)
	require.Empty(t, f.exec(t, anonymous,
		`mutation { createUser(username: "carol", favoriteGenre: "poetry", password: "hunter22") { id } }`, nil, nil))

	var out struct {
		Login *struct {
			Value string `json:"value"`
		} `json:"login"`
	}
	require.Empty(t, f.exec(t, anonymous, `mutation { login(username: "carol", password: "hunter22") { value } }`, nil, &out))
	assert.NotEmpty(t, out.Login.Value)

	errs := f.exec(t, anonymous, `mutation { login(username: "carol", password: "secret") { value } }`, nil, nil)
	assert.Equal(t, codeBadUserInput, errCode(t, errs))
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	var out struct {
		Me *struct {
			Username string `json:"username"`
		} `json:"me"`
	}
	require.Empty(t, f.exec(t, anonymous, `{ me { username } }`, nil, &out))
	assert.Nil(t, out.Me)

	require.Empty(t, f.exec(t, f.authed(), `{ me { username } }`, nil, &out))
	require.NotNil(t, out.Me)
	assert.Equal(t, "alice", out.Me.Username)
}
