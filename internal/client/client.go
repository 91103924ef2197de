// Package client talks to the catalog GraphQL endpoint the way the
// interactive front end does: the stored credential rides along on every
// request, list views are sorted locally, and writes refetch the lists they
// touch.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

var ErrNotLoggedIn = errors.New("not logged in")

type Book struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Published *int     `json:"published"`
	Genres    []string `json:"genres"`
	Author    struct {
		ID   *string `json:"id"`
		Name string  `json:"name"`
	} `json:"author"`
}

type Author struct {
	ID        *string `json:"id"`
	Name      string  `json:"name"`
	Born      *int    `json:"born"`
	BookCount int     `json:"bookCount"`
}

type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	FavoriteGenre string `json:"favoriteGenre"`
}

type BookFilter struct {
	Author string
	Genre  string
}

func (f BookFilter) cacheKey() string {
	return fmt.Sprintf("books|%q|%q", f.Author, f.Genre)
}

type NewBook struct {
	Title     string
	Published *int
	Author    string
	Genres    []string
}

// GraphQLError is one entry of a response's errors list.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// Errors is returned when the server answered with GraphQL errors.
type Errors []GraphQLError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, ge := range e {
		msgs[i] = ge.Message
	}
	return strings.Join(msgs, "; ")
}

// Code returns the first error's extensions.code.
func (e Errors) Code() string {
	if len(e) == 0 {
		return ""
	}
	return e[0].Extensions.Code
}

type gqlReq struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlResp struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

type Client struct {
	endpoint string
	http     *http.Client
	tokens   TokenStore

	mu    sync.Mutex
	cache map[string]json.RawMessage
}

func New(endpoint string, tokens TokenStore, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if tokens == nil {
		tokens = &MemoryTokenStore{}
	}
	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		tokens:   tokens,
		cache:    make(map[string]json.RawMessage),
	}
}

// LoggedIn reports whether a credential is stored.
func (c *Client) LoggedIn() bool {
	tok, err := c.tokens.Load()
	return err == nil && tok != ""
}

const booksQuery = `query ($author: String, $genre: String) {
	allBooks(author: $author, genre: $genre) { id title published genres author { id name } }
}`

const authorsQuery = `{ allAuthors { id name born bookCount } }`

// Books returns the book list sorted by title.
func (c *Client) Books(ctx context.Context, f BookFilter) ([]Book, error) {
	vars := map[string]any{}
	if f.Author != "" {
		vars["author"] = f.Author
	}
	if f.Genre != "" {
		vars["genre"] = f.Genre
	}
	var out struct {
		AllBooks []Book `json:"allBooks"`
	}
	if err := c.cachedQuery(ctx, f.cacheKey(), booksQuery, vars, &out); err != nil {
		return nil, err
	}
	slices.SortStableFunc(out.AllBooks, func(a, b Book) int { return strings.Compare(a.Title, b.Title) })
	return out.AllBooks, nil
}

// Authors returns the author list sorted by name.
func (c *Client) Authors(ctx context.Context) ([]Author, error) {
	var out struct {
		AllAuthors []Author `json:"allAuthors"`
	}
	if err := c.cachedQuery(ctx, "authors", authorsQuery, nil, &out); err != nil {
		return nil, err
	}
	slices.SortStableFunc(out.AllAuthors, func(a, b Author) int { return strings.Compare(a.Name, b.Name) })
	return out.AllAuthors, nil
}

// Me returns the user behind the stored credential, or nil.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out struct {
		Me *User `json:"me"`
	}
	if err := c.do(ctx, `{ me { id username favoriteGenre } }`, nil, &out); err != nil {
		return nil, err
	}
	return out.Me, nil
}

func (c *Client) Login(ctx context.Context, username, password string) error {
	var out struct {
		Login struct {
			Value string `json:"value"`
		} `json:"login"`
	}
	err := c.do(ctx, `mutation ($u: String!, $p: String!) { login(username: $u, password: $p) { value } }`,
		map[string]any{"u": username, "p": password}, &out)
	if err != nil {
		return err
	}
	if out.Login.Value == "" {
		return errors.New("login returned no token")
	}
	c.invalidate()
	return c.tokens.Save(out.Login.Value)
}

// Logout forgets the credential and everything cached under it.
func (c *Client) Logout() error {
	c.invalidate()
	return c.tokens.Clear()
}

func (c *Client) CreateUser(ctx context.Context, username, favoriteGenre, password string) (User, error) {
	vars := map[string]any{"u": username, "g": favoriteGenre}
	if password != "" {
		vars["p"] = password
	}
	var out struct {
		CreateUser *User `json:"createUser"`
	}
	err := c.do(ctx, `mutation ($u: String!, $g: String!, $p: String) {
		createUser(username: $u, favoriteGenre: $g, password: $p) { id username favoriteGenre }
	}`, vars, &out)
	if err != nil {
		return User{}, err
	}
	if out.CreateUser == nil {
		return User{}, errors.New("createUser returned nothing")
	}
	return *out.CreateUser, nil
}

// AddBook stores a book, then drops cached lists and refetches the full
// book list.
func (c *Client) AddBook(ctx context.Context, in NewBook) (Book, error) {
	if !c.LoggedIn() {
		return Book{}, ErrNotLoggedIn
	}
	genres := in.Genres
	if genres == nil {
		genres = []string{}
	}
	vars := map[string]any{"t": in.Title, "a": in.Author, "g": genres}
	if in.Published != nil {
		vars["p"] = *in.Published
	}
	var out struct {
		AddBook *Book `json:"addBook"`
	}
	err := c.do(ctx, `mutation ($t: String!, $p: Int, $a: String!, $g: [String!]!) {
		addBook(title: $t, published: $p, author: $a, genres: $g) { id title published genres author { id name } }
	}`, vars, &out)
	if err != nil {
		return Book{}, err
	}
	if out.AddBook == nil {
		return Book{}, errors.New("addBook returned nothing")
	}

	c.invalidate()
	if _, err := c.Books(ctx, BookFilter{}); err != nil {
		return *out.AddBook, fmt.Errorf("refetch books: %w", err)
	}
	return *out.AddBook, nil
}

// SetBorn sets an author's birth year. It returns nil when no author has
// that name.
func (c *Client) SetBorn(ctx context.Context, name string, year int) (*Author, error) {
	if !c.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	var out struct {
		EditAuthor *Author `json:"editAuthor"`
	}
	err := c.do(ctx, `mutation ($n: String!, $y: Int!) { editAuthor(name: $n, setBornTo: $y) { id name born bookCount } }`,
		map[string]any{"n": name, "y": year}, &out)
	if err != nil {
		return nil, err
	}

	c.invalidate()
	if _, err := c.Authors(ctx); err != nil {
		return out.EditAuthor, fmt.Errorf("refetch authors: %w", err)
	}
	return out.EditAuthor, nil
}

func (c *Client) cachedQuery(ctx context.Context, key, query string, vars map[string]any, out any) error {
	c.mu.Lock()
	data, ok := c.cache[key]
	c.mu.Unlock()
	if !ok {
		var err error
		data, err = c.exec(ctx, query, vars)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.cache[key] = data
		c.mu.Unlock()
	}
	return json.Unmarshal(data, out)
}

func (c *Client) invalidate() {
	c.mu.Lock()
	clear(c.cache)
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, query string, vars map[string]any, out any) error {
	data, err := c.exec(ctx, query, vars)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (c *Client) exec(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	b, err := json.Marshal(gqlReq{Query: query, Variables: vars})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	tok, err := c.tokens.Load()
	if err != nil {
		return nil, err
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed gqlResp
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response (%s): %w", resp.Status, err)
	}
	if len(parsed.Errors) > 0 {
		return nil, parsed.Errors
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("graphql http status: %s", resp.Status)
	}
	return parsed.Data, nil
}
