// Package server assembles the HTTP routes.
package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bookgraph/internal/auth"
	"bookgraph/internal/events"
	"bookgraph/internal/graph"
	"bookgraph/internal/logging"
	"bookgraph/internal/store"
)

type Deps struct {
	Store     store.Store
	Tokens    *auth.TokenService
	Passwords auth.PasswordChecker
	// Events receives book-added notifications; Hub, when set, also serves /feed.
	Events events.Publisher
	Hub    *events.Hub
	Logger *zap.Logger
}

func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	resolver := graph.NewResolver(graph.Options{
		Store:     d.Store,
		Tokens:    d.Tokens,
		Passwords: d.Passwords,
		Events:    d.Events,
		Logger:    d.Logger.Named("graph"),
	})
	schema, err := graph.NewSchema(resolver)
	if err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	authn := auth.NewAuthenticator(d.Tokens, d.Store, d.Logger.Named("auth"))

	r := gin.New()
	r.Use(logging.Gin(d.Logger.Named("http")), gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })

	gql := graph.Handler(schema)
	api := r.Group("/")
	api.Use(authn.Middleware())
	api.POST("/graphql", gql)
	api.GET("/graphql", gql)
	api.POST("/", gql)

	if d.Hub != nil {
		r.GET("/feed", d.Hub.Handler())
	}
	return r, nil
}
