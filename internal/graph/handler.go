package graph

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	graphql "github.com/graph-gophers/graphql-go"
	gqlast "github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Params is a GraphQL-over-HTTP request.
type Params struct {
	Query         string                 `json:"query" form:"query"`
	OperationName string                 `json:"operationName" form:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Handler executes requests against schema. POST takes a JSON body, GET
// takes query, operationName and JSON-encoded variables as URL parameters.
// GET only runs queries; a mutation sent by GET gets 405.
// The request context must already carry the caller's session.
func Handler(schema *graphql.Schema) gin.HandlerFunc {
	return func(c *gin.Context) {
		var p Params
		if c.Request.Method == http.MethodGet {
			p.Query = c.Query("query")
			p.OperationName = c.Query("operationName")
			if raw := c.Query("variables"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &p.Variables); err != nil {
					c.JSON(http.StatusBadRequest, requestError("variables must be a JSON object"))
					return
				}
			}
		} else if err := c.ShouldBindJSON(&p); err != nil {
			c.JSON(http.StatusBadRequest, requestError("invalid json"))
			return
		}
		if p.Query == "" {
			c.JSON(http.StatusBadRequest, requestError("query required"))
			return
		}
		if c.Request.Method == http.MethodGet && isMutation(p.Query, p.OperationName) {
			c.Header("Allow", http.MethodPost)
			c.JSON(http.StatusMethodNotAllowed, requestError("mutations must be sent with POST"))
			return
		}

		resp := schema.Exec(c.Request.Context(), p.Query, p.OperationName, p.Variables)
		c.JSON(http.StatusOK, resp)
	}
}

func requestError(msg string) gin.H {
	return gin.H{"errors": []gin.H{{
		"message":    msg,
		"extensions": gin.H{"code": codeBadUserInput},
	}}}
}

// isMutation reports whether the operation that would run is a mutation.
// Documents that do not parse are left for the executor to report.
func isMutation(query, operationName string) bool {
	doc, err := parser.ParseQuery(&gqlast.Source{Input: query})
	if err != nil {
		return false
	}
	op := doc.Operations.ForName(operationName)
	return op != nil && op.Operation == gqlast.Mutation
}
