package graph

import (
	"errors"

	"bookgraph/internal/store"
	"bookgraph/pkg/models"
)

const (
	codeUnauthenticated = "UNAUTHENTICATED"
	codeBadUserInput    = "BAD_USER_INPUT"
	codeInternal        = "INTERNAL_SERVER_ERROR"
)

// Error is a resolver error whose code is exposed under extensions.code.
type Error struct {
	Message string
	Code    string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": e.Code}
}

var (
	errNotAuthenticated = &Error{Message: "not authenticated", Code: codeUnauthenticated}
	errInvalidLogin     = &Error{Message: "invalid credentials", Code: codeBadUserInput}
	errInternal         = &Error{Message: "internal error", Code: codeInternal}
)

func badInput(msg string) *Error {
	return &Error{Message: msg, Code: codeBadUserInput}
}

// isUserFault reports whether a store error was caused by the input.
func isUserFault(err error) bool {
	return errors.Is(err, models.ErrInvalid) || errors.Is(err, store.ErrDuplicate)
}
