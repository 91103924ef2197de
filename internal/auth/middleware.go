package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const CtxUserIDKey = "user_id"
const CtxUsernameKey = "username"

// Middleware attaches the derived Session to the request context. A bearer
// token that fails verification ends the request with 401.
func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := a.Derive(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			a.log.Error("derive session", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, errorBody("internal error", "INTERNAL_SERVER_ERROR"))
			return
		}
		if s.State == Invalid {
			a.log.Info("rejected bearer token", zap.Error(s.Err), zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("invalid token", "UNAUTHENTICATED"))
			return
		}
		if u := s.CurrentUser(); u != nil {
			c.Set(CtxUserIDKey, u.ID)
			c.Set(CtxUsernameKey, u.Username)
		}
		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), s))
		c.Next()
	}
}

// errorBody mirrors the GraphQL response error shape.
func errorBody(msg, code string) gin.H {
	return gin.H{"errors": []gin.H{{
		"message":    msg,
		"extensions": gin.H{"code": code},
	}}}
}
