package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/jwt"
	"github.com/weiawesome/wes-io-live/overlay-service/pkg/response"
)

const (
	OperatorIDKey = "operator_id"
	ClaimsKey     = "claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// AuthMiddleware validates operator tokens.
type AuthMiddleware struct {
	jwt *jwt.Manager
}

// NewAuthMiddleware creates a new auth middleware. A nil manager disables auth.
func NewAuthMiddleware(manager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{jwt: manager}
}

// RequireOperator returns a Gin middleware that requires a valid bearer token
// allowed to operate the session named by the :id path parameter.
func (m *AuthMiddleware) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.jwt == nil {
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			code := "INVALID_TOKEN"
			switch {
			case errors.Is(err, jwt.ErrExpiredToken):
				code = "TOKEN_EXPIRED"
			case errors.Is(err, jwt.ErrRevokedToken):
				code = "TOKEN_REVOKED"
			}
			response.Abort(c, http.StatusUnauthorized, code, err.Error())
			return
		}

		if sessionID := c.Param("id"); sessionID != "" && !claims.CanOperate(sessionID) {
			response.Abort(c, http.StatusForbidden, "FORBIDDEN", "operator may not control this session")
			return
		}

		c.Set(OperatorIDKey, claims.OperatorID)
		c.Set(ClaimsKey, claims)

		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthHeaderKey)
	if strings.HasPrefix(authHeader, BearerPrefix) {
		return strings.TrimPrefix(authHeader, BearerPrefix)
	}
	return ""
}

// GetOperatorID extracts the operator ID from Gin context.
func GetOperatorID(c *gin.Context) string {
	if id, exists := c.Get(OperatorIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
