package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/amen-live/pkg/jwt"
	"github.com/weiawesome/amen-live/pkg/log"
	"github.com/weiawesome/amen-live/pkg/response"
)

const (
	SubjectKey    = log.FieldSubject
	ScopesKey     = "scopes"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// AuthMiddleware guards internal endpoints with service tokens.
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{validator: validator}
}

// RequireScope returns a Gin middleware that requires a valid bearer token
// granting scope. An empty scope only checks the token.
func (m *AuthMiddleware) RequireScope(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := m.validator.ValidateToken(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				msg = "token has expired"
			}
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		if scope != "" && !claims.HasScope(scope) {
			response.Forbidden(c, jwt.ErrMissingScope.Error())
			c.Abort()
			return
		}

		c.Set(SubjectKey, claims.Subject)
		c.Set(ScopesKey, claims.Scopes)

		c.Next()
	}
}

// GetSubject extracts the token subject from Gin context.
func GetSubject(c *gin.Context) string {
	if sub, exists := c.Get(SubjectKey); exists {
		if s, ok := sub.(string); ok {
			return s
		}
	}
	return ""
}
