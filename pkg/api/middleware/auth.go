package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys set by the auth middleware.
const (
	ContextUsername  = "username"
	ContextWorkspace = "workspace"
	ContextBearer    = "bearer"
)

// Claims are the token claims the API relies on. Workspace defaults to
// the preferred username when the identity provider sets no workspace.
type Claims struct {
	PreferredUsername string `json:"preferred_username"`
	Workspace         string `json:"workspace"`
	jwt.RegisteredClaims
}

// ValidateToken verifies an HMAC-signed bearer and returns its claims.
func ValidateToken(secret []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// BearerFromHeader extracts the raw token from an Authorization header.
func BearerFromHeader(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// JWTAuth validates the bearer token and stores the caller's identity
// on the request context.
func JWTAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			AbortWithError(c, http.StatusUnauthorized, []string{"header", "authorization"},
				"not_authorized", "Authorization header required")
			return
		}

		bearer, ok := BearerFromHeader(header)
		if !ok {
			AbortWithError(c, http.StatusUnauthorized, []string{"header", "authorization"},
				"not_authorized", "Authorization header format must be 'Bearer {token}'")
			return
		}

		claims, err := ValidateToken(secret, bearer)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, []string{"header", "authorization"},
				"not_authorized", "invalid bearer token")
			return
		}

		workspace := claims.Workspace
		if workspace == "" {
			workspace = claims.PreferredUsername
		}

		c.Set(ContextUsername, claims.PreferredUsername)
		c.Set(ContextWorkspace, workspace)
		c.Set(ContextBearer, bearer)
		c.Next()
	}
}

// Username returns the authenticated caller's username.
func Username(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

// Workspace returns the caller's workspace.
func Workspace(c *gin.Context) string {
	return c.GetString(ContextWorkspace)
}

// Bearer returns the caller's raw bearer token.
func Bearer(c *gin.Context) string {
	return c.GetString(ContextBearer)
}
