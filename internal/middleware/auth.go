package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	identityKey = "identity"
	// AdminCookie carries the token for the server-rendered admin pages.
	AdminCookie = "admin_token"
)

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware requires a valid Bearer token.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		identity, err := ParseToken(jwtSecret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// OptionalAuth sets the caller when a valid Bearer token is present and
// lets anonymous requests through. A bad token is treated as anonymous.
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			if identity, err := ParseToken(jwtSecret, tokenString); err == nil {
				c.Set(identityKey, identity)
			}
		}
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !identity.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		c.Next()
	}
}

// AdminCookieAuth guards the admin pages, redirecting to loginPath when the
// cookie is missing, invalid or not an admin's.
func AdminCookieAuth(jwtSecret, loginPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(AdminCookie)
		if err == nil {
			if identity, err := ParseToken(jwtSecret, tokenString); err == nil && identity.IsAdmin() {
				c.Set(identityKey, identity)
				c.Next()
				return
			}
		}
		c.Redirect(http.StatusSeeOther, loginPath)
		c.Abort()
	}
}

// CurrentUser returns the caller set by one of the auth middlewares.
func CurrentUser(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	identity, ok := v.(Identity)
	return identity, ok
}

// UserID is the caller's id, or nil for anonymous requests.
func UserID(c *gin.Context) *int64 {
	identity, ok := CurrentUser(c)
	if !ok {
		return nil
	}
	id := identity.UserID
	return &id
}

func IsAdmin(c *gin.Context) bool {
	identity, ok := CurrentUser(c)
	return ok && identity.IsAdmin()
}
