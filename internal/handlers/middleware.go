package handlers

import (
	"net/http"
	"strings"
	"time"

	"printshop/internal/redis"
	"printshop/internal/services"

	"github.com/gin-gonic/gin"
)

const sessionContextKey = "session"

// RateLimiter is the slice of the redis client the submission limiter needs.
type RateLimiter interface {
	IncrSubmissionCount(ip string, window time.Duration) (int64, error)
}

// RateLimit caps public submissions per client IP per hour. A broken
// counter backend fails open so estimates keep flowing.
func RateLimit(limiter RateLimiter, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := limiter.IncrSubmissionCount(c.ClientIP(), time.Hour)
		if err == nil && count > int64(limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many submissions, try again later"})
			return
		}
		c.Next()
	}
}

// RequireAuth validates the bearer session token and stores the session on
// the request context.
func RequireAuth(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		session, err := authService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired session"})
			return
		}

		c.Set(sessionContextKey, session)
		c.Next()
	}
}

// RequireRole allows the request through only when the authenticated
// session carries the given role. Runs after RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFrom(c)
		if session == nil || session.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

// SessionFrom returns the authenticated session attached by RequireAuth,
// or nil.
func SessionFrom(c *gin.Context) *redis.SessionData {
	value, ok := c.Get(sessionContextKey)
	if !ok {
		return nil
	}
	session, _ := value.(*redis.SessionData)
	return session
}
