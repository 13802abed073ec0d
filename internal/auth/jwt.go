// Package auth validates bearer tokens and exposes the caller's identity
// to handlers. Authentication policy lives in the identity provider; this
// package only verifies signatures and extracts the subject.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ownerKey = "auth_owner_id"
	tokenKey = "auth_raw_token"
)

// Middleware rejects requests without a valid HS256 bearer token whose
// subject is a UUID. The subject becomes the owner id for all scoping.
func Middleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sub, err := token.Claims.GetSubject()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		ownerID, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid subject"})
			return
		}

		c.Set(ownerKey, ownerID)
		c.Set(tokenKey, raw)
		c.Next()
	}
}

// OwnerID returns the authenticated caller's id. Only valid behind
// Middleware.
func OwnerID(c *gin.Context) uuid.UUID {
	v, ok := c.Get(ownerKey)
	if !ok {
		return uuid.Nil
	}
	return v.(uuid.UUID)
}

// RawToken returns the verified bearer token, for exchange against the
// object store's STS endpoint.
func RawToken(c *gin.Context) string {
	return c.GetString(tokenKey)
}

// Sign issues an HS256 token for the given owner. Used by tests and local
// tooling; production tokens come from the identity provider.
func Sign(secret string, ownerID uuid.UUID) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": ownerID.String(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
