package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalContextKey = "principal"

// AuthMiddleware parses a Bearer JWT and resolves the advisor principal,
// connected accounts included, before the handler runs. Requests without a
// valid token are rejected.
func (a *App) AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, err := a.principalFromHeader(c.Request.Context(), c.GetHeader("Authorization"), secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(principalContextKey, principal)
		c.Next()
	}
}

// OptionalAuth resolves a principal when a valid token is present but lets
// anonymous requests through. The public booking endpoint uses it: invitees
// book anonymously against a link, advisors book ad-hoc with their own token.
func (a *App) OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth := c.GetHeader("Authorization"); auth != "" {
			if principal, err := a.principalFromHeader(c.Request.Context(), auth, secret); err == nil {
				c.Set(principalContextKey, principal)
			}
		}
		c.Next()
	}
}

// PrincipalFrom returns the resolved principal, or nil for anonymous calls.
func PrincipalFrom(c *gin.Context) *Principal {
	if v, ok := c.Get(principalContextKey); ok {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

func (a *App) principalFromHeader(ctx context.Context, header, secret string) (*Principal, error) {
	if header == "" {
		return nil, E(KindUnauthorized, "missing authorization")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, E(KindUnauthorized, "invalid authorization format")
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return []byte(secret), nil
	}, jwt.WithLeeway(5*time.Second))
	if err != nil || !token.Valid {
		return nil, E(KindUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, E(KindUnauthorized, "invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, E(KindUnauthorized, "token missing subject")
	}
	email, _ := claims["email"].(string)

	accounts, err := a.Store.ListConnectedAccounts(ctx, sub)
	if err != nil {
		return nil, Wrap(KindInternal, "failed to resolve connected accounts", err)
	}

	return &Principal{UserID: sub, Email: email, Accounts: accounts}, nil
}
