package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/gin-gonic/gin"
)

const (
	claimsKey   = "clinicflow.claims"
	identityKey = "clinicflow.identity"
)

// Authenticator validates a bearer token. *service.AuthService satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.Claims, error)
}

// Auth rejects requests without a valid, unrevoked access token and stores
// the caller's identity on the context.
func Auth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abort(c, http.StatusUnauthorized, "missing or malformed authorization header", domain.KindUnauthenticated)
			return
		}

		claims, err := a.Authenticate(c.Request.Context(), token)
		if err != nil {
			msg := "invalid token"
			var de *domain.Error
			if errors.As(err, &de) {
				msg = de.Message
			}
			if domain.KindOf(err) == domain.KindUnauthenticated {
				abort(c, http.StatusUnauthorized, msg, domain.KindUnauthenticated)
				return
			}
			abort(c, http.StatusInternalServerError, "internal server error", domain.KindInternal)
			return
		}

		id := claims.Identity()
		id.IP = c.ClientIP()
		id.RequestID = RequestIDFrom(c)

		c.Set(claimsKey, claims)
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRoles lets through only callers whose role is listed. It must run
// after Auth.
func RequireRoles(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "authentication required", domain.KindUnauthenticated)
			return
		}
		for _, r := range roles {
			if id.Role == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "access denied", domain.KindAccessDenied)
	}
}

func IdentityFrom(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	id, ok := v.(domain.Identity)
	return id, ok
}

func ClaimsFrom(c *gin.Context) (*domain.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*domain.Claims)
	return claims, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func abort(c *gin.Context, status int, msg string, kind domain.Kind) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": string(kind)})
}
