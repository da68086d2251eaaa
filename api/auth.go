/*
auth.go - Tenant boundary middleware

PURPOSE:
  Every /api route below the health check runs for exactly one tenant.
  The tenant comes from one of two places:

  - Bearer token (when a JWT secret is configured): HS256, the tenant is
    read from the configured claim. The header is ignored.
  - X-Tenant-ID header (no secret): for local development and tests.

  Handlers read the tenant with TenantFrom and never take it from the
  request body.

SEE ALSO:
  - config/config.go: AuthConfig
  - server.go: Where the middleware is mounted
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/brokerdesk/commission-engine/commission"
)

// TenantHeader carries the tenant when tokens are not in use.
const TenantHeader = "X-Tenant-ID"

type ctxKey string

const ctxTenant ctxKey = "tenant"

// TenantFrom returns the tenant set by the middleware.
func TenantFrom(ctx context.Context) commission.TenantID {
	t, _ := ctx.Value(ctxTenant).(commission.TenantID)
	return t
}

// WithTenant attaches a tenant to ctx.
func WithTenant(ctx context.Context, tenant commission.TenantID) context.Context {
	return context.WithValue(ctx, ctxTenant, tenant)
}

// Auth resolves the tenant of each request.
type Auth struct {
	Secret      []byte
	TenantClaim string
}

func (a Auth) claim() string {
	if a.TenantClaim == "" {
		return "tenant_id"
	}
	return a.TenantClaim
}

// IssueToken signs a token for tenant valid for ttl.
func (a Auth) IssueToken(tenant commission.TenantID, ttl time.Duration) (string, error) {
	if len(a.Secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	claims := jwt.MapClaims{
		a.claim(): string(tenant),
		"exp":     jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.Secret)
}

// ParseToken validates a token and returns its tenant.
func (a Auth) ParseToken(raw string) (commission.TenantID, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid or expired token: %w", err)
	}
	tenant, _ := claims[a.claim()].(string)
	if strings.TrimSpace(tenant) == "" {
		return "", fmt.Errorf("token has no %s claim", a.claim())
	}
	return commission.TenantID(tenant), nil
}

// Middleware rejects requests without a tenant.
func (a Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		var tenant commission.TenantID
		if len(a.Secret) > 0 {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
				return
			}
			t, err := a.ParseToken(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid token", err)
				return
			}
			tenant = t
		} else {
			tenant = commission.TenantID(strings.TrimSpace(r.Header.Get(TenantHeader)))
			if tenant == "" {
				writeError(w, http.StatusUnauthorized, "Missing "+TenantHeader+" header", nil)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenant)))
	})
}
