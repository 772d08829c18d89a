package auth

import (
	"context"
	"fmt"
	"net/http"

	"resort-booking/internal/logger"
	"resort-booking/internal/models"
	"resort-booking/internal/utils"
)

// TokenVerifier turns a raw bearer token into the caller's claims.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*models.Claims, error)
}

// Chain tries each verifier in order. Used to accept locally issued OTP tokens
// alongside tokens from an external identity provider.
type Chain []TokenVerifier

func (c Chain) Verify(ctx context.Context, raw string) (*models.Claims, error) {
	err := error(models.ErrUnauthorized)
	for _, v := range c {
		var claims *models.Claims
		if claims, err = v.Verify(ctx, raw); err == nil {
			return claims, nil
		}
	}
	return nil, err
}

type contextKey string

const claimsKey contextKey = "claims"

// Middleware rejects requests without a valid bearer token and stores the claims in the context.
func Middleware(verifier TokenVerifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			claims, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				unauthorized(w, "invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// OptionalMiddleware attaches claims when a valid token is present and lets anonymous requests through.
func OptionalMiddleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rawToken, err := ExtractTokenFromRequest(r); err == nil {
				if claims, err := verifier.Verify(r.Context(), rawToken); err == nil {
					r = r.WithContext(WithClaims(r.Context(), claims))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole must run after Middleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				unauthorized(w, "missing credentials")
				return
			}
			if claims.Role != role {
				utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("Forbidden", "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithClaims(ctx context.Context, c *models.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext returns the authenticated caller, or nil.
func ClaimsFromContext(ctx context.Context) *models.Claims {
	if c, ok := ctx.Value(claimsKey).(*models.Claims); ok {
		return c
	}
	return nil
}

func unauthorized(w http.ResponseWriter, detail string) {
	utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized", detail))
}
