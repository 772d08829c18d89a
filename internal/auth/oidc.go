package auth

import (
	"context"
	"fmt"
	"strings"

	"resort-booking/internal/models"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier accepts access tokens from an external identity provider such as Keycloak.
type OIDCVerifier struct {
	verifier    *oidc.IDTokenVerifier
	adminEmails map[string]bool
}

func NewOIDCVerifier(ctx context.Context, issuer string, adminEmails []string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	admins := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		admins[strings.ToLower(e)] = true
	}

	return &OIDCVerifier{
		// access tokens are not audience-scoped to this service
		verifier:    provider.Verifier(&oidc.Config{SkipClientIDCheck: true}),
		adminEmails: admins,
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*models.Claims, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrUnauthorized, err)
	}

	var claims struct {
		Sub         string `json:"sub"`
		Email       string `json:"email"`
		RealmAccess struct {
			Roles []string `json:"roles"`
		} `json:"realm_access"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", models.ErrUnauthorized, err)
	}

	return &models.Claims{
		ID:    claims.Sub,
		Email: claims.Email,
		Role:  roleFrom(claims.RealmAccess.Roles, claims.Email, v.adminEmails),
	}, nil
}

func roleFrom(roles []string, email string, adminEmails map[string]bool) string {
	for _, r := range roles {
		if r == models.RoleAdmin {
			return models.RoleAdmin
		}
	}
	if adminEmails[strings.ToLower(email)] {
		return models.RoleAdmin
	}
	return models.RoleUser
}
