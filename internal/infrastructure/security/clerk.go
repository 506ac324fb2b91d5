// Package security implements caller authentication and at-rest protection
// for stored cloud-storage credentials.
package security

import (
	"context"

	"github.com/clerk/clerk-sdk-go/v2"
	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

// ClerkVerifier implements outbound.TokenVerifier against Clerk session
// tokens. The JSON Web Key set is fetched and cached by the SDK.
type ClerkVerifier struct {
	authorizedParties map[string]struct{}
	logger            *zap.Logger
}

// customClaims captures the session claims beyond the registered set that
// the service cares about.
type customClaims struct {
	Email string `json:"email"`
}

// NewClerkVerifier configures the Clerk SDK with the instance secret key.
func NewClerkVerifier(cfg config.AuthConfig, logger *zap.Logger) *ClerkVerifier {
	clerk.SetKey(cfg.SecretKey)

	parties := make(map[string]struct{}, len(cfg.AuthorizedParties))
	for _, party := range cfg.AuthorizedParties {
		parties[party] = struct{}{}
	}

	logger.Info("Clerk token verifier initialized",
		zap.Int("authorized_parties", len(parties)),
	)

	return &ClerkVerifier{
		authorizedParties: parties,
		logger:            logger,
	}
}

// Verify implements outbound.TokenVerifier.
func (v *ClerkVerifier) Verify(ctx context.Context, token string) (*outbound.Identity, error) {
	params := &jwt.VerifyParams{
		Token: token,
		CustomClaimsConstructor: func(_ context.Context) any {
			return &customClaims{}
		},
	}
	if len(v.authorizedParties) > 0 {
		params.AuthorizedPartyHandler = func(azp string) bool {
			_, ok := v.authorizedParties[azp]
			return ok
		}
	}

	claims, err := jwt.Verify(ctx, params)
	if err != nil {
		v.logger.Debug("Token verification failed", zap.Error(err))
		return nil, errors.NewUnauthorizedError("session token is invalid or expired")
	}

	identity := &outbound.Identity{UserID: claims.Subject}
	if custom, ok := claims.Custom.(*customClaims); ok {
		identity.Email = custom.Email
	}
	return identity, nil
}
