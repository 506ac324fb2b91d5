package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

// CredentialStore implements outbound.CredentialStore on PostgreSQL.
// Token material arrives already sealed; the store never sees plaintext.
type CredentialStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewCredentialStore creates a PostgreSQL-backed credential store.
func NewCredentialStore(db *pgxpool.Pool, logger *zap.Logger) *CredentialStore {
	return &CredentialStore{
		db:     db,
		logger: logger,
	}
}

// Upsert stores or replaces the credential for (user, provider).
func (s *CredentialStore) Upsert(ctx context.Context, cred *outbound.StorageCredential) error {
	query := `INSERT INTO storage_credentials (user_id, provider, token_cipher, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		ON CONFLICT (user_id, provider) DO UPDATE SET
			token_cipher = EXCLUDED.token_cipher,
			updated_at   = now()`

	if _, err := s.db.Exec(ctx, query, cred.UserID, cred.Provider, cred.TokenCipher); err != nil {
		s.logger.Error("Failed to upsert storage credential",
			zap.String("user_id", cred.UserID),
			zap.String("provider", cred.Provider),
			zap.Error(err))
		return fmt.Errorf("upsert credential: %w", err)
	}
	return nil
}

// FindByUser returns the credential for (user, provider).
func (s *CredentialStore) FindByUser(ctx context.Context, userID, provider string) (*outbound.StorageCredential, error) {
	query := `SELECT user_id, provider, token_cipher, created_at, updated_at
		FROM storage_credentials WHERE user_id = $1 AND provider = $2`

	var cred outbound.StorageCredential
	err := s.db.QueryRow(ctx, query, userID, provider).Scan(
		&cred.UserID,
		&cred.Provider,
		&cred.TokenCipher,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NewNotFoundError("storage credential")
	}
	if err != nil {
		s.logger.Error("Failed to load storage credential",
			zap.String("user_id", userID),
			zap.String("provider", provider),
			zap.Error(err))
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return &cred, nil
}

// Delete removes the credential for (user, provider).
func (s *CredentialStore) Delete(ctx context.Context, userID, provider string) error {
	query := `DELETE FROM storage_credentials WHERE user_id = $1 AND provider = $2`
	if _, err := s.db.Exec(ctx, query, userID, provider); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}
