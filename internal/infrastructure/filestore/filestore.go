// Package filestore implements per-user artifact storage behind
// outbound.FileStore. The drive backend writes to the caller's Google
// Drive using their stored OAuth token; the local backend emulates the
// same contract on a directory for development and tests.
package filestore

import (
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

// New builds the file store selected by cfg.Provider.
func New(cfg config.FileStoreConfig, creds outbound.CredentialStore, cipher outbound.Cipher, logger *zap.Logger, metrics *monitoring.MetricsCollector) (outbound.FileStore, error) {
	switch cfg.Provider {
	case "drive":
		return NewDriveStore(cfg, creds, cipher, logger.Named("filestore-drive"), metrics)
	case "local":
		return NewLocalStore(cfg, logger.Named("filestore-local"), metrics)
	default:
		return nil, fmt.Errorf("unknown filestore provider %q", cfg.Provider)
	}
}

// decodeText interprets stored bytes as UTF-8 text.
func decodeText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("artifact is not valid UTF-8 text")
	}
	return string(data), nil
}
