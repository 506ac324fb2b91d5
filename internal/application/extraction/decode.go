package extraction

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Masterminds/semver/v3"
	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/ports/inbound"
	"github.com/cookbookhq/backend/pkg/errors"
)

// Compression modes accepted on a request. Auto is the wire default used
// by the capture clients, which gzip page HTML before upload.
const (
	CompressionAuto = ""
	CompressionNone = "none"
)

// ValidCompression reports whether mode is a supported compression value.
func ValidCompression(mode string) bool {
	return mode == CompressionAuto || mode == CompressionNone
}

// acquireInline resolves the request's html field to markup. Auto mode
// unwraps Base64+gzip; a failed unwrap falls back to fetching the URL, or
// rejects the request when there is no URL to fall back to.
func (s *Service) acquireInline(cmd inbound.ExtractRecipeCommand) (string, error) {
	raw := strings.TrimSpace(cmd.HTML)
	if raw == "" {
		return "", nil
	}
	if cmd.Compression == CompressionNone {
		return raw, nil
	}

	html, err := decodeCompressed(raw)
	if err != nil {
		if strings.TrimSpace(cmd.URL) == "" {
			return "", errors.NewBadRequestError(fmt.Sprintf("html field could not be decoded: %v", err))
		}
		s.logger.Warn("Inline HTML decode failed, falling back to fetch",
			zap.String("url", cmd.URL),
			zap.Error(err))
		return "", nil
	}
	return html, nil
}

// decodeCompressed unwraps the auto wire format: standard Base64 over a
// gzip stream over UTF-8 markup.
func decodeCompressed(encoded string) (string, error) {
	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("gzip: %w", err)
	}
	defer zr.Close()

	html, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("gzip: %w", err)
	}
	if !utf8.Valid(html) {
		return "", fmt.Errorf("decoded payload is not valid UTF-8")
	}
	return string(html), nil
}

var currentSchema = semver.MustParse(recipe.SchemaVersion)

// schemaCompatible reports whether every cached recipe was written under
// the current schema major. A mismatch forces a rebuild rather than serving
// YAML the client may no longer understand.
func schemaCompatible(recipes []*recipe.Recipe) bool {
	for _, r := range recipes {
		cached, err := semver.NewVersion(r.SchemaVersion)
		if err != nil || cached.Major() != currentSchema.Major() {
			return false
		}
	}
	return true
}
