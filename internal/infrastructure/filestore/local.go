package filestore

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

const localProvider = "local"

// LocalStore implements outbound.FileStore on a local directory. It backs
// development and tests; refs are root-relative paths under
// <local_path>/<user>/<folder>/.
type LocalStore struct {
	root    string
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
}

// NewLocalStore creates a directory-rooted file store.
func NewLocalStore(cfg config.FileStoreConfig, logger *zap.Logger, metrics *monitoring.MetricsCollector) (*LocalStore, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("filestore local_path is not configured")
	}
	if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
		return nil, fmt.Errorf("create filestore root: %w", err)
	}

	logger.Info("Local file store initialized",
		zap.String("root", cfg.LocalPath),
	)

	return &LocalStore{
		root:    cfg.LocalPath,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// GetOrCreateFolder resolves the named folder for the identity.
func (s *LocalStore) GetOrCreateFolder(ctx context.Context, identity outbound.Identity, name string) (outbound.FolderRef, error) {
	start := time.Now()
	rel, err := s.safeJoin(sanitizeSegment(identity.UserID), name)
	if err != nil {
		s.metrics.StorageOperation(localProvider, "folder", "error", time.Since(start))
		return "", err
	}

	if err := os.MkdirAll(filepath.Join(s.root, rel), 0o755); err != nil {
		s.metrics.StorageOperation(localProvider, "folder", "error", time.Since(start))
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}

	s.metrics.StorageOperation(localProvider, "folder", "ok", time.Since(start))
	return outbound.FolderRef(rel), nil
}

// Put writes data as filename inside folder, overwriting any existing
// artifact with the same name.
func (s *LocalStore) Put(ctx context.Context, identity outbound.Identity, folder outbound.FolderRef, filename string, data []byte, mimeType string) (outbound.FileRef, error) {
	start := time.Now()
	rel, err := s.safeJoin(string(folder), filename)
	if err != nil {
		s.metrics.StorageOperation(localProvider, "put", "error", time.Since(start))
		return "", err
	}

	path := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		s.metrics.StorageOperation(localProvider, "put", "error", time.Since(start))
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.metrics.StorageOperation(localProvider, "put", "error", time.Since(start))
		return "", fmt.Errorf("write artifact %q: %w", filename, err)
	}

	s.logger.Debug("Artifact stored",
		zap.String("provider", localProvider),
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
	)
	s.metrics.StorageOperation(localProvider, "put", "ok", time.Since(start))
	return outbound.FileRef(rel), nil
}

// List returns one page of folder contents ordered by name. The page token
// is the numeric offset of the next entry.
func (s *LocalStore) List(ctx context.Context, identity outbound.Identity, folder outbound.FolderRef, pageSize int, pageToken string) (*outbound.FileListing, error) {
	start := time.Now()
	rel, err := s.safeJoin(string(folder))
	if err != nil {
		s.metrics.StorageOperation(localProvider, "list", "error", time.Since(start))
		return nil, err
	}

	dirEntries, err := os.ReadDir(filepath.Join(s.root, rel))
	if err != nil {
		s.metrics.StorageOperation(localProvider, "list", "error", time.Since(start))
		return nil, fmt.Errorf("list folder: %w", err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	offset := 0
	if pageToken != "" {
		offset, err = strconv.Atoi(pageToken)
		if err != nil || offset < 0 {
			return nil, fmt.Errorf("invalid page token %q", pageToken)
		}
	}
	if offset > len(names) {
		offset = len(names)
	}
	end := len(names)
	if pageSize > 0 && offset+pageSize < end {
		end = offset + pageSize
	}

	listing := &outbound.FileListing{
		Entries: make([]outbound.FileEntry, 0, end-offset),
	}
	for _, name := range names[offset:end] {
		info, err := os.Stat(filepath.Join(s.root, rel, name))
		if err != nil {
			continue
		}
		listing.Entries = append(listing.Entries, outbound.FileEntry{
			Ref:        outbound.FileRef(filepath.ToSlash(filepath.Join(rel, name))),
			Name:       name,
			MimeType:   mimeTypeFor(name),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}
	if end < len(names) {
		listing.NextPageToken = strconv.Itoa(end)
	}

	s.metrics.StorageOperation(localProvider, "list", "ok", time.Since(start))
	return listing, nil
}

// GetBytes reads an artifact.
func (s *LocalStore) GetBytes(ctx context.Context, identity outbound.Identity, ref outbound.FileRef) ([]byte, error) {
	start := time.Now()
	rel, err := s.safeJoin(string(ref))
	if err != nil {
		s.metrics.StorageOperation(localProvider, "get", "error", time.Since(start))
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.root, rel))
	if err != nil {
		s.metrics.StorageOperation(localProvider, "get", "error", time.Since(start))
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	s.metrics.StorageOperation(localProvider, "get", "ok", time.Since(start))
	return data, nil
}

// GetText reads an artifact and interprets it as UTF-8 text.
func (s *LocalStore) GetText(ctx context.Context, identity outbound.Identity, ref outbound.FileRef) (string, error) {
	data, err := s.GetBytes(ctx, identity, ref)
	if err != nil {
		return "", err
	}
	return decodeText(data)
}

// safeJoin joins path segments relative to the store root. Segments must
// not climb: a ".." element anywhere rejects the whole path, so refs can
// neither escape the root nor cross into another user's namespace.
func (s *LocalStore) safeJoin(segments ...string) (string, error) {
	for _, seg := range segments {
		for _, part := range strings.Split(filepath.ToSlash(seg), "/") {
			if part == ".." {
				return "", fmt.Errorf("path %q escapes the store root", filepath.Join(segments...))
			}
		}
	}
	rel := filepath.Clean(filepath.Join(segments...))
	if rel == "." || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path %q escapes the store root", filepath.Join(segments...))
	}
	return rel, nil
}

// sanitizeSegment maps an identity to a single path segment.
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

func mimeTypeFor(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return "application/yaml"
	}
	return "application/octet-stream"
}
