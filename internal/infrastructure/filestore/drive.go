package filestore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

const (
	driveProvider  = "drive"
	folderMimeType = "application/vnd.google-apps.folder"
)

// DriveStore implements outbound.FileStore on Google Drive. Every call
// builds a service from the caller's stored OAuth token; the drive.file
// scope confines access to artifacts this application created.
type DriveStore struct {
	oauth   *oauth2.Config
	creds   outbound.CredentialStore
	cipher  outbound.Cipher
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
}

// NewDriveStore creates a Google Drive file store. cfg.CredentialsJSON
// holds the OAuth client configuration issued by the Google console.
func NewDriveStore(cfg config.FileStoreConfig, creds outbound.CredentialStore, cipher outbound.Cipher, logger *zap.Logger, metrics *monitoring.MetricsCollector) (*DriveStore, error) {
	if cfg.CredentialsJSON == "" {
		return nil, fmt.Errorf("filestore credentials_json is not configured")
	}
	oauthCfg, err := google.ConfigFromJSON([]byte(cfg.CredentialsJSON), drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client config: %w", err)
	}

	logger.Info("Drive file store initialized",
		zap.String("scope", drive.DriveFileScope),
	)

	return &DriveStore{
		oauth:   oauthCfg,
		creds:   creds,
		cipher:  cipher,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// service resolves the caller's sealed token into an authenticated Drive
// client. The token source refreshes expired access tokens transparently.
func (s *DriveStore) service(ctx context.Context, identity outbound.Identity) (*drive.Service, error) {
	cred, err := s.creds.FindByUser(ctx, identity.UserID, driveProvider)
	if err != nil {
		return nil, fmt.Errorf("load drive credential: %w", err)
	}

	plaintext, err := s.cipher.Open(cred.TokenCipher)
	if err != nil {
		return nil, fmt.Errorf("unseal drive credential: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal([]byte(plaintext), &token); err != nil {
		return nil, fmt.Errorf("decode drive credential: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return svc, nil
}

// GetOrCreateFolder resolves the named folder at the Drive root, creating
// it when absent.
func (s *DriveStore) GetOrCreateFolder(ctx context.Context, identity outbound.Identity, name string) (outbound.FolderRef, error) {
	start := time.Now()
	svc, err := s.service(ctx, identity)
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "folder", "error", time.Since(start))
		return "", err
	}

	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and 'root' in parents and trashed = false",
		escapeQuery(name), folderMimeType)
	list, err := svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "folder", "error", time.Since(start))
		return "", fmt.Errorf("find folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		s.metrics.StorageOperation(driveProvider, "folder", "ok", time.Since(start))
		return outbound.FolderRef(list.Files[0].Id), nil
	}

	created, err := svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}).Fields("id").Context(ctx).Do()
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "folder", "error", time.Since(start))
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}

	s.logger.Info("Drive folder created",
		zap.String("name", name),
		zap.String("folder_id", created.Id),
	)
	s.metrics.StorageOperation(driveProvider, "folder", "ok", time.Since(start))
	return outbound.FolderRef(created.Id), nil
}

// Put uploads data as filename inside folder. An artifact with the same
// name is overwritten in place so repeat extractions stay idempotent.
func (s *DriveStore) Put(ctx context.Context, identity outbound.Identity, folder outbound.FolderRef, filename string, data []byte, mimeType string) (outbound.FileRef, error) {
	start := time.Now()
	svc, err := s.service(ctx, identity)
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "put", "error", time.Since(start))
		return "", err
	}

	query := fmt.Sprintf("name = '%s' and '%s' in parents and trashed = false",
		escapeQuery(filename), escapeQuery(string(folder)))
	list, err := svc.Files.List().Q(query).Fields("files(id)").PageSize(1).Context(ctx).Do()
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "put", "error", time.Since(start))
		return "", fmt.Errorf("find artifact %q: %w", filename, err)
	}

	var ref outbound.FileRef
	if len(list.Files) > 0 {
		updated, err := svc.Files.Update(list.Files[0].Id, &drive.File{}).
			Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
			Fields("id").Context(ctx).Do()
		if err != nil {
			s.metrics.StorageOperation(driveProvider, "put", "error", time.Since(start))
			return "", fmt.Errorf("update artifact %q: %w", filename, err)
		}
		ref = outbound.FileRef(updated.Id)
	} else {
		created, err := svc.Files.Create(&drive.File{
			Name:     filename,
			MimeType: mimeType,
			Parents:  []string{string(folder)},
		}).Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
			Fields("id").Context(ctx).Do()
		if err != nil {
			s.metrics.StorageOperation(driveProvider, "put", "error", time.Since(start))
			return "", fmt.Errorf("create artifact %q: %w", filename, err)
		}
		ref = outbound.FileRef(created.Id)
	}

	s.logger.Debug("Artifact stored",
		zap.String("provider", driveProvider),
		zap.String("filename", filename),
		zap.Int("bytes", len(data)),
	)
	s.metrics.StorageOperation(driveProvider, "put", "ok", time.Since(start))
	return ref, nil
}

// List returns one page of folder contents ordered by name.
func (s *DriveStore) List(ctx context.Context, identity outbound.Identity, folder outbound.FolderRef, pageSize int, pageToken string) (*outbound.FileListing, error) {
	start := time.Now()
	svc, err := s.service(ctx, identity)
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "list", "error", time.Since(start))
		return nil, err
	}

	call := svc.Files.List().
		Q(fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(string(folder)))).
		Fields("nextPageToken, files(id, name, mimeType, size, modifiedTime)").
		OrderBy("name").
		Context(ctx)
	if pageSize > 0 {
		call = call.PageSize(int64(pageSize))
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	list, err := call.Do()
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "list", "error", time.Since(start))
		return nil, fmt.Errorf("list folder: %w", err)
	}

	listing := &outbound.FileListing{
		Entries:       make([]outbound.FileEntry, 0, len(list.Files)),
		NextPageToken: list.NextPageToken,
	}
	for _, f := range list.Files {
		modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
		listing.Entries = append(listing.Entries, outbound.FileEntry{
			Ref:        outbound.FileRef(f.Id),
			Name:       f.Name,
			MimeType:   f.MimeType,
			Size:       f.Size,
			ModifiedAt: modified,
		})
	}

	s.metrics.StorageOperation(driveProvider, "list", "ok", time.Since(start))
	return listing, nil
}

// GetBytes downloads an artifact.
func (s *DriveStore) GetBytes(ctx context.Context, identity outbound.Identity, ref outbound.FileRef) ([]byte, error) {
	start := time.Now()
	svc, err := s.service(ctx, identity)
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "get", "error", time.Since(start))
		return nil, err
	}

	resp, err := svc.Files.Get(string(ref)).Context(ctx).Download()
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "get", "error", time.Since(start))
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		s.metrics.StorageOperation(driveProvider, "get", "error", time.Since(start))
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	s.metrics.StorageOperation(driveProvider, "get", "ok", time.Since(start))
	return data, nil
}

// GetText downloads an artifact and interprets it as UTF-8 text.
func (s *DriveStore) GetText(ctx context.Context, identity outbound.Identity, ref outbound.FileRef) (string, error) {
	data, err := s.GetBytes(ctx, identity, ref)
	if err != nil {
		return "", err
	}
	return decodeText(data)
}

// escapeQuery escapes a literal for interpolation into a Drive query
// string, which delimits values with single quotes.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
