package outbound

import (
	"context"
	"time"
)

// Identity describes an authenticated caller.
type Identity struct {
	UserID string
	Email  string
}

// GenerateRequest is a single structured-output request to a remote model.
// ResponseSchema holds the JSON schema the reply must conform to; providers
// that cannot enforce it natively receive it inside the prompt.
type GenerateRequest struct {
	System          string
	Prompt          string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
	ResponseSchema  []byte
}

// GenerateResult carries the model output and its token accounting.
type GenerateResult struct {
	Text         string
	InputTokens  int32
	OutputTokens int32
}

// GenerativeModel defines the interface for remote generative model providers
type GenerativeModel interface {
	// Name returns the provider identifier used in logs and metrics.
	Name() string

	// Generate produces a single schema-conformant JSON reply. Provider
	// refusals, safety blocks, and truncations surface as ModelError.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

// FetchResult is the outcome of one page retrieval.
type FetchResult struct {
	HTML       string
	StatusCode int
	FinalURL   string
}

// Fetcher defines the interface for retrieving raw page HTML
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*FetchResult, error)
}

// CleanupResult describes one pass of the HTML cleanup cascade.
type CleanupResult struct {
	CleanedHTML    string
	OriginalSize   int
	CleanedSize    int
	ReductionRatio float64
	StrategyUsed   string
	Message        string
}

// HTMLCleaner defines the interface for the HTML cleanup cascade
type HTMLCleaner interface {
	// Clean reduces raw HTML to its smallest recipe-bearing fragment.
	// Strategy failures are absorbed; the worst case returns the input
	// unchanged under the fallback strategy.
	Clean(ctx context.Context, html string) *CleanupResult
}

// TokenVerifier defines the interface for bearer token verification
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Cipher seals and opens secrets held at rest.
type Cipher interface {
	Seal(plaintext string) ([]byte, error)
	Open(sealed []byte) (string, error)
}

// FolderRef is an opaque handle to a user's storage folder.
type FolderRef string

// FileRef is an opaque handle to a stored artifact.
type FileRef string

// FileEntry describes one stored artifact in a folder listing.
type FileEntry struct {
	Ref        FileRef
	Name       string
	MimeType   string
	Size       int64
	ModifiedAt time.Time
}

// FileListing is one page of folder contents.
type FileListing struct {
	Entries       []FileEntry
	NextPageToken string
}

// FileStore defines the interface for per-user artifact storage
type FileStore interface {
	// GetOrCreateFolder resolves the named folder for the identity,
	// creating it when absent.
	GetOrCreateFolder(ctx context.Context, identity Identity, name string) (FolderRef, error)

	// Put uploads data as filename inside folder, overwriting an existing
	// artifact with the same name.
	Put(ctx context.Context, identity Identity, folder FolderRef, filename string, data []byte, mimeType string) (FileRef, error)

	// List returns one page of folder contents.
	List(ctx context.Context, identity Identity, folder FolderRef, pageSize int, pageToken string) (*FileListing, error)

	// GetBytes downloads an artifact.
	GetBytes(ctx context.Context, identity Identity, ref FileRef) ([]byte, error)

	// GetText downloads an artifact and interprets it as UTF-8 text.
	GetText(ctx context.Context, identity Identity, ref FileRef) (string, error)
}
