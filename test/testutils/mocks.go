// Package testutils provides mock implementations for testing
package testutils

import (
	"context"
	"sync"

	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/infrastructure/cleanup"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
	"github.com/stretchr/testify/mock"
)

// MockFetcher provides a mock implementation of the page fetcher
type MockFetcher struct {
	mock.Mock
}

// NewMockFetcher creates a new mock fetcher
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

// Fetch retrieves raw page HTML
func (m *MockFetcher) Fetch(ctx context.Context, pageURL string) (*outbound.FetchResult, error) {
	args := m.Called(ctx, pageURL)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*outbound.FetchResult), args.Error(1)
}

// SetupStandardMockBehavior sets up common mock behaviors
func (m *MockFetcher) SetupStandardMockBehavior() {
	page := RecipePageHTML("Weeknight Pasta",
		[]string{"200 g spaghetti", "2 cloves garlic", "3 tbsp olive oil"},
		[]string{"Boil the spaghetti in salted water.", "Toss with garlic and oil."})

	m.On("Fetch", mock.Anything, mock.AnythingOfType("string")).
		Return(&outbound.FetchResult{
			HTML:       page,
			StatusCode: 200,
			FinalURL:   "https://example.com/weeknight-pasta",
		}, nil)
}

// MockHTMLCleaner provides a mock implementation of the cleanup cascade
type MockHTMLCleaner struct {
	mock.Mock
}

// NewMockHTMLCleaner creates a new mock cleaner
func NewMockHTMLCleaner() *MockHTMLCleaner {
	return &MockHTMLCleaner{}
}

// Clean reduces raw HTML. A nil expectation value returns the input
// unchanged, matching the port's fallback contract.
func (m *MockHTMLCleaner) Clean(ctx context.Context, html string) *outbound.CleanupResult {
	args := m.Called(ctx, html)

	if res, ok := args.Get(0).(*outbound.CleanupResult); ok && res != nil {
		return res
	}

	return PassthroughCleanup(html)
}

// SetupStandardMockBehavior sets up common mock behaviors
func (m *MockHTMLCleaner) SetupStandardMockBehavior() {
	// Pass every page through unchanged.
	m.On("Clean", mock.Anything, mock.AnythingOfType("string")).
		Return((*outbound.CleanupResult)(nil))
}

// PassthroughCleanup builds the cleanup result for a pass that returns its
// input unchanged.
func PassthroughCleanup(html string) *outbound.CleanupResult {
	return &outbound.CleanupResult{
		CleanedHTML:    html,
		OriginalSize:   len(html),
		CleanedSize:    len(html),
		ReductionRatio: 0,
		StrategyUsed:   cleanup.StrategyFallback,
		Message:        "input returned unchanged",
	}
}

// MockGenerativeModel provides a mock implementation of the model provider.
// Every request is recorded so tests can assert on retry feedback prompts.
type MockGenerativeModel struct {
	mock.Mock
	requests []outbound.GenerateRequest
	mu       sync.RWMutex
}

// NewMockGenerativeModel creates a new mock model
func NewMockGenerativeModel() *MockGenerativeModel {
	return &MockGenerativeModel{
		requests: make([]outbound.GenerateRequest, 0),
	}
}

// Name identifies the provider in logs and metrics
func (m *MockGenerativeModel) Name() string {
	return "mock"
}

// Generate produces one structured reply
func (m *MockGenerativeModel) Generate(ctx context.Context, req outbound.GenerateRequest) (*outbound.GenerateResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	args := m.Called(ctx, req)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*outbound.GenerateResult), args.Error(1)
}

// GetRequests returns all recorded requests (for testing)
func (m *MockGenerativeModel) GetRequests() []outbound.GenerateRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()

	requests := make([]outbound.GenerateRequest, len(m.requests))
	copy(requests, m.requests)
	return requests
}

// ClearRequests clears the recorded requests list
func (m *MockGenerativeModel) ClearRequests() {
	m.mu.Lock()
	m.requests = m.requests[:0]
	m.mu.Unlock()
}

// SetupStandardMockBehavior sets up common mock behaviors
func (m *MockGenerativeModel) SetupStandardMockBehavior() {
	reply := ModelReply(NewRecipeBuilder().Build())

	m.On("Generate", mock.Anything, mock.AnythingOfType("outbound.GenerateRequest")).
		Return(&outbound.GenerateResult{
			Text:         reply,
			InputTokens:  1200,
			OutputTokens: 400,
		}, nil)
}

// MockTokenVerifier provides a mock implementation of bearer token verification
type MockTokenVerifier struct {
	mock.Mock
}

// NewMockTokenVerifier creates a new mock verifier
func NewMockTokenVerifier() *MockTokenVerifier {
	return &MockTokenVerifier{}
}

// Verify resolves a bearer token to an identity
func (m *MockTokenVerifier) Verify(ctx context.Context, token string) (*outbound.Identity, error) {
	args := m.Called(ctx, token)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*outbound.Identity), args.Error(1)
}

// SetupStandardMockBehavior sets up common mock behaviors
func (m *MockTokenVerifier) SetupStandardMockBehavior() {
	m.On("Verify", mock.Anything, mock.AnythingOfType("string")).
		Return(&outbound.Identity{
			UserID: "user_2mockcaller001",
			Email:  "caller@example.com",
		}, nil)
}

// StoredArtifact records one upload accepted by the mock file store
type StoredArtifact struct {
	Identity outbound.Identity
	Folder   outbound.FolderRef
	Filename string
	MimeType string
	Data     []byte
}

// MockFileStore provides a mock implementation of per-user artifact storage
type MockFileStore struct {
	mock.Mock
	uploads []StoredArtifact
	mu      sync.RWMutex
}

// NewMockFileStore creates a new mock file store
func NewMockFileStore() *MockFileStore {
	return &MockFileStore{
		uploads: make([]StoredArtifact, 0),
	}
}

// GetOrCreateFolder resolves the named folder
func (m *MockFileStore) GetOrCreateFolder(ctx context.Context, identity outbound.Identity, name string) (outbound.FolderRef, error) {
	args := m.Called(ctx, identity, name)
	return args.Get(0).(outbound.FolderRef), args.Error(1)
}

// Put uploads one artifact
func (m *MockFileStore) Put(ctx context.Context, identity outbound.Identity, folder outbound.FolderRef, filename string, data []byte, mimeType string) (outbound.FileRef, error) {
	args := m.Called(ctx, identity, folder, filename, data, mimeType)

	if args.Error(1) == nil {
		m.mu.Lock()
		m.uploads = append(m.uploads, StoredArtifact{
			Identity: identity,
			Folder:   folder,
			Filename: filename,
			MimeType: mimeType,
			Data:     append([]byte(nil), data...),
		})
		m.mu.Unlock()
	}

	return args.Get(0).(outbound.FileRef), args.Error(1)
}

// List returns one page of folder contents
func (m *MockFileStore) List(ctx context.Context, identity outbound.Identity, folder outbound.FolderRef, pageSize int, pageToken string) (*outbound.FileListing, error) {
	args := m.Called(ctx, identity, folder, pageSize, pageToken)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*outbound.FileListing), args.Error(1)
}

// GetBytes downloads an artifact
func (m *MockFileStore) GetBytes(ctx context.Context, identity outbound.Identity, ref outbound.FileRef) ([]byte, error) {
	args := m.Called(ctx, identity, ref)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]byte), args.Error(1)
}

// GetText downloads an artifact as UTF-8 text
func (m *MockFileStore) GetText(ctx context.Context, identity outbound.Identity, ref outbound.FileRef) (string, error) {
	args := m.Called(ctx, identity, ref)
	return args.String(0), args.Error(1)
}

// GetUploads returns all recorded uploads (for testing)
func (m *MockFileStore) GetUploads() []StoredArtifact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uploads := make([]StoredArtifact, len(m.uploads))
	copy(uploads, m.uploads)
	return uploads
}

// ClearUploads clears the recorded uploads list
func (m *MockFileStore) ClearUploads() {
	m.mu.Lock()
	m.uploads = m.uploads[:0]
	m.mu.Unlock()
}

// SetupStandardMockBehavior sets up common mock behaviors
func (m *MockFileStore) SetupStandardMockBehavior() {
	m.On("GetOrCreateFolder", mock.Anything, mock.AnythingOfType("outbound.Identity"), mock.AnythingOfType("string")).
		Return(outbound.FolderRef("folder-cookbook"), nil)

	m.On("Put", mock.Anything, mock.AnythingOfType("outbound.Identity"), mock.AnythingOfType("outbound.FolderRef"), mock.AnythingOfType("string"), mock.AnythingOfType("[]uint8"), mock.AnythingOfType("string")).
		Return(outbound.FileRef("file-0001"), nil)

	m.On("List", mock.Anything, mock.AnythingOfType("outbound.Identity"), mock.AnythingOfType("outbound.FolderRef"), mock.AnythingOfType("int"), mock.AnythingOfType("string")).
		Return(&outbound.FileListing{Entries: []outbound.FileEntry{}}, nil)
}

// MockCredentialStore provides a mock implementation of credential persistence
type MockCredentialStore struct {
	mock.Mock
	creds map[string]*outbound.StorageCredential
	mu    sync.RWMutex
}

// NewMockCredentialStore creates a new mock credential store
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{
		creds: make(map[string]*outbound.StorageCredential),
	}
}

func credentialKey(userID, provider string) string {
	return userID + "/" + provider
}

// Upsert stores a credential
func (m *MockCredentialStore) Upsert(ctx context.Context, cred *outbound.StorageCredential) error {
	args := m.Called(ctx, cred)

	if args.Error(0) == nil {
		m.mu.Lock()
		m.creds[credentialKey(cred.UserID, cred.Provider)] = cred
		m.mu.Unlock()
	}

	return args.Error(0)
}

// FindByUser finds a credential by user and provider
func (m *MockCredentialStore) FindByUser(ctx context.Context, userID, provider string) (*outbound.StorageCredential, error) {
	args := m.Called(ctx, userID, provider)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if cred, exists := m.creds[credentialKey(userID, provider)]; exists {
		return cred, nil
	}

	return args.Get(0).(*outbound.StorageCredential), args.Error(1)
}

// Delete removes a credential
func (m *MockCredentialStore) Delete(ctx context.Context, userID, provider string) error {
	args := m.Called(ctx, userID, provider)

	if args.Error(0) == nil {
		m.mu.Lock()
		delete(m.creds, credentialKey(userID, provider))
		m.mu.Unlock()
	}

	return args.Error(0)
}

// SetupStandardMockBehavior sets up common mock behaviors
func (m *MockCredentialStore) SetupStandardMockBehavior() {
	m.On("Upsert", mock.Anything, mock.AnythingOfType("*outbound.StorageCredential")).
		Return(nil)

	m.On("FindByUser", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return((*outbound.StorageCredential)(nil), errors.NewNotFoundError("storage credential"))

	m.On("Delete", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(nil)
}

// MockCacheStore provides a mock implementation of the extraction cache
type MockCacheStore struct {
	mock.Mock
}

// NewMockCacheStore creates a new mock cache store
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{}
}

// Lookup returns the entry for fingerprint or nil when absent
func (m *MockCacheStore) Lookup(ctx context.Context, fingerprint string) (*outbound.CachedEntry, error) {
	args := m.Called(ctx, fingerprint)

	if args.Error(1) != nil {
		return nil, args.Error(1)
	}

	if entry := args.Get(0); entry != nil {
		return entry.(*outbound.CachedEntry), nil
	}

	return nil, nil
}

// StoreValid persists extracted recipes
func (m *MockCacheStore) StoreValid(ctx context.Context, fingerprint, sourceURL string, recipes []*recipe.Recipe) error {
	args := m.Called(ctx, fingerprint, sourceURL, recipes)
	return args.Error(0)
}

// StoreInvalid memoizes a not-a-recipe verdict
func (m *MockCacheStore) StoreInvalid(ctx context.Context, fingerprint, sourceURL string) error {
	args := m.Called(ctx, fingerprint, sourceURL)
	return args.Error(0)
}

// Exists reports whether an entry is present
func (m *MockCacheStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	args := m.Called(ctx, fingerprint)
	return args.Bool(0), args.Error(1)
}

// Delete removes the entry for fingerprint
func (m *MockCacheStore) Delete(ctx context.Context, fingerprint string) error {
	args := m.Called(ctx, fingerprint)
	return args.Error(0)
}

// Count returns the number of stored entries
func (m *MockCacheStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Purge removes every entry
func (m *MockCacheStore) Purge(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// SetupStandardMockBehavior sets up common mock behaviors
func (m *MockCacheStore) SetupStandardMockBehavior() {
	// Empty cache: every lookup misses, every write succeeds.
	m.On("Lookup", mock.Anything, mock.AnythingOfType("string")).
		Return((*outbound.CachedEntry)(nil), nil)

	m.On("StoreValid", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string"), mock.Anything).
		Return(nil)

	m.On("StoreInvalid", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string")).
		Return(nil)

	m.On("Exists", mock.Anything, mock.AnythingOfType("string")).
		Return(false, nil)

	m.On("Delete", mock.Anything, mock.AnythingOfType("string")).
		Return(nil)

	m.On("Count", mock.Anything).
		Return(int64(0), nil)

	m.On("Purge", mock.Anything).
		Return(int64(0), nil)
}

// MockPipeline provides a container with every outbound dependency mocked
type MockPipeline struct {
	Fetcher     *MockFetcher
	Cleaner     *MockHTMLCleaner
	Model       *MockGenerativeModel
	CacheStore  *MockCacheStore
	FileStore   *MockFileStore
	Credentials *MockCredentialStore
	Verifier    *MockTokenVerifier
}

// NewMockPipeline creates a new mock pipeline with standard behaviors
func NewMockPipeline() *MockPipeline {
	pipeline := &MockPipeline{
		Fetcher:     NewMockFetcher(),
		Cleaner:     NewMockHTMLCleaner(),
		Model:       NewMockGenerativeModel(),
		CacheStore:  NewMockCacheStore(),
		FileStore:   NewMockFileStore(),
		Credentials: NewMockCredentialStore(),
		Verifier:    NewMockTokenVerifier(),
	}

	pipeline.Fetcher.SetupStandardMockBehavior()
	pipeline.Cleaner.SetupStandardMockBehavior()
	pipeline.Model.SetupStandardMockBehavior()
	pipeline.CacheStore.SetupStandardMockBehavior()
	pipeline.FileStore.SetupStandardMockBehavior()
	pipeline.Credentials.SetupStandardMockBehavior()
	pipeline.Verifier.SetupStandardMockBehavior()

	return pipeline
}

// AssertExpectations asserts that all mocks met their expectations
func (p *MockPipeline) AssertExpectations(t mock.TestingT) {
	p.Fetcher.AssertExpectations(t)
	p.Cleaner.AssertExpectations(t)
	p.Model.AssertExpectations(t)
	p.CacheStore.AssertExpectations(t)
	p.FileStore.AssertExpectations(t)
	p.Credentials.AssertExpectations(t)
	p.Verifier.AssertExpectations(t)
}
