package filestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
	"github.com/cookbookhq/backend/internal/ports/outbound"
)

// LocalStoreTestSuite tests the directory-rooted file store
type LocalStoreTestSuite struct {
	suite.Suite

	ctx      context.Context
	identity outbound.Identity
}

// SetupSuite initializes shared test state
func (suite *LocalStoreTestSuite) SetupSuite() {
	suite.ctx = context.Background()
	suite.identity = outbound.Identity{UserID: "user_2x9KqLmN", Email: "cook@example.com"}
}

func (suite *LocalStoreTestSuite) newStore() *LocalStore {
	store, err := NewLocalStore(config.FileStoreConfig{
		Provider:  "local",
		LocalPath: suite.T().TempDir(),
	}, zap.NewNop(), monitoring.NewMetricsCollector(zap.NewNop()))
	require.NoError(suite.T(), err)
	return store
}

// TestFolderAndPut tests folder resolution and artifact writes
func (suite *LocalStoreTestSuite) TestFolderAndPut() {
	suite.Run("GetOrCreateFolder_ShouldBeIdempotent", func() {
		// Arrange
		store := suite.newStore()

		// Act
		first, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")
		require.NoError(suite.T(), err)
		second, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), first, second)
	})

	suite.Run("Put_ShouldRoundTripBytes", func() {
		// Arrange
		store := suite.newStore()
		folder, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")
		require.NoError(suite.T(), err)

		// Act
		ref, err := store.Put(suite.ctx, suite.identity, folder, "shakshuka.yaml", []byte("title: Shakshuka\n"), "application/yaml")
		require.NoError(suite.T(), err)
		data, err := store.GetBytes(suite.ctx, suite.identity, ref)

		// Assert
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "title: Shakshuka\n", string(data))

		text, err := store.GetText(suite.ctx, suite.identity, ref)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "title: Shakshuka\n", text)
	})

	suite.Run("Put_SameName_ShouldOverwrite", func() {
		// Arrange
		store := suite.newStore()
		folder, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")
		require.NoError(suite.T(), err)

		// Act
		first, err := store.Put(suite.ctx, suite.identity, folder, "soup.yaml", []byte("version: 1\n"), "application/yaml")
		require.NoError(suite.T(), err)
		second, err := store.Put(suite.ctx, suite.identity, folder, "soup.yaml", []byte("version: 2\n"), "application/yaml")
		require.NoError(suite.T(), err)

		// Assert
		assert.Equal(suite.T(), first, second, "overwrite must keep the ref stable")
		data, err := store.GetBytes(suite.ctx, suite.identity, second)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "version: 2\n", string(data))

		listing, err := store.List(suite.ctx, suite.identity, folder, 10, "")
		require.NoError(suite.T(), err)
		assert.Len(suite.T(), listing.Entries, 1)
	})

	suite.Run("Users_ShouldNotShareFolders", func() {
		// Arrange
		store := suite.newStore()
		other := outbound.Identity{UserID: "user_other"}
		mine, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")
		require.NoError(suite.T(), err)
		theirs, err := store.GetOrCreateFolder(suite.ctx, other, "Cookbook")
		require.NoError(suite.T(), err)

		// Act
		_, err = store.Put(suite.ctx, suite.identity, mine, "secret.yaml", []byte("mine\n"), "application/yaml")
		require.NoError(suite.T(), err)

		// Assert
		assert.NotEqual(suite.T(), mine, theirs)
		listing, err := store.List(suite.ctx, other, theirs, 10, "")
		require.NoError(suite.T(), err)
		assert.Empty(suite.T(), listing.Entries)
	})
}

// TestListing tests paged folder listings
func (suite *LocalStoreTestSuite) TestListing() {
	suite.Run("List_ShouldPageInNameOrder", func() {
		// Arrange
		store := suite.newStore()
		folder, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")
		require.NoError(suite.T(), err)
		for _, name := range []string{"carbonara.yaml", "arrabbiata.yaml", "bolognese.yaml"} {
			_, err := store.Put(suite.ctx, suite.identity, folder, name, []byte("x\n"), "application/yaml")
			require.NoError(suite.T(), err)
		}

		// Act
		page1, err := store.List(suite.ctx, suite.identity, folder, 2, "")
		require.NoError(suite.T(), err)
		page2, err := store.List(suite.ctx, suite.identity, folder, 2, page1.NextPageToken)

		// Assert
		require.NoError(suite.T(), err)
		require.Len(suite.T(), page1.Entries, 2)
		assert.Equal(suite.T(), "arrabbiata.yaml", page1.Entries[0].Name)
		assert.Equal(suite.T(), "bolognese.yaml", page1.Entries[1].Name)
		assert.NotEmpty(suite.T(), page1.NextPageToken)

		require.Len(suite.T(), page2.Entries, 1)
		assert.Equal(suite.T(), "carbonara.yaml", page2.Entries[0].Name)
		assert.Empty(suite.T(), page2.NextPageToken)
	})

	suite.Run("List_ShouldCarryEntryMetadata", func() {
		// Arrange
		store := suite.newStore()
		folder, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")
		require.NoError(suite.T(), err)
		_, err = store.Put(suite.ctx, suite.identity, folder, "stew.yaml", []byte("title: Stew\n"), "application/yaml")
		require.NoError(suite.T(), err)

		// Act
		listing, err := store.List(suite.ctx, suite.identity, folder, 0, "")

		// Assert
		require.NoError(suite.T(), err)
		require.Len(suite.T(), listing.Entries, 1)
		entry := listing.Entries[0]
		assert.Equal(suite.T(), "stew.yaml", entry.Name)
		assert.Equal(suite.T(), int64(len("title: Stew\n")), entry.Size)
		assert.False(suite.T(), entry.ModifiedAt.IsZero())
		assert.NotEmpty(suite.T(), entry.MimeType)
	})

	suite.Run("BadPageToken_ShouldError", func() {
		// Arrange
		store := suite.newStore()
		folder, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")
		require.NoError(suite.T(), err)

		// Act
		_, err = store.List(suite.ctx, suite.identity, folder, 10, "not-a-number")

		// Assert
		assert.Error(suite.T(), err)
	})
}

// TestPathSafety tests that refs cannot escape the store root
func (suite *LocalStoreTestSuite) TestPathSafety() {
	suite.Run("TraversalFilename_ShouldBeRejected", func() {
		// Arrange
		store := suite.newStore()
		folder, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")
		require.NoError(suite.T(), err)

		// Act
		_, err = store.Put(suite.ctx, suite.identity, folder, "../../etc/passwd", []byte("x"), "text/plain")

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), "escapes the store root")
	})

	suite.Run("TraversalFolderName_ShouldBeRejected", func() {
		// Arrange
		store := suite.newStore()

		// Act
		_, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "../other-user")

		// Assert
		assert.Error(suite.T(), err)
	})

	suite.Run("TraversalRef_ShouldBeRejected", func() {
		// Arrange
		store := suite.newStore()

		// Act
		_, err := store.GetBytes(suite.ctx, suite.identity, outbound.FileRef("../outside.yaml"))

		// Assert
		assert.Error(suite.T(), err)
	})

	suite.Run("NonUTF8Artifact_ShouldFailGetText", func() {
		// Arrange
		store := suite.newStore()
		folder, err := store.GetOrCreateFolder(suite.ctx, suite.identity, "Cookbook")
		require.NoError(suite.T(), err)
		ref, err := store.Put(suite.ctx, suite.identity, folder, "blob.bin", []byte{0xff, 0xfe, 0x00}, "application/octet-stream")
		require.NoError(suite.T(), err)

		// Act
		_, err = store.GetText(suite.ctx, suite.identity, ref)

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), "UTF-8")
	})
}

// TestProviderSwitch tests backend selection
func (suite *LocalStoreTestSuite) TestProviderSwitch() {
	suite.Run("UnknownProvider_ShouldError", func() {
		// Act
		_, err := New(config.FileStoreConfig{Provider: "s3"}, nil, nil, zap.NewNop(), monitoring.NewMetricsCollector(zap.NewNop()))

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), `unknown filestore provider "s3"`)
	})

	suite.Run("LocalProvider_ShouldConstruct", func() {
		// Act
		store, err := New(config.FileStoreConfig{
			Provider:  "local",
			LocalPath: suite.T().TempDir(),
		}, nil, nil, zap.NewNop(), monitoring.NewMetricsCollector(zap.NewNop()))

		// Assert
		require.NoError(suite.T(), err)
		assert.NotNil(suite.T(), store)
	})

	suite.Run("MissingLocalPath_ShouldError", func() {
		// Act
		_, err := NewLocalStore(config.FileStoreConfig{Provider: "local"}, zap.NewNop(), monitoring.NewMetricsCollector(zap.NewNop()))

		// Assert
		assert.Error(suite.T(), err)
	})
}

func TestLocalStoreTestSuite(t *testing.T) {
	suite.Run(t, new(LocalStoreTestSuite))
}
