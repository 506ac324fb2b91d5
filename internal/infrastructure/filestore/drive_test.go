package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/cookbookhq/backend/internal/infrastructure/config"
	"github.com/cookbookhq/backend/internal/infrastructure/monitoring"
)

const testClientConfig = `{
	"installed": {
		"client_id": "000000000000-test.apps.googleusercontent.com",
		"client_secret": "not-a-real-secret",
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token",
		"redirect_uris": ["urn:ietf:wg:oauth:2.0:oob"]
	}
}`

// DriveStoreTestSuite tests Drive store construction and query building
type DriveStoreTestSuite struct {
	suite.Suite
}

// TestConstruction tests OAuth client configuration handling
func (suite *DriveStoreTestSuite) TestConstruction() {
	suite.Run("ValidClientConfig_ShouldConstruct", func() {
		// Act
		store, err := NewDriveStore(config.FileStoreConfig{
			Provider:        "drive",
			CredentialsJSON: testClientConfig,
		}, nil, nil, zap.NewNop(), monitoring.NewMetricsCollector(zap.NewNop()))

		// Assert
		require.NoError(suite.T(), err)
		assert.NotNil(suite.T(), store)
	})

	suite.Run("MissingCredentials_ShouldError", func() {
		// Act
		_, err := NewDriveStore(config.FileStoreConfig{Provider: "drive"}, nil, nil, zap.NewNop(), monitoring.NewMetricsCollector(zap.NewNop()))

		// Assert
		require.Error(suite.T(), err)
		assert.Contains(suite.T(), err.Error(), "credentials_json")
	})

	suite.Run("MalformedClientConfig_ShouldError", func() {
		// Act
		_, err := NewDriveStore(config.FileStoreConfig{
			Provider:        "drive",
			CredentialsJSON: "{not json",
		}, nil, nil, zap.NewNop(), monitoring.NewMetricsCollector(zap.NewNop()))

		// Assert
		assert.Error(suite.T(), err)
	})
}

// TestQueryEscaping tests Drive query literal escaping
func (suite *DriveStoreTestSuite) TestQueryEscaping() {
	suite.Run("Quotes_ShouldBeEscaped", func() {
		assert.Equal(suite.T(), `mom\'s cookies`, escapeQuery(`mom's cookies`))
	})

	suite.Run("Backslashes_ShouldBeEscapedFirst", func() {
		assert.Equal(suite.T(), `a\\\'b`, escapeQuery(`a\'b`))
	})

	suite.Run("PlainName_ShouldPassThrough", func() {
		assert.Equal(suite.T(), "shakshuka.yaml", escapeQuery("shakshuka.yaml"))
	})
}

func TestDriveStoreTestSuite(t *testing.T) {
	suite.Run(t, new(DriveStoreTestSuite))
}
