package extraction

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/cookbookhq/backend/internal/domain/recipe"
)

type DecodeTestSuite struct {
	suite.Suite
}

func (s *DecodeTestSuite) gzipBase64(payload []byte) string {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(payload)
	require.NoError(s.T(), err)
	require.NoError(s.T(), zw.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func (s *DecodeTestSuite) TestDecodeCompressed() {
	s.Run("RoundTrip_ShouldRecoverMarkup", func() {
		page := "<html><body><h1>Gazpacho</h1></body></html>"

		decoded, err := decodeCompressed(s.gzipBase64([]byte(page)))

		require.NoError(s.T(), err)
		assert.Equal(s.T(), page, decoded)
	})

	s.Run("CorruptBase64_ShouldError", func() {
		_, err := decodeCompressed("<html>this is literal markup</html>")

		require.Error(s.T(), err)
		assert.Contains(s.T(), err.Error(), "base64")
	})

	s.Run("TruncatedGzip_ShouldError", func() {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write([]byte("<html><body>a page long enough to truncate</body></html>"))
		require.NoError(s.T(), err)
		require.NoError(s.T(), zw.Close())
		truncated := base64.StdEncoding.EncodeToString(buf.Bytes()[:12])

		_, err = decodeCompressed(truncated)

		require.Error(s.T(), err)
		assert.Contains(s.T(), err.Error(), "gzip")
	})

	s.Run("NonUTF8Payload_ShouldError", func() {
		_, err := decodeCompressed(s.gzipBase64([]byte{0xff, 0xfe, 0x00, 0x01}))

		require.Error(s.T(), err)
		assert.Contains(s.T(), err.Error(), "UTF-8")
	})
}

func (s *DecodeTestSuite) TestCompressionModes() {
	assert.True(s.T(), ValidCompression(CompressionAuto))
	assert.True(s.T(), ValidCompression(CompressionNone))
	assert.False(s.T(), ValidCompression("gzip"))
	assert.False(s.T(), ValidCompression("br"))
}

func (s *DecodeTestSuite) TestSchemaCompatibility() {
	s.Run("SameMajor_ShouldBeCompatible", func() {
		r := testRecipe("Flatbread")
		r.SchemaVersion = "1.9.9"

		assert.True(s.T(), schemaCompatible([]*recipe.Recipe{r}))
	})

	s.Run("DifferentMajor_ShouldForceRebuild", func() {
		r := testRecipe("Flatbread")
		r.SchemaVersion = "2.0.0"

		assert.False(s.T(), schemaCompatible([]*recipe.Recipe{r}))
	})

	s.Run("UnparseableVersion_ShouldForceRebuild", func() {
		r := testRecipe("Flatbread")
		r.SchemaVersion = "not-a-version"

		assert.False(s.T(), schemaCompatible([]*recipe.Recipe{r}))
	})

	s.Run("AnyIncompatibleDocument_ShouldForceRebuild", func() {
		fresh := testRecipe("Flatbread")
		stale := testRecipe("Old Flatbread")
		stale.SchemaVersion = "0.4.0"

		assert.False(s.T(), schemaCompatible([]*recipe.Recipe{fresh, stale}))
	})
}

func TestDecode(t *testing.T) {
	suite.Run(t, new(DecodeTestSuite))
}
