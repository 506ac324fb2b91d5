// Package testutils provides custom assertions and testing utilities
package testutils

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/cookbookhq/backend/internal/domain/recipe"
	"github.com/cookbookhq/backend/internal/ports/outbound"
	"github.com/cookbookhq/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RecipeAssertions provides recipe-specific assertion methods
type RecipeAssertions struct {
	t *testing.T
}

// NewRecipeAssertions creates a new recipe assertions helper
func NewRecipeAssertions(t *testing.T) *RecipeAssertions {
	return &RecipeAssertions{t: t}
}

// ValidRecipe asserts that a record passes structural validation
func (ra *RecipeAssertions) ValidRecipe(r *recipe.Recipe, msgAndArgs ...interface{}) {
	require.NotNil(ra.t, r, "Recipe should not be nil")
	assert.True(ra.t, r.IsRecipe, "Recipe should be marked is_recipe")
	assert.NotEmpty(ra.t, r.Metadata.Title, "Recipe should have a title")
	assert.Empty(ra.t, r.Validate(), msgAndArgs...)
}

// RoundTrips asserts that serialize, parse, serialize is byte stable
func (ra *RecipeAssertions) RoundTrips(r *recipe.Recipe, msgAndArgs ...interface{}) {
	first, err := recipe.Serialize(r)
	require.NoError(ra.t, err, "Recipe should serialize")

	parsed, err := recipe.Parse(first)
	require.NoError(ra.t, err, "Serialized recipe should parse back")

	second, err := recipe.Serialize(parsed)
	require.NoError(ra.t, err, "Reparsed recipe should serialize")

	assert.Equal(ra.t, first, second, msgAndArgs...)
}

// HasViolation asserts that err is a validation failure naming path
func (ra *RecipeAssertions) HasViolation(err error, path string, msgAndArgs ...interface{}) {
	require.Error(ra.t, err, "Expected a validation failure")

	var violations recipe.Violations
	require.ErrorAs(ra.t, err, &violations, "Error should carry violations")

	for _, v := range violations {
		if v.Path == path || strings.HasPrefix(v.Path, path+".") || strings.HasPrefix(v.Path, path+"[") {
			return
		}
	}
	assert.Fail(ra.t, "Missing expected violation", append([]interface{}{
		"no violation for path " + path + " in: " + violations.Error(),
	}, msgAndArgs...)...)
}

// CachedEntryParses asserts that a cache entry holds parseable recipes and
// returns them.
func (ra *RecipeAssertions) CachedEntryParses(entry *outbound.CachedEntry, msgAndArgs ...interface{}) []*recipe.Recipe {
	require.NotNil(ra.t, entry, "Cache entry should not be nil")
	require.True(ra.t, entry.Valid, "Cache entry should hold a valid extraction")

	recipes, err := recipe.ParseAll(entry.RecipeYAML)
	require.NoError(ra.t, err, append([]interface{}{"Cached YAML should parse"}, msgAndArgs...)...)
	return recipes
}

// ErrorAssertions provides application error assertion methods
type ErrorAssertions struct {
	t *testing.T
}

// NewErrorAssertions creates a new error assertions helper
func NewErrorAssertions(t *testing.T) *ErrorAssertions {
	return &ErrorAssertions{t: t}
}

// Code asserts the application error code
func (ea *ErrorAssertions) Code(err error, expected errors.ErrorCode, msgAndArgs ...interface{}) {
	require.Error(ea.t, err, "Expected an error")
	assert.Equal(ea.t, expected, errors.GetCode(err), msgAndArgs...)
}

// HTTPStatus asserts the status code the error maps to at the HTTP boundary
func (ea *ErrorAssertions) HTTPStatus(err error, expected int, msgAndArgs ...interface{}) {
	require.Error(ea.t, err, "Expected an error")

	var appErr *errors.AppError
	require.ErrorAs(ea.t, err, &appErr, "Error should be an application error")
	assert.Equal(ea.t, expected, appErr.StatusCode(), msgAndArgs...)
}

// HTTPAssertions provides HTTP-specific assertion methods
type HTTPAssertions struct {
	t *testing.T
}

// NewHTTPAssertions creates a new HTTP assertions helper
func NewHTTPAssertions(t *testing.T) *HTTPAssertions {
	return &HTTPAssertions{t: t}
}

// StatusCode asserts the HTTP status code
func (ha *HTTPAssertions) StatusCode(resp *http.Response, expectedCode int, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")
	assert.Equal(ha.t, expectedCode, resp.StatusCode, msgAndArgs...)
}

// DecodeJSON asserts that the response is JSON and unmarshals it into target
func (ha *HTTPAssertions) DecodeJSON(resp *http.Response, target interface{}, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")

	contentType := resp.Header.Get("Content-Type")
	assert.True(ha.t, strings.Contains(contentType, "application/json"),
		"Response should have JSON content type, got: %s", contentType)

	decoder := json.NewDecoder(resp.Body)
	err := decoder.Decode(target)
	require.NoError(ha.t, err, append([]interface{}{"Response should be valid JSON"}, msgAndArgs...)...)
}

// errorEnvelope mirrors the error body every endpoint emits.
type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

// ErrorEnvelope asserts the standard error body and returns its request ID
func (ha *HTTPAssertions) ErrorEnvelope(resp *http.Response, expectedCode errors.ErrorCode, msgAndArgs ...interface{}) string {
	var env errorEnvelope
	ha.DecodeJSON(resp, &env)

	assert.False(ha.t, env.Success, "Error envelope should report success=false")
	assert.Equal(ha.t, string(expectedCode), env.Error.Code, msgAndArgs...)
	assert.NotEmpty(ha.t, env.RequestID, "Error envelope should carry a request ID")
	return env.RequestID
}

// Header asserts that a header exists with the expected value
func (ha *HTTPAssertions) Header(resp *http.Response, headerName, expectedValue string, msgAndArgs ...interface{}) {
	require.NotNil(ha.t, resp, "Response should not be nil")
	assert.Equal(ha.t, expectedValue, resp.Header.Get(headerName), msgAndArgs...)
}
