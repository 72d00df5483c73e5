package binder_test

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/engram/pkg/binder"
)

func TestJSON(t *testing.T) {
	t.Parallel()
	type testStruct struct {
		Name    string `json:"name"`
		Content string `json:"episode_body"`
		GroupID string `json:"group_id"`
	}

	t.Run("valid JSON binding", func(t *testing.T) {
		t.Parallel()
		jsonData := `{"name":"chat","episode_body":"Jane prefers dark mode","group_id":"user-1"}`
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(jsonData))
		req.Header.Set("Content-Type", "application/json")

		var result testStruct
		err := binder.JSON(req, &result)

		require.NoError(t, err)
		assert.Equal(t, "chat", result.Name)
		assert.Equal(t, "Jane prefers dark mode", result.Content)
		assert.Equal(t, "user-1", result.GroupID)
	})

	t.Run("content type with charset", func(t *testing.T) {
		t.Parallel()
		jsonData := `{"name":"chat"}`
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(jsonData))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")

		var result testStruct
		err := binder.JSON(req, &result)

		require.NoError(t, err)
		assert.Equal(t, "chat", result.Name)
	})

	t.Run("missing content type", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"name":"chat"}`))

		var result testStruct
		err := binder.JSON(req, &result)

		require.Error(t, err)
		assert.True(t, errors.Is(err, binder.ErrMissingContentType))
		assert.Contains(t, err.Error(), "expected application/json")
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"name":"chat"}`))
		req.Header.Set("Content-Type", "text/plain")

		var result testStruct
		err := binder.JSON(req, &result)

		require.Error(t, err)
		assert.True(t, errors.Is(err, binder.ErrUnsupportedMediaType))
		assert.Contains(t, err.Error(), "got text/plain")
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(""))
		req.Header.Set("Content-Type", "application/json")

		var result testStruct
		err := binder.JSON(req, &result)

		require.Error(t, err)
		assert.True(t, errors.Is(err, binder.ErrFailedToParseJSON))
		assert.Contains(t, err.Error(), "empty body")
	})

	t.Run("invalid JSON syntax", func(t *testing.T) {
		t.Parallel()
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(`{"name":"chat"`))
		req.Header.Set("Content-Type", "application/json")

		var result testStruct
		err := binder.JSON(req, &result)

		require.Error(t, err)
		assert.True(t, errors.Is(err, binder.ErrFailedToParseJSON))
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		t.Parallel()
		jsonData := `{"name":"chat","bogus":true}`
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(jsonData))
		req.Header.Set("Content-Type", "application/json")

		var result testStruct
		err := binder.JSON(req, &result)

		require.Error(t, err)
		assert.True(t, errors.Is(err, binder.ErrFailedToParseJSON))
		assert.Contains(t, err.Error(), "bogus")
	})

	t.Run("trailing data rejected", func(t *testing.T) {
		t.Parallel()
		jsonData := `{"name":"chat"}{"name":"second"}`
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(jsonData))
		req.Header.Set("Content-Type", "application/json")

		var result testStruct
		err := binder.JSON(req, &result)

		require.Error(t, err)
		assert.True(t, errors.Is(err, binder.ErrFailedToParseJSON))
		assert.Contains(t, err.Error(), "unexpected data after JSON object")
	})

	t.Run("body over size limit rejected", func(t *testing.T) {
		t.Parallel()
		huge := `{"name":"` + strings.Repeat("x", binder.DefaultMaxJSONSize) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewBufferString(huge))
		req.Header.Set("Content-Type", "application/json")

		var result testStruct
		err := binder.JSON(req, &result)

		require.Error(t, err)
		assert.True(t, errors.Is(err, binder.ErrFailedToParseJSON))
		assert.Contains(t, err.Error(), "request body too large")
	})
}
