package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/engram/pkg/validator"
)

func TestRequiredString(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"non-empty value", "conversation", true},
		{"empty value", "", false},
		{"whitespace only", "   \t\n", false},
		{"value with surrounding whitespace", "  hello  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validator.RequiredString("name", tt.value)
			assert.Equal(t, tt.valid, rule.Check())
			assert.Equal(t, "name", rule.Error.Field)
			assert.Equal(t, "field is required", rule.Error.Message)
		})
	}
}

func TestMaxLenString(t *testing.T) {
	tests := []struct {
		name  string
		value string
		max   int
		valid bool
	}{
		{"under limit", "short", 10, true},
		{"exactly at limit", "exact", 5, true},
		{"over limit", "too long for this", 5, false},
		{"empty value", "", 5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validator.MaxLenString("name", tt.value, tt.max)
			assert.Equal(t, tt.valid, rule.Check())
		})
	}

	t.Run("error message includes limit", func(t *testing.T) {
		rule := validator.MaxLenString("name", "way too long", 3)
		assert.Equal(t, "must be at most 3 characters long", rule.Error.Message)
	})
}

func TestOneOfString(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"first option", "text", true},
		{"last option", "message", true},
		{"unknown option", "audio", false},
		{"case sensitive", "Text", false},
		{"empty value passes", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := validator.OneOfString("source", tt.value, "text", "json", "message")
			assert.Equal(t, tt.valid, rule.Check())
		})
	}

	t.Run("error message lists options", func(t *testing.T) {
		rule := validator.OneOfString("source", "audio", "text", "json", "message")
		assert.Equal(t, "must be one of: text, json, message", rule.Error.Message)
	})
}

func TestBetween(t *testing.T) {
	t.Run("int within range", func(t *testing.T) {
		assert.True(t, validator.Between("last_n", 10, 1, 100).Check())
	})

	t.Run("int at lower bound", func(t *testing.T) {
		assert.True(t, validator.Between("last_n", 1, 1, 100).Check())
	})

	t.Run("int at upper bound", func(t *testing.T) {
		assert.True(t, validator.Between("last_n", 100, 1, 100).Check())
	})

	t.Run("int below range", func(t *testing.T) {
		assert.False(t, validator.Between("last_n", 0, 1, 100).Check())
	})

	t.Run("int above range", func(t *testing.T) {
		assert.False(t, validator.Between("last_n", 101, 1, 100).Check())
	})

	t.Run("float within range", func(t *testing.T) {
		assert.True(t, validator.Between("temperature", 0.5, 0.0, 2.0).Check())
	})

	t.Run("error message includes bounds", func(t *testing.T) {
		rule := validator.Between("last_n", 0, 1, 100)
		assert.Equal(t, "must be between 1 and 100", rule.Error.Message)
	})
}
