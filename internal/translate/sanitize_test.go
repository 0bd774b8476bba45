package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSchema_StripsRejectedKeywords(t *testing.T) {
	raw := `{
		"type": "object",
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title": "A widget",
		"properties": {
			"name": {"type": "string", "minLength": 1, "pattern": "^[a-z]+$"},
			"count": {"type": "integer", "minimum": 0, "maximum": 10}
		},
		"required": ["name", "count", "ghost"],
		"additionalProperties": false
	}`

	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &schema))

	out := SanitizeSchema(schema).(map[string]any)

	assert.Empty(t, FindRejectedKeywords(out))
	assert.NotContains(t, out, "additionalProperties")
	assert.NotContains(t, out, "$schema")
	assert.NotContains(t, out, "title")

	props := out["properties"].(map[string]any)
	name := props["name"].(map[string]any)
	assert.NotContains(t, name, "minLength")
	assert.NotContains(t, name, "pattern")

	required := out["required"].([]any)
	assert.ElementsMatch(t, []any{"name", "count"}, required, "ghost must be pruned since it has no matching property")
}

func TestSanitizeSchema_DropsRequiredEntirelyWhenEmpty(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{"a": map[string]any{"type": "string"}},
		"required":   []any{"ghost"},
	}

	out := SanitizeSchema(schema).(map[string]any)

	assert.NotContains(t, out, "required")
}

func TestSanitizeSchema_DoesNotMutateInput(t *testing.T) {
	schema := map[string]any{
		"title": "keep me out of the output",
		"properties": map[string]any{
			"x": map[string]any{"type": "string"},
		},
	}

	_ = SanitizeSchema(schema)

	assert.Equal(t, "keep me out of the output", schema["title"], "SanitizeSchema must not mutate its input")
}

func TestSanitizeSchema_RecursesThroughArrays(t *testing.T) {
	schema := []any{
		map[string]any{"title": "one"},
		map[string]any{"title": "two"},
	}

	out := SanitizeSchema(schema).([]any)

	for _, elem := range out {
		assert.NotContains(t, elem.(map[string]any), "title")
	}
}
