package translate

import (
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func decodeBody(t *testing.T, raw string) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &body))

	return body
}

func TestTranslateRequest_RejectsMissingMessages(t *testing.T) {
	_, err := TranslateRequest(testLogger(), map[string]any{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranslation)
}

func TestTranslateRequest_BasicTextMessage(t *testing.T) {
	body := decodeBody(t, `{
		"messages": [{"role": "user", "content": "hello"}],
		"system": "be nice",
		"max_tokens": 512
	}`)

	out, err := TranslateRequest(testLogger(), body)
	require.NoError(t, err)

	contents := out["contents"].([]any)
	require.Len(t, contents, 1)

	first := contents[0].(map[string]any)
	assert.Equal(t, "user", first["role"])

	sysInstr := out["system_instruction"].(map[string]any)
	parts := sysInstr["parts"].([]any)
	assert.Equal(t, "be nice", parts[0].(map[string]any)["text"])

	genCfg := out["generationConfig"].(map[string]any)
	assert.Equal(t, 512, genCfg["maxOutputTokens"])

	safety := out["safetySettings"].([]any)
	assert.Len(t, safety, 4)

	for _, s := range safety {
		assert.Equal(t, "BLOCK_NONE", s.(map[string]any)["threshold"])
	}
}

func TestTranslateRequest_MergesConsecutiveSameRoleTurns(t *testing.T) {
	body := decodeBody(t, `{
		"messages": [
			{"role": "user", "content": "first"},
			{"role": "user", "content": "second"}
		]
	}`)

	out, err := TranslateRequest(testLogger(), body)
	require.NoError(t, err)

	contents := out["contents"].([]any)
	require.Len(t, contents, 1, "consecutive same-role turns must merge into one content entry")

	parts := contents[0].(map[string]any)["parts"].([]any)
	assert.Len(t, parts, 2)
}

func TestTranslateRequest_ResolvesToolUseIDToName(t *testing.T) {
	body := decodeBody(t, `{
		"messages": [
			{"role": "user", "content": "what's the weather"},
			{"role": "assistant", "content": [
				{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "nyc"}}
			]},
			{"role": "user", "content": [
				{"type": "tool_result", "tool_use_id": "toolu_1", "content": "sunny"}
			]}
		]
	}`)

	out, err := TranslateRequest(testLogger(), body)
	require.NoError(t, err)

	contents := out["contents"].([]any)
	last := contents[len(contents)-1].(map[string]any)
	parts := last["parts"].([]any)
	fr := parts[0].(map[string]any)["functionResponse"].(map[string]any)

	assert.Equal(t, "get_weather", fr["name"], "tool_result must resolve to the originating tool's name, not the raw tool_use_id")
}

func TestTranslateRequest_ToolsOmittedWhenFunctionResponsePresent(t *testing.T) {
	body := decodeBody(t, `{
		"messages": [
			{"role": "assistant", "content": [{"type": "tool_use", "id": "t1", "name": "f", "input": {}}]},
			{"role": "user", "content": [{"type": "tool_result", "tool_use_id": "t1", "content": "ok"}]}
		],
		"tools": [{"name": "f", "description": "d", "input_schema": {"type": "object"}}]
	}`)

	out, err := TranslateRequest(testLogger(), body)
	require.NoError(t, err)

	assert.NotContains(t, out, "tools")
}

func TestTranslateRequest_SanitizesToolInputSchema(t *testing.T) {
	body := decodeBody(t, `{
		"messages": [{"role": "user", "content": "hi"}],
		"tools": [{"name": "f", "input_schema": {"type": "object", "title": "drop me"}}]
	}`)

	out, err := TranslateRequest(testLogger(), body)
	require.NoError(t, err)

	tools := out["tools"].([]any)
	decls := tools[0].(map[string]any)["functionDeclarations"].([]any)
	params := decls[0].(map[string]any)["parameters"].(map[string]any)

	assert.NotContains(t, params, "title")
}

func TestBuildFunctionResponse_ErrorCoercion(t *testing.T) {
	block := map[string]any{"content": "boom", "is_error": true}

	resp := buildFunctionResponse(block).(map[string]any)

	assert.Equal(t, true, resp["error"])
	assert.Equal(t, "boom", resp["error_message"])
}
