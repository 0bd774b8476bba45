package translate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateResponse_TextCandidate(t *testing.T) {
	raw := `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"text": "hi there"}]},
			"finishReason": "STOP"
		}],
		"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 3},
		"modelVersion": "gemini-1.5-pro"
	}`

	out, err := TranslateResponse([]byte(raw))
	require.NoError(t, err)

	var resp AnthropicResponse
	require.NoError(t, json.Unmarshal(out, &resp))

	assert.Equal(t, "message", resp.Type)
	assert.Equal(t, "assistant", resp.Role)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "text", resp.Content[0].Type)
	assert.Equal(t, "hi there", *resp.Content[0].Text)
	assert.Equal(t, "end_turn", *resp.StopReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)
}

func TestTranslateResponse_FunctionCallCandidate(t *testing.T) {
	raw := `{
		"candidates": [{
			"content": {"role": "model", "parts": [{"functionCall": {"name": "get_weather", "args": {"city": "nyc"}}}]},
			"finishReason": "STOP"
		}]
	}`

	out, err := TranslateResponse([]byte(raw))
	require.NoError(t, err)

	var resp AnthropicResponse
	require.NoError(t, json.Unmarshal(out, &resp))

	require.Len(t, resp.Content, 1)
	assert.Equal(t, "tool_use", resp.Content[0].Type)
	assert.Equal(t, "get_weather", resp.Content[0].Name)
	assert.NotEmpty(t, resp.Content[0].ID)
}

func TestTranslateResponse_NoCandidatesIsUpstreamError(t *testing.T) {
	_, err := TranslateResponse([]byte(`{"candidates": []}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestMapFinishReason(t *testing.T) {
	cases := map[string]string{
		"STOP":         "end_turn",
		"MAX_TOKENS":   "max_tokens",
		"SAFETY":       "stop_sequence",
		"RECITATION":   "stop_sequence",
		"UNSPECIFIED":  "end_turn",
		"":             "end_turn",
	}

	for in, want := range cases {
		assert.Equal(t, want, mapFinishReason(in), in)
	}
}
