package translate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Davincible/gemini-gateway/internal/idutil"
)

// ErrUpstream is wrapped when a translated Dialect G reply carries no
// candidate, per spec.md §4.C / §7's "upstream_error" kind.
var ErrUpstream = errors.New("upstream_error")

// finishReasonMapping covers exactly the finish reasons spec.md §4.C names;
// anything else maps to end_turn.
var finishReasonMapping = map[string]string{
	"STOP":       "end_turn",
	"MAX_TOKENS": "max_tokens",
	"SAFETY":     "stop_sequence",
	"RECITATION": "stop_sequence",
}

// TranslateResponse converts a synchronous Dialect G reply into a Dialect A
// assistant message, JSON-encoded.
func TranslateResponse(data []byte) ([]byte, error) {
	var g geminiResponse
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: malformed upstream body: %v", ErrUpstream, err)
	}

	if len(g.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates in upstream response", ErrUpstream)
	}

	cand := g.Candidates[0]

	resp := AnthropicResponse{
		ID:      idutil.MessageID(),
		Type:    "message",
		Role:    "assistant",
		Model:   g.ModelVersion,
		Content: convertCandidateContent(cand.Content),
	}

	reason := mapFinishReason(cand.FinishReason)
	resp.StopReason = &reason

	if g.UsageMetadata != nil {
		resp.Usage = &Usage{
			InputTokens:  g.UsageMetadata.PromptTokenCount,
			OutputTokens: g.UsageMetadata.CandidatesTokenCount,
		}
	}

	return json.Marshal(resp)
}

func convertCandidateContent(content *geminiContent) []AnthropicContentBlock {
	if content == nil {
		empty := ""
		return []AnthropicContentBlock{{Type: "text", Text: &empty}}
	}

	var blocks []AnthropicContentBlock

	for _, part := range content.Parts {
		switch {
		case part.Text != "":
			text := part.Text
			blocks = append(blocks, AnthropicContentBlock{Type: "text", Text: &text, Citations: nil})
		case part.FunctionCall != nil:
			blocks = append(blocks, AnthropicContentBlock{
				Type:  "tool_use",
				ID:    idutil.ToolUseID(),
				Name:  part.FunctionCall.Name,
				Input: part.FunctionCall.Args,
			})
		}
	}

	if len(blocks) == 0 {
		empty := ""
		blocks = append(blocks, AnthropicContentBlock{Type: "text", Text: &empty})
	}

	return blocks
}

func mapFinishReason(geminiReason string) string {
	if reason, ok := finishReasonMapping[geminiReason]; ok {
		return reason
	}

	return "end_turn"
}
