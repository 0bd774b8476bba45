package translate

import (
	"encoding/json"
	"fmt"

	"github.com/Davincible/gemini-gateway/internal/idutil"
)

// StreamPhase is the Stream Translator's explicit state, per spec.md §9's
// design note to model the parser as one state machine rather than chained
// transform stages.
type StreamPhase int

const (
	PhaseInit StreamPhase = iota
	PhaseStreaming
	PhaseDone
	PhaseError
)

type streamBlock struct {
	kind      string // "text" or "tool_use"
	startSent bool
	stopSent  bool
}

// StreamState carries the Stream Translator's state across the chunks of a
// single response. It is not safe for concurrent use; one response owns one
// StreamState.
type StreamState struct {
	Phase        StreamPhase
	MessageID    string
	Model        string
	StopReason   string
	OutputTokens int

	blocks   map[int]*streamBlock
	order    []int
	nextTool int
}

// NewStreamState returns a StreamState ready to process the first chunk of
// a response.
func NewStreamState() *StreamState {
	return &StreamState{
		Phase:    PhaseInit,
		blocks:   make(map[int]*streamBlock),
		nextTool: 1,
	}
}

// ProcessChunk advances the state machine with one decoded upstream JSON
// object and returns the Dialect A SSE bytes it produces. Malformed JSON is
// dropped silently, per spec.md §4.D.
func (s *StreamState) ProcessChunk(raw []byte) []byte {
	var chunk map[string]any
	if err := json.Unmarshal(raw, &chunk); err != nil {
		return nil
	}

	var events []byte

	if id, ok := chunk["responseId"].(string); ok && s.MessageID == "" {
		s.MessageID = id
	}

	if mv, ok := chunk["modelVersion"].(string); ok && s.Model == "" {
		s.Model = mv
	}

	if s.Phase == PhaseInit {
		events = append(events, formatSSEEvent("message_start", messageStartPayload(s.MessageID, s.Model))...)
		s.Phase = PhaseStreaming
	}

	if candidates, ok := chunk["candidates"].([]any); ok && len(candidates) > 0 {
		if cand, ok := candidates[0].(map[string]any); ok {
			if content, ok := cand["content"].(map[string]any); ok {
				if parts, ok := content["parts"].([]any); ok {
					events = append(events, s.handleParts(parts)...)
				}
			}

			if fr, ok := cand["finishReason"].(string); ok && fr != "" {
				s.StopReason = fr
			}
		}
	}

	if um, ok := chunk["usageMetadata"].(map[string]any); ok {
		if out, ok := um["candidatesTokenCount"].(float64); ok {
			s.OutputTokens = int(out)
		}
	}

	return events
}

func (s *StreamState) handleParts(parts []any) []byte {
	var events []byte

	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}

		if text, ok := part["text"].(string); ok && text != "" {
			events = append(events, s.emitText(text)...)
		}

		if fc, ok := part["functionCall"].(map[string]any); ok {
			events = append(events, s.emitToolUse(fc)...)
		}
	}

	return events
}

func (s *StreamState) emitText(text string) []byte {
	const textIndex = 0

	block, exists := s.blocks[textIndex]
	if !exists {
		block = &streamBlock{kind: "text"}
		s.blocks[textIndex] = block
		s.order = append(s.order, textIndex)
	}

	var events []byte

	if !block.startSent {
		events = append(events, formatSSEEvent("content_block_start", map[string]any{
			"type":  "content_block_start",
			"index": textIndex,
			"content_block": map[string]any{
				"type": "text",
				"text": "",
			},
		})...)
		block.startSent = true
	}

	events = append(events, formatSSEEvent("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": textIndex,
		"delta": map[string]any{
			"type": "text_delta",
			"text": text,
		},
	})...)

	return events
}

// emitToolUse models a function-call part as three events, per spec.md
// §4.D: start, one input_json_delta carrying the full arguments, stop.
func (s *StreamState) emitToolUse(fc map[string]any) []byte {
	index := s.nextTool
	s.nextTool++

	name, _ := fc["name"].(string)
	args := fc["args"]

	block := &streamBlock{kind: "tool_use"}
	s.blocks[index] = block
	s.order = append(s.order, index)

	toolID := idutil.ToolUseID()

	events := formatSSEEvent("content_block_start", map[string]any{
		"type":  "content_block_start",
		"index": index,
		"content_block": map[string]any{
			"type":  "tool_use",
			"id":    toolID,
			"name":  name,
			"input": map[string]any{},
		},
	})
	block.startSent = true

	argsJSON, err := json.Marshal(args)
	if err != nil {
		argsJSON = []byte("{}")
	}

	events = append(events, formatSSEEvent("content_block_delta", map[string]any{
		"type":  "content_block_delta",
		"index": index,
		"delta": map[string]any{
			"type":         "input_json_delta",
			"partial_json": string(argsJSON),
		},
	})...)

	events = append(events, formatSSEEvent("content_block_stop", map[string]any{
		"type":  "content_block_stop",
		"index": index,
	})...)
	block.stopSent = true

	return events
}

// Finalize transitions STREAMING -> DONE on upstream end-of-stream, closing
// any still-open content block and emitting message_delta/message_stop.
func (s *StreamState) Finalize() []byte {
	var events []byte

	for _, idx := range s.order {
		block := s.blocks[idx]
		if block.startSent && !block.stopSent {
			events = append(events, formatSSEEvent("content_block_stop", map[string]any{
				"type":  "content_block_stop",
				"index": idx,
			})...)
			block.stopSent = true
		}
	}

	events = append(events, formatSSEEvent("message_delta", map[string]any{
		"type": "message_delta",
		"delta": map[string]any{
			"stop_reason":   mapFinishReason(s.StopReason),
			"stop_sequence": nil,
		},
		"usage": map[string]any{
			"output_tokens": s.OutputTokens,
		},
	})...)

	events = append(events, formatSSEEvent("message_stop", map[string]any{
		"type": "message_stop",
	})...)

	s.Phase = PhaseDone

	return events
}

// ErrorEvent builds a Dialect A "error" SSE frame for mid-stream failures
// (stream_error / stream_timeout) and marks the state ERROR.
func (s *StreamState) ErrorEvent(kind, message string) []byte {
	s.Phase = PhaseError

	return formatSSEEvent("error", map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    kind,
			"message": message,
		},
	})
}

func messageStartPayload(messageID, model string) map[string]any {
	return map[string]any{
		"type": "message_start",
		"message": map[string]any{
			"id":            messageID,
			"type":          "message",
			"role":          "assistant",
			"model":         model,
			"content":       []any{},
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage": map[string]any{
				"input_tokens":  0,
				"output_tokens": 0,
			},
		},
	}
}

func formatSSEEvent(eventType string, data map[string]any) []byte {
	payload, err := json.Marshal(data)
	if err != nil {
		return []byte("event: error\ndata: {\"error\":\"failed to marshal event\"}\n\n")
	}

	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload))
}
