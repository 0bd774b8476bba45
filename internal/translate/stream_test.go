package translate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamState_TextDeltaSequence(t *testing.T) {
	s := NewStreamState()

	events := s.ProcessChunk([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hel"}]}}]}`))
	out := string(events)

	assert.Contains(t, out, "event: message_start")
	assert.Contains(t, out, "event: content_block_start")
	assert.Contains(t, out, "event: content_block_delta")
	assert.Equal(t, PhaseStreaming, s.Phase)

	events2 := s.ProcessChunk([]byte(`{"candidates":[{"content":{"parts":[{"text":"lo"}]}}]}`))
	out2 := string(events2)

	assert.NotContains(t, out2, "event: message_start", "message_start must only be emitted once")
	assert.NotContains(t, out2, "event: content_block_start", "content_block_start must only be emitted once per block")
}

func TestStreamState_MalformedChunkDroppedSilently(t *testing.T) {
	s := NewStreamState()

	events := s.ProcessChunk([]byte(`not json`))

	assert.Nil(t, events)
	assert.Equal(t, PhaseInit, s.Phase)
}

func TestStreamState_ToolUseEmitsThreeEvents(t *testing.T) {
	s := NewStreamState()

	events := string(s.ProcessChunk([]byte(`{"candidates":[{"content":{"parts":[{"functionCall":{"name":"f","args":{"a":1}}}]}}]}`)))

	assert.Equal(t, 1, strings.Count(events, "event: content_block_start"))
	assert.Equal(t, 1, strings.Count(events, "event: content_block_delta"))
	assert.Equal(t, 1, strings.Count(events, "event: content_block_stop"))
	assert.Contains(t, events, "input_json_delta")
}

func TestStreamState_FinalizeClosesOpenBlocksAndStops(t *testing.T) {
	s := NewStreamState()
	s.ProcessChunk([]byte(`{"candidates":[{"content":{"parts":[{"text":"hi"}]},"finishReason":"STOP"}],"usageMetadata":{"candidatesTokenCount":2}}`))

	out := string(s.Finalize())

	assert.Contains(t, out, "event: content_block_stop")
	assert.Contains(t, out, "event: message_delta")
	assert.Contains(t, out, "\"stop_reason\":\"end_turn\"")
	assert.Contains(t, out, "event: message_stop")
	assert.Equal(t, PhaseDone, s.Phase)
}

func TestStreamState_ErrorEventSetsErrorPhase(t *testing.T) {
	s := NewStreamState()

	out := string(s.ErrorEvent("stream_timeout", "idle too long"))

	assert.Contains(t, out, "stream_timeout")
	assert.Contains(t, out, "idle too long")
	assert.Equal(t, PhaseError, s.Phase)
}
