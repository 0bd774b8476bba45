// Package classify labels inbound Dialect A requests so the Proxy
// Controller can decide whether to strip the tool catalog before
// forwarding, per spec.md §4.F.
package classify

import "strings"

// Label is a request classification tag.
type Label string

const (
	Title  Label = "TITLE"
	Topic  Label = "TOPIC"
	Warmup Label = "WARMUP"
	Tools  Label = "TOOLS"
	Normal Label = "NORMAL"
)

// StripsTools reports whether requests with this label should have their
// tool catalog removed before forwarding upstream.
func (l Label) StripsTools() bool {
	switch l {
	case Title, Topic, Warmup:
		return true
	default:
		return false
	}
}

var titleTriggers = []string{
	"please write a 5-10 word title",
	"summarize this coding conversation",
}

const topicTrigger = "analyze if this message indicates a new conversation topic"

const warmupMaxLen = 500

// Classify inspects the first user message's first text block and the tool
// count to assign a Label.
func Classify(firstUserText string, toolCount int) Label {
	lower := strings.ToLower(firstUserText)

	for _, trigger := range titleTriggers {
		if strings.Contains(lower, trigger) {
			return Title
		}
	}

	if strings.Contains(lower, topicTrigger) {
		return Topic
	}

	if isWarmup(lower) {
		return Warmup
	}

	if toolCount > 10 {
		return Tools
	}

	return Normal
}

func isWarmup(lowerText string) bool {
	if len(lowerText) >= warmupMaxLen {
		return false
	}

	return strings.Contains(lowerText, "i am claude") ||
		strings.Contains(lowerText, "i'm claude") ||
		strings.Contains(lowerText, "introduce yourself")
}

// FirstUserText extracts the first text block of the first user message
// from a decoded Dialect A request body.
func FirstUserText(body map[string]any) string {
	messages, ok := body["messages"].([]any)
	if !ok {
		return ""
	}

	for _, m := range messages {
		mm, ok := m.(map[string]any)
		if !ok {
			continue
		}

		if role, _ := mm["role"].(string); role != "user" {
			continue
		}

		switch content := mm["content"].(type) {
		case string:
			return content
		case []any:
			for _, block := range content {
				if bm, ok := block.(map[string]any); ok {
					if t, ok := bm["type"].(string); ok && t == "text" {
						if text, ok := bm["text"].(string); ok {
							return text
						}
					}
				}
			}
		}

		return ""
	}

	return ""
}

// ToolCount returns len(body["tools"]).
func ToolCount(body map[string]any) int {
	tools, ok := body["tools"].([]any)
	if !ok {
		return 0
	}

	return len(tools)
}
