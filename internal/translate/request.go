package translate

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrTranslation is wrapped by request-translation failures so callers can
// recognise the "translation_error" kind without string matching.
var ErrTranslation = errors.New("translation_error")

// permissiveSafetySettings is a fixed, permissive safety vector attached to
// every outbound request; content filtering beyond this is out of scope.
func permissiveSafetySettings() []any {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}

	settings := make([]any, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, map[string]any{
			"category":  c,
			"threshold": "BLOCK_NONE",
		})
	}

	return settings
}

// TranslateRequest converts a Dialect A request body into a Dialect G
// request body. It never mutates body. logger receives a critical line
// whenever a tool_result cannot be resolved to its originating tool name.
func TranslateRequest(logger *slog.Logger, body map[string]any) (map[string]any, error) {
	messagesRaw, ok := body["messages"].([]any)
	if !ok || len(messagesRaw) == 0 {
		return nil, fmt.Errorf("%w: messages is required", ErrTranslation)
	}

	anyRole := false

	for _, m := range messagesRaw {
		if mm, ok := m.(map[string]any); ok {
			if _, hasRole := mm["role"]; hasRole {
				anyRole = true
				break
			}
		}
	}

	if !anyRole {
		return nil, fmt.Errorf("%w: every message lacks a role", ErrTranslation)
	}

	contents, hasFunctionResponse := convertMessages(logger, messagesRaw)

	out := map[string]any{
		"contents": contents,
	}

	if sysText := systemText(body["system"]); sysText != "" {
		out["system_instruction"] = map[string]any{
			"parts": []any{map[string]any{"text": sysText}},
		}
	}

	out["generationConfig"] = buildGenerationConfig(body)

	if toolConfig := buildToolConfig(body["tool_choice"]); toolConfig != nil {
		out["tool_config"] = toolConfig
	}

	// Upstream forbids both a tool catalog and a function-response part in
	// the same request.
	if !hasFunctionResponse {
		if tools, ok := body["tools"].([]any); ok && len(tools) > 0 {
			if decls := convertTools(tools); len(decls) > 0 {
				out["tools"] = []any{map[string]any{"functionDeclarations": decls}}
			}
		}
	}

	out["safetySettings"] = permissiveSafetySettings()

	return out, nil
}

func systemText(system any) string {
	switch v := system.(type) {
	case string:
		return v
	case []any:
		text := ""

		for i, block := range v {
			if bm, ok := block.(map[string]any); ok {
				if t, ok := bm["text"].(string); ok {
					if i > 0 && text != "" {
						text += "\n\n"
					}

					text += t
				}
			}
		}

		return text
	default:
		return ""
	}
}

func buildGenerationConfig(body map[string]any) map[string]any {
	cfg := map[string]any{}

	maxTokens := 4096
	if mt, ok := body["max_tokens"].(float64); ok && mt >= 100 {
		maxTokens = int(mt)
	}

	cfg["maxOutputTokens"] = maxTokens

	if t, ok := body["temperature"].(float64); ok {
		cfg["temperature"] = t
	}

	if tp, ok := body["top_p"].(float64); ok {
		cfg["topP"] = tp
	}

	if tk, ok := body["top_k"].(float64); ok {
		cfg["topK"] = int(tk)
	}

	if ss, ok := body["stop_sequences"].([]any); ok && len(ss) > 0 {
		cfg["stopSequences"] = ss
	}

	if rf, ok := body["response_format"].(map[string]any); ok {
		if t, _ := rf["type"].(string); t == "json_object" || t == "json_schema" {
			cfg["responseMimeType"] = "application/json"

			if schema, ok := rf["schema"]; ok {
				cfg["responseJsonSchema"] = SanitizeSchema(schema)
			}
		}
	}

	return cfg
}

func buildToolConfig(toolChoice any) map[string]any {
	tc, ok := toolChoice.(map[string]any)
	if !ok {
		return nil
	}

	mode := "AUTO"

	switch t, _ := tc["type"].(string); t {
	case "any", "tool":
		mode = "ANY"
	case "none":
		mode = "NONE"
	case "auto", "":
		mode = "AUTO"
	}

	return map[string]any{
		"function_calling_config": map[string]any{
			"mode": mode,
		},
	}
}

func convertTools(tools []any) []any {
	decls := make([]any, 0, len(tools))

	for _, tool := range tools {
		toolMap, ok := tool.(map[string]any)
		if !ok {
			continue
		}

		decl := map[string]any{
			"name": toolMap["name"],
		}

		if description, ok := toolMap["description"]; ok {
			decl["description"] = description
		}

		if schema, ok := toolMap["input_schema"]; ok {
			decl["parameters"] = SanitizeSchema(schema)
		}

		decls = append(decls, decl)
	}

	return decls
}

// convertMessages merges consecutive same-role turns and returns the
// translated contents array plus whether any part is a function response.
func convertMessages(logger *slog.Logger, messages []any) ([]any, bool) {
	toolNameByID := map[string]string{}

	var contents []any

	hasFunctionResponse := false

	for _, m := range messages {
		mm, ok := m.(map[string]any)
		if !ok {
			continue
		}

		role, _ := mm["role"].(string)

		geminiRole := "user"
		if role == "assistant" {
			geminiRole = "model"
		}

		parts, fr := convertContent(logger, mm["content"], toolNameByID)
		if fr {
			hasFunctionResponse = true
		}

		if len(parts) == 0 {
			continue
		}

		if n := len(contents); n > 0 {
			if last, ok := contents[n-1].(map[string]any); ok && last["role"] == geminiRole {
				last["parts"] = append(last["parts"].([]any), parts...)
				continue
			}
		}

		contents = append(contents, map[string]any{
			"role":  geminiRole,
			"parts": parts,
		})
	}

	return contents, hasFunctionResponse
}

func convertContent(logger *slog.Logger, content any, toolNameByID map[string]string) ([]any, bool) {
	switch v := content.(type) {
	case string:
		return []any{map[string]any{"text": v}}, false
	case []any:
		var parts []any

		hasFR := false

		for _, block := range v {
			bm, ok := block.(map[string]any)
			if !ok {
				continue
			}

			part, fr := convertBlock(logger, bm, toolNameByID)
			if part != nil {
				parts = append(parts, part)
			}

			if fr {
				hasFR = true
			}
		}

		return parts, hasFR
	default:
		return nil, false
	}
}

func convertBlock(logger *slog.Logger, block map[string]any, toolNameByID map[string]string) (any, bool) {
	blockType, _ := block["type"].(string)

	switch blockType {
	case "text":
		if text, ok := block["text"].(string); ok {
			return map[string]any{"text": text}, false
		}
	case "image":
		if source, ok := block["source"].(map[string]any); ok {
			return map[string]any{
				"inlineData": map[string]any{
					"mimeType": source["media_type"],
					"data":     source["data"],
				},
			}, false
		}
	case "tool_use":
		id, _ := block["id"].(string)
		name, _ := block["name"].(string)

		if id != "" {
			toolNameByID[id] = name
		}

		return map[string]any{
			"functionCall": map[string]any{
				"name": name,
				"args": block["input"],
			},
		}, false
	case "tool_result":
		toolUseID, _ := block["tool_use_id"].(string)

		name, found := toolNameByID[toolUseID]
		if !found {
			if logger != nil {
				logger.Error("tool_result references unresolved tool_use_id, falling back to raw id",
					slog.String("tool_use_id", toolUseID))
			}

			name = toolUseID
		}

		return map[string]any{
			"functionResponse": map[string]any{
				"name":     name,
				"response": buildFunctionResponse(block),
			},
		}, true
	}

	return nil, false
}

func buildFunctionResponse(block map[string]any) any {
	var resp any

	switch c := block["content"].(type) {
	case string:
		resp = map[string]any{"result": c}
	case []any:
		resp = map[string]any{"result": c}
	case map[string]any:
		resp = c
	case nil:
		resp = map[string]any{}
	default:
		resp = map[string]any{"result": fmt.Sprintf("%v", c)}
	}

	if isErr, _ := block["is_error"].(bool); isErr {
		// Copy so an object content passed through above is not mutated.
		m := map[string]any{}
		if orig, ok := resp.(map[string]any); ok {
			for k, v := range orig {
				m[k] = v
			}
		}

		m["error"] = true

		if msg, ok := block["content"].(string); ok {
			m["error_message"] = msg
		} else {
			m["error_message"] = fmt.Sprintf("%v", block["content"])
		}

		resp = m
	}

	return resp
}
