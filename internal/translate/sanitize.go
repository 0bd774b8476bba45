package translate

// rejectedSchemaKeywords are JSON-Schema keywords the upstream does not accept.
// Every occurrence, at any nesting depth, is stripped by SanitizeSchema.
var rejectedSchemaKeywords = map[string]struct{}{
	"$schema":             {},
	"$id":                 {},
	"$ref":                {},
	"definitions":         {},
	"title":               {},
	"examples":            {},
	"default":             {},
	"readOnly":            {},
	"writeOnly":           {},
	"additionalProperties": {},
	"minimum":             {},
	"maximum":             {},
	"exclusiveMinimum":    {},
	"exclusiveMaximum":    {},
	"multipleOf":          {},
	"pattern":             {},
	"format":              {},
	"minLength":           {},
	"maxLength":           {},
	"minItems":            {},
	"maxItems":            {},
	"uniqueItems":         {},
	"minProperties":       {},
	"maxProperties":       {},
	"patternProperties":   {},
	"dependencies":        {},
	"contentMediaType":    {},
	"contentEncoding":     {},
	"const":               {},
	"allOf":               {},
	"anyOf":               {},
	"oneOf":               {},
	"not":                 {},
}

// SanitizeSchema recursively removes rejected JSON-Schema keywords from v,
// which is nominally a JSON-Schema fragment decoded via encoding/json (so
// objects are map[string]any and arrays are []any). It never mutates v and
// is total: any input shape is returned unchanged except for key removal
// and the pruning of "required" arrays done by pruneRequired.
func SanitizeSchema(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = SanitizeSchema(elem)
		}

		return out
	case map[string]any:
		out := make(map[string]any, len(val))

		for k, elem := range val {
			if _, rejected := rejectedSchemaKeywords[k]; rejected {
				continue
			}

			out[k] = SanitizeSchema(elem)
		}

		pruneRequired(out)

		return out
	default:
		return v
	}
}

// pruneRequired restricts a "required" array to names still present in
// "properties", dropping the key entirely if nothing survives.
func pruneRequired(obj map[string]any) {
	requiredRaw, ok := obj["required"].([]any)
	if !ok {
		return
	}

	properties, ok := obj["properties"].(map[string]any)
	if !ok {
		return
	}

	kept := make([]any, 0, len(requiredRaw))

	for _, name := range requiredRaw {
		if s, ok := name.(string); ok {
			if _, exists := properties[s]; exists {
				kept = append(kept, s)
			}
		}
	}

	if len(kept) == 0 {
		delete(obj, "required")
	} else {
		obj["required"] = kept
	}
}

// FindRejectedKeywords walks a sanitised value and reports any rejected
// keyword that survived. It is used by tests and diagnostics, never to
// reject requests.
func FindRejectedKeywords(v any) []string {
	var found []string
	walkRejected(v, &found)

	return found
}

func walkRejected(v any, found *[]string) {
	switch val := v.(type) {
	case []any:
		for _, elem := range val {
			walkRejected(elem, found)
		}
	case map[string]any:
		for k, elem := range val {
			if _, rejected := rejectedSchemaKeywords[k]; rejected {
				*found = append(*found, k)
			}

			walkRejected(elem, found)
		}
	}
}
