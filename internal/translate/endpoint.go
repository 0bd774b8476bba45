package translate

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildEndpoint resolves the upstream URL per spec.md §4.E:
// <baseURL>/models/<model>:<op>?key=<apiKey>[&alt=sse].
func BuildEndpoint(baseURL, model, apiKey string, streaming bool) string {
	op := "generateContent"
	if streaming {
		op = "streamGenerateContent"
	}

	u := fmt.Sprintf("%s/models/%s:%s?key=%s",
		strings.TrimRight(baseURL, "/"), model, op, url.QueryEscape(apiKey))

	if streaming {
		u += "&alt=sse"
	}

	return u
}

// ResolveModel returns the request's model field if present, else the
// configured default.
func ResolveModel(requested, defaultModel string) string {
	if requested != "" {
		return requested
	}

	return defaultModel
}
