package translate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildEndpoint_NonStreaming(t *testing.T) {
	u := BuildEndpoint("https://generativelanguage.googleapis.com/v1beta", "gemini-1.5-pro", "k", false)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-pro:generateContent?key=k", u)
}

func TestBuildEndpoint_Streaming(t *testing.T) {
	u := BuildEndpoint("https://generativelanguage.googleapis.com/v1beta/", "gemini-1.5-pro", "k", true)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-pro:streamGenerateContent?key=k&alt=sse", u)
}

func TestResolveModel(t *testing.T) {
	assert.Equal(t, "requested", ResolveModel("requested", "default"))
	assert.Equal(t, "default", ResolveModel("", "default"))
}
