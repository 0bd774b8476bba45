// Package idutil generates the random identifiers used across the gateway:
// message/tool-call IDs, local API keys, and admin session tokens.
package idutil

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const alnum = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomAlnum returns n random alphanumeric characters.
func RandomAlnum(n int) string {
	buf := make([]byte, n)
	out := make([]byte, n)

	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("idutil: crypto/rand unavailable: %v", err))
	}

	for i, b := range buf {
		out[i] = alnum[int(b)%len(alnum)]
	}

	return string(out)
}

// RandomHex returns the hex encoding of n random bytes.
func RandomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("idutil: crypto/rand unavailable: %v", err))
	}

	return hex.EncodeToString(buf)
}

// MessageID returns a Dialect A assistant message identifier: "msg_" + 29 alnum chars.
func MessageID() string {
	return "msg_" + RandomAlnum(29)
}

// ToolUseID returns a Dialect A tool_use identifier: "toolu_" + 12 alnum chars.
func ToolUseID() string {
	return "toolu_" + RandomAlnum(12)
}
