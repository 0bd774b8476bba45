package admin

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/gemini-gateway/internal/config"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	cfgMgr := config.NewManager(t.TempDir())
	_, err := cfgMgr.LoadOrInit(config.Bootstrap{
		AdminPassword:   "bootstrap-pw",
		UpstreamBaseURL: "https://generativelanguage.googleapis.com/v1beta",
		UpstreamAPIKey:  "k",
		DefaultModel:    "gemini-1.5-pro",
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	return New(cfgMgr, logger)
}

func login(t *testing.T, h *Handler, password string) (token string, status int) {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"password": password})
	req := httptest.NewRequest("POST", "/api/login", bytes.NewReader(body))
	rr := httptest.NewRecorder()

	h.Login(rr, req)

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)

	return resp["token"], rr.Code
}

func TestLogin_BootstrapPlaintextThenRehash(t *testing.T) {
	h := newTestHandler(t)

	token, status := login(t, h, "bootstrap-pw")
	require.Equal(t, 200, status)
	assert.NotEmpty(t, token)

	cfg := h.Config.Get()
	assert.True(t, cfg.AdminIsHashed, "first successful login must upgrade the bootstrap plaintext password to a bcrypt hash")
}

func TestLogin_WrongPasswordRejected(t *testing.T) {
	h := newTestHandler(t)

	_, status := login(t, h, "wrong")
	assert.Equal(t, 401, status)
}

func TestChangePassword_InvalidatesExistingSessions(t *testing.T) {
	h := newTestHandler(t)

	token, _ := login(t, h, "bootstrap-pw")
	assert.True(t, h.Sessions.Validate(token))

	body, _ := json.Marshal(map[string]string{"currentPassword": "bootstrap-pw", "newPassword": "new-password"})
	req := httptest.NewRequest("POST", "/api/change-password", bytes.NewReader(body))
	req.Header.Set("x-session-token", token)
	rr := httptest.NewRecorder()

	h.ChangePassword(rr, req)

	require.Equal(t, 200, rr.Code)
	assert.False(t, h.Sessions.Validate(token), "changing the password must invalidate all existing sessions")

	newToken, status := login(t, h, "new-password")
	assert.Equal(t, 200, status)
	assert.NotEmpty(t, newToken)
}

func TestGetConfig_RequiresSession(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest("GET", "/api/config", nil)
	rr := httptest.NewRecorder()

	h.GetConfig(rr, req)

	assert.Equal(t, 401, rr.Code)
}

func TestGetConfig_OmitsAdminSecret(t *testing.T) {
	h := newTestHandler(t)

	token, _ := login(t, h, "bootstrap-pw")

	req := httptest.NewRequest("GET", "/api/config", nil)
	req.Header.Set("x-session-token", token)
	rr := httptest.NewRecorder()

	h.GetConfig(rr, req)

	var cfg map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cfg))
	assert.Empty(t, cfg["adminSecret"])
}

func TestPutConfig_RejectsNonHTTPSUpstream(t *testing.T) {
	h := newTestHandler(t)

	token, _ := login(t, h, "bootstrap-pw")

	body, _ := json.Marshal(map[string]string{"upstreamBaseURL": "http://insecure.example.com"})
	req := httptest.NewRequest("PUT", "/api/config", bytes.NewReader(body))
	req.Header.Set("x-session-token", token)
	rr := httptest.NewRecorder()

	h.PutConfig(rr, req)

	assert.Equal(t, 400, rr.Code)
}

func TestGenerateKey_RotatesLocalAPIKey(t *testing.T) {
	h := newTestHandler(t)

	token, _ := login(t, h, "bootstrap-pw")
	before := h.Config.Get().LocalAPIKey

	req := httptest.NewRequest("POST", "/api/generate-key", nil)
	req.Header.Set("x-session-token", token)
	rr := httptest.NewRecorder()

	h.GenerateKey(rr, req)

	require.Equal(t, 200, rr.Code)
	assert.NotEqual(t, before, h.Config.Get().LocalAPIKey)
}
