// Package admin implements the Admin Surface (spec.md §4.J): single-admin
// login, config get/put, connectivity probe, key rotation and password
// change. Grounded on the teacher's config/session shape
// (internal/config/config.go) and on felipepmaragno-ai-gateway's
// internal/auth/rbac.go for bcrypt password hashing and bearer/session
// token conventions, simplified from its multi-user RBAC model down to a
// single admin.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Davincible/gemini-gateway/internal/config"
	"github.com/Davincible/gemini-gateway/internal/idutil"
	"github.com/Davincible/gemini-gateway/internal/translate"
)

// Handler wires the admin HTTP surface to a config.Manager and a session
// store. HTTPClient is overridable in tests.
type Handler struct {
	Config     *config.Manager
	Sessions   *SessionStore
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// New returns a Handler with a default 10s-timeout HTTP client for the
// connectivity probe.
func New(cfgMgr *config.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		Config:     cfgMgr,
		Sessions:   NewSessionStore(),
		Logger:     logger,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, translate.ErrorEnvelope{Error: translate.ErrorBody{Type: kind, Message: message}})
}

// RequireSession extracts and validates the x-session-token header,
// returning false (and having already written a 401) if invalid.
func (h *Handler) RequireSession(w http.ResponseWriter, r *http.Request) bool {
	token := r.Header.Get("x-session-token")
	if token == "" || !h.Sessions.Validate(token) {
		writeError(w, http.StatusUnauthorized, "authentication_error", "missing or invalid session token")
		return false
	}

	return true
}

// Login verifies the admin password and issues a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}

	cfg := h.Config.Get()

	ok, rehash := cfg.VerifyAdminPassword(req.Password)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication_error", "invalid password")
		return
	}

	if rehash {
		if err := cfg.SetAdminPassword(req.Password); err != nil {
			h.Logger.Error("failed to upgrade bootstrap admin password", slog.Any("error", err))
		} else if err := h.Config.Save(cfg); err != nil {
			h.Logger.Error("failed to persist upgraded admin password", slog.Any("error", err))
		}
	}

	token := h.Sessions.Create()
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// GetConfig returns the current configuration with the admin secret
// omitted.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	if !h.RequireSession(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, h.Config.Get().WithoutSecret())
}

// PutConfig merges a patch into the current configuration, validates it and
// persists it atomically.
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	if !h.RequireSession(w, r) {
		return
	}

	var patch struct {
		UpstreamBaseURL *string `json:"upstreamBaseURL"`
		UpstreamAPIKey  *string `json:"upstreamApiKey"`
		DefaultModel    *string `json:"defaultModel"`
		MaxBodyBytes    *int64  `json:"maxBodyBytes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}

	cfg := h.Config.Get()

	if patch.UpstreamBaseURL != nil {
		cfg.UpstreamBaseURL = *patch.UpstreamBaseURL
	}

	if patch.UpstreamAPIKey != nil {
		cfg.UpstreamAPIKey = *patch.UpstreamAPIKey
	}

	if patch.DefaultModel != nil {
		cfg.DefaultModel = *patch.DefaultModel
	}

	if patch.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *patch.MaxBodyBytes
	}

	if err := validateConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if err := h.Config.Save(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to persist configuration")
		return
	}

	writeJSON(w, http.StatusOK, cfg.WithoutSecret())
}

func validateConfig(cfg *config.Config) error {
	if cfg.UpstreamBaseURL == "" {
		return errors.New("upstreamBaseURL is required")
	}

	u, err := url.Parse(cfg.UpstreamBaseURL)
	if err != nil || u.Scheme != "https" {
		return errors.New("upstreamBaseURL must be an absolute https URL")
	}

	if cfg.DefaultModel == "" {
		return errors.New("defaultModel is required")
	}

	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = config.DefaultMaxBodyBytes
	}

	return nil
}

// TestConnection issues a single minimal generation against the default
// model and reports whether it succeeded.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	if !h.RequireSession(w, r) {
		return
	}

	cfg := h.Config.Get()

	result := map[string]any{"connected": false}

	probeBody := map[string]any{
		"contents": []any{
			map[string]any{"role": "user", "parts": []any{map[string]any{"text": "ping"}}},
		},
		"generationConfig": map[string]any{"maxOutputTokens": 1},
	}

	payload, _ := json.Marshal(probeBody)

	endpoint := translate.BuildEndpoint(cfg.UpstreamBaseURL, cfg.DefaultModel, cfg.UpstreamAPIKey, false)

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(string(payload)))
	if err != nil {
		result["error"] = "failed to build probe request"
		writeJSON(w, http.StatusOK, result)

		return
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		result["error"] = err.Error()
		writeJSON(w, http.StatusOK, result)

		return
	}
	defer resp.Body.Close()

	result["status"] = resp.StatusCode
	result["connected"] = resp.StatusCode < 400

	writeJSON(w, http.StatusOK, result)
}

// GenerateKey rotates the local API key and persists it.
func (h *Handler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	if !h.RequireSession(w, r) {
		return
	}

	cfg := h.Config.Get()
	cfg.LocalAPIKey = idutil.RandomHex(32)

	if err := h.Config.Save(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to persist new key")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"localApiKey": cfg.LocalAPIKey})
}

// ChangePassword verifies the current password, hashes and persists the
// new one, and clears every session.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if !h.RequireSession(w, r) {
		return
	}

	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "malformed request body")
		return
	}

	cfg := h.Config.Get()

	ok, _ := cfg.VerifyAdminPassword(req.CurrentPassword)
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication_error", "current password is incorrect")
		return
	}

	if req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "newPassword is required")
		return
	}

	if err := cfg.SetAdminPassword(req.NewPassword); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to hash new password")
		return
	}

	if err := h.Config.Save(cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", "failed to persist new password")
		return
	}

	h.Sessions.ClearAll()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
