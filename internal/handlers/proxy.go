// Package handlers implements the gateway's HTTP surface: the Proxy
// Controller (spec.md §4.I) and the health endpoint. Grounded on the
// teacher's internal/handlers/proxy.go for the overall read-transform-
// dispatch-respond shape, response header copying, and SSE flushing, with
// the multi-provider transform/decompress machinery replaced by the
// single-dialect translate package and the queue/cache/classify
// components added.
package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/Davincible/gemini-gateway/internal/cache"
	"github.com/Davincible/gemini-gateway/internal/classify"
	"github.com/Davincible/gemini-gateway/internal/config"
	"github.com/Davincible/gemini-gateway/internal/middleware"
	"github.com/Davincible/gemini-gateway/internal/queue"
	"github.com/Davincible/gemini-gateway/internal/stats"
	"github.com/Davincible/gemini-gateway/internal/translate"
)

const (
	upstreamTimeout   = 60 * time.Second
	streamIdleTimeout = 30 * time.Second
	tiktokenEncoding  = "cl100k_base"
)

// ProxyHandler implements the full Dialect A -> Dialect G round trip:
// classify, check cache, admit through the dispatch queue, translate the
// request, call upstream, translate the response (or stream it) back.
type ProxyHandler struct {
	config     *config.Manager
	cache      *cache.Cache
	queue      *queue.Queue
	stats      *stats.Stats
	logger     *slog.Logger
	httpClient *http.Client
	// streamClient carries no overall Timeout: http.Client.Timeout bounds the
	// entire round trip including reading the response body, which would
	// sever any stream running longer than upstreamTimeout. Streaming relies
	// solely on the idle-timeout select loop in serveStreaming instead.
	streamClient *http.Client
}

func NewProxyHandler(cfgMgr *config.Manager, c *cache.Cache, q *queue.Queue, st *stats.Stats, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		config:       cfgMgr,
		cache:        c,
		queue:        q,
		stats:        st,
		logger:       logger,
		httpClient:   &http.Client{Timeout: upstreamTimeout},
		streamClient: &http.Client{},
	}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cfg := h.config.Get()
	requestID := middleware.RequestID(r.Context())
	logger := h.logger.With(slog.String("request_id", requestID))

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxBodyBytes
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "request body exceeds the configured size limit")

		return
	}

	var body map[string]any
	if err := json.Unmarshal(rawBody, &body); err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusBadRequest, "invalid_request_error", "malformed JSON body")

		return
	}

	label := classify.Classify(classify.FirstUserText(body), classify.ToolCount(body))
	if label.StripsTools() {
		delete(body, "tools")
		delete(body, "tool_choice")
	}

	h.stats.IncRequest(string(label))
	h.observeTokens(logger, rawBody)

	streaming, _ := body["stream"].(bool)

	if !streaming {
		h.serveNonStreaming(w, r, logger, cfg, body)
		return
	}

	h.serveStreaming(w, r, logger, cfg, body)
}

func (h *ProxyHandler) serveNonStreaming(w http.ResponseWriter, r *http.Request, logger *slog.Logger, cfg *config.Config, body map[string]any) {
	fingerprint := cache.Fingerprint(body)

	if cached, ok := h.cache.Get(fingerprint); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)

		return
	}

	release, err := h.queue.Acquire(r.Context())
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusServiceUnavailable, "overloaded_error", "request cancelled while waiting for dispatch slot")

		return
	}
	defer release()

	geminiReq, err := translate.TranslateRequest(logger, body)
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())

		return
	}

	payload, err := json.Marshal(geminiReq)
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusInternalServerError, "api_error", "failed to encode upstream request")

		return
	}

	model := translate.ResolveModel(stringField(body, "model"), cfg.DefaultModel)
	endpoint := translate.BuildEndpoint(cfg.UpstreamBaseURL, model, cfg.UpstreamAPIKey, false)

	ctx, cancel := context.WithTimeout(r.Context(), upstreamTimeout)
	defer cancel()

	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusInternalServerError, "api_error", "failed to build upstream request")

		return
	}

	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(upstreamReq)
	if err != nil {
		h.stats.IncError()

		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			h.writeError(w, http.StatusGatewayTimeout, "timeout_error", fmt.Sprintf("upstream request cancelled after %s", upstreamTimeout))
			return
		}

		h.writeError(w, http.StatusBadGateway, "api_error", fmt.Sprintf("upstream request failed: %v", err))

		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusBadGateway, "api_error", "failed to read upstream response")

		return
	}

	if resp.StatusCode >= 400 {
		h.stats.IncError()
		kind := upstreamErrorKind(resp.StatusCode)
		logger.Error("upstream returned an error", slog.Int("status", resp.StatusCode), slog.String("body", string(respBody)))
		h.writeError(w, http.StatusBadGateway, kind, fmt.Sprintf("upstream responded with status %d", resp.StatusCode))

		return
	}

	anthropicBody, err := translate.TranslateResponse(respBody)
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusBadGateway, "api_error", err.Error())

		return
	}

	h.cache.Set(fingerprint, anthropicBody)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(http.StatusOK)
	w.Write(anthropicBody)
}

func (h *ProxyHandler) serveStreaming(w http.ResponseWriter, r *http.Request, logger *slog.Logger, cfg *config.Config, body map[string]any) {
	release, err := h.queue.Acquire(r.Context())
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusServiceUnavailable, "overloaded_error", "request cancelled while waiting for dispatch slot")

		return
	}
	defer release()

	geminiReq, err := translate.TranslateRequest(logger, body)
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())

		return
	}

	payload, err := json.Marshal(geminiReq)
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusInternalServerError, "api_error", "failed to encode upstream request")

		return
	}

	model := translate.ResolveModel(stringField(body, "model"), cfg.DefaultModel)
	endpoint := translate.BuildEndpoint(cfg.UpstreamBaseURL, model, cfg.UpstreamAPIKey, true)

	upstreamReq, err := http.NewRequestWithContext(r.Context(), http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		h.stats.IncError()
		h.writeError(w, http.StatusInternalServerError, "api_error", "failed to build upstream request")

		return
	}

	upstreamReq.Header.Set("Content-Type", "application/json")

	resp, err := h.streamClient.Do(upstreamReq)
	if err != nil {
		h.stats.IncError()

		if errors.Is(err, context.DeadlineExceeded) {
			h.writeError(w, http.StatusGatewayTimeout, "timeout_error", fmt.Sprintf("upstream request cancelled after %s", upstreamTimeout))
			return
		}

		h.writeError(w, http.StatusBadGateway, "api_error", fmt.Sprintf("upstream request failed: %v", err))

		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		h.stats.IncError()
		kind := upstreamErrorKind(resp.StatusCode)
		logger.Error("upstream returned an error on stream open", slog.Int("status", resp.StatusCode), slog.String("body", string(respBody)))
		h.writeError(w, http.StatusBadGateway, kind, fmt.Sprintf("upstream responded with status %d", resp.StatusCode))

		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	state := translate.NewStreamState()
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines := make(chan string)

	go func() {
		defer close(lines)

		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			h.stats.IncError()
			return
		case line, ok := <-lines:
			if !ok {
				if scanErr := scanner.Err(); scanErr != nil {
					h.stats.IncError()
					w.Write(state.ErrorEvent("stream_error", fmt.Sprintf("upstream stream failed: %v", scanErr)))
				} else {
					w.Write(state.Finalize())
				}

				if flusher != nil {
					flusher.Flush()
				}

				return
			}

			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data: ") {
				continue
			}

			chunk := state.ProcessChunk([]byte(strings.TrimPrefix(line, "data: ")))
			if len(chunk) > 0 {
				w.Write(chunk)
				if flusher != nil {
					flusher.Flush()
				}
			}
		case <-time.After(streamIdleTimeout):
			h.stats.IncError()
			w.Write(state.ErrorEvent("stream_timeout", "no data received from upstream within the idle timeout"))

			if flusher != nil {
				flusher.Flush()
			}

			return
		}
	}
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

func upstreamErrorKind(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusForbidden:
		return "permission_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case http.StatusServiceUnavailable:
		return "overloaded_error"
	default:
		return "api_error"
	}
}

func (h *ProxyHandler) writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(translate.ErrorEnvelope{Error: translate.ErrorBody{Type: kind, Message: message}})
}

func (h *ProxyHandler) observeTokens(logger *slog.Logger, rawBody []byte) {
	tke, err := tiktoken.GetEncoding(tiktokenEncoding)
	if err != nil {
		logger.Debug("tiktoken encoding unavailable, skipping token observability", slog.Any("error", err))
		return
	}

	h.stats.ObserveInputTokens(len(tke.Encode(string(rawBody), nil, nil)))
}
