package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Davincible/gemini-gateway/internal/admin"
	"github.com/Davincible/gemini-gateway/internal/cache"
	"github.com/Davincible/gemini-gateway/internal/config"
	"github.com/Davincible/gemini-gateway/internal/handlers"
	"github.com/Davincible/gemini-gateway/internal/middleware"
	"github.com/Davincible/gemini-gateway/internal/queue"
	"github.com/Davincible/gemini-gateway/internal/stats"
)

// Server owns the gateway's HTTP listener and its long-lived components:
// the response cache and the dispatch queue, both of which run background
// goroutines for the lifetime of the process.
type Server struct {
	config *config.Manager
	cache  *cache.Cache
	queue  *queue.Queue
	stats  *stats.Stats
	admin  *admin.Handler
	logger *slog.Logger
	server *http.Server
}

func New(configManager *config.Manager, logger *slog.Logger) *Server {
	return &Server{
		config: configManager,
		cache:  cache.New(cache.DefaultTTL),
		queue:  queue.New(queue.DefaultConcurrency, queue.DefaultMinInterval),
		stats:  stats.New(),
		admin:  admin.New(configManager, logger),
		logger: logger,
	}
}

func (s *Server) Start() error {
	cfg := s.config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	mux := s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("starting gateway", "address", addr)

	go s.logStatsPeriodically()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	s.logger.Info("gateway is shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.cache.Close()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("gateway exited")

	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	s.cache.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

func (s *Server) logStatsPeriodically() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		snap := s.stats.Snapshot()
		cacheStats := s.cache.Stats()
		queueState := s.queue.State()

		s.logger.Info("gateway stats",
			"total_requests", snap.Total,
			"errors", snap.Errors,
			"by_label", snap.ByLabel,
			"mean_input_tokens", snap.MeanInputTokens,
			"cache_hit_rate", cacheStats.HitRate,
			"cache_size", cacheStats.Size,
			"queue_running", queueState.Running,
			"queue_waiting", queueState.Waiting,
		)
	}
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	proxyHandler := handlers.NewProxyHandler(s.config, s.cache, s.queue, s.stats, s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)

	middlewareSet := middleware.NewMiddlewareSet(s.config, s.logger)

	mux.Handle("/health", middlewareSet.PublicChain().Handler(healthHandler))
	mux.Handle("/v1/messages", middlewareSet.DefaultChain().Handler(proxyHandler))

	publicChain := middlewareSet.PublicChain()
	mux.Handle("/api/login", publicChain.Handler(http.HandlerFunc(s.admin.Login)))
	mux.Handle("/api/config", publicChain.Handler(http.HandlerFunc(s.handleConfig)))
	mux.Handle("/api/test-connection", publicChain.Handler(http.HandlerFunc(s.admin.TestConnection)))
	mux.Handle("/api/generate-key", publicChain.Handler(http.HandlerFunc(s.admin.GenerateKey)))
	mux.Handle("/api/change-password", publicChain.Handler(http.HandlerFunc(s.admin.ChangePassword)))
	mux.Handle("/api/stats", publicChain.Handler(http.HandlerFunc(s.handleStats)))

	return mux
}

// handleConfig dispatches GET/PUT to the admin handler's respective
// methods; both already enforce session auth internally.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.admin.GetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		s.admin.PutConfig(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.admin.RequireSession(w, r) {
		return
	}

	snap := s.stats.Snapshot()
	cacheStats := s.cache.Stats()
	queueState := s.queue.State()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"requests": snap,
		"cache":    cacheStats,
		"queue":    queueState,
	})
}
