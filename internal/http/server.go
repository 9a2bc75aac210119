// Package http exposes the finance operations and the live summary as a
// JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/middleware/ratelimit"
	"financecalc/internal/middleware/security"
	"financecalc/internal/middleware/trace"
	"financecalc/internal/services"
	"financecalc/internal/store"
)

// SummarySource yields the most recent summary, if one was computed yet.
type SummarySource interface {
	Latest() (core.Summary, bool)
}

// Deps are the collaborators of the server. Store is read for the CSV
// export; all writes go through Finance.
type Deps struct {
	Finance   *services.FinanceService
	Summaries SummarySource
	Store     store.Store
	Ping      func(ctx context.Context) error
	Logger    *log.Logger
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server

	finance   *services.FinanceService
	summaries SummarySource
	store     store.Store
	ping      func(ctx context.Context) error
	logger    *log.Logger
	limiter   *ratelimit.Limiter
	started   time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}
	ping := deps.Ping
	if ping == nil {
		ping = func(context.Context) error { return nil }
	}

	s := &Server{
		finance:   deps.Finance,
		summaries: deps.Summaries,
		store:     deps.Store,
		ping:      ping,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(deps.RateLimit),
		started:   time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	ips := security.NewClientIPResolver()
	tracer := trace.NewMiddleware(logger, ips.ClientIP)
	limit := s.limiter.Middleware(ips.ClientIP, ratelimit.Mutating, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, please try again later"})
	})

	var h http.Handler = mux
	h = limit(h)
	h = tracer.Middleware(h)
	h = security.Headers(security.DefaultHeadersConfig())(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/summary", s.handleSummary)
	mux.HandleFunc("GET /api/export", s.handleExport)

	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("PUT /api/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)
	mux.HandleFunc("GET /api/entries/{id}/history", s.handleEntryHistory)

	mux.HandleFunc("POST /api/shop-items", s.handleCreateShopItem)
	mux.HandleFunc("PUT /api/shop-items/{id}", s.handleUpdateShopItem)
	mux.HandleFunc("DELETE /api/shop-items/{id}", s.handleDeleteShopItem)
	mux.HandleFunc("POST /api/shop-items/{id}/sell", s.handleSellShopItem)

	mux.HandleFunc("GET /api/profits", s.handleListProfits)
	mux.HandleFunc("POST /api/profits", s.handleAddProfit)
	mux.HandleFunc("POST /api/profits/reset", s.handleResetProfits)
	mux.HandleFunc("PUT /api/profits/{id}", s.handleUpdateProfit)
	mux.HandleFunc("DELETE /api/profits/{id}", s.handleDeleteProfit)

	mux.HandleFunc("GET /api/cards", s.handleListCards)
	mux.HandleFunc("POST /api/cards", s.handleCreateCard)
	mux.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard)
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once the backend answers and a summary exists.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{}

	if err := s.ping(ctx); err != nil {
		checks["backend"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	if _, ok := s.summaries.Latest(); !ok {
		checks["summary"] = "pending"
		status, code = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["summary"] = "ok"
	}

	writeJSON(w, code, map[string]any{"status": status, "checks": checks})
}
