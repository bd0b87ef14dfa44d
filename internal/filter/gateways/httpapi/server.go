// Package httpapi exposes the admission engine and the list updater over
// HTTP: request checks, source status, manual refresh, custom rule edits,
// metrics and health.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"golang.org/x/time/rate"

	"github.com/haukened/rr-filter/internal/filter/common/log"
	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/filterlist"
	"github.com/haukened/rr-filter/internal/filter/services/updater"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	maxCustomBody     = 64 << 10
)

// Options configures a Server. Custom, Metrics and Logger are optional; the
// /v1/custom routes exist only when Custom is set. RefreshInterval spaces
// manual refreshes; zero allows every request.
type Options struct {
	Addr            string
	Decider         Decider
	Sources         SourceLister
	Refresher       Refresher
	Custom          CustomRuleEditor
	RefreshInterval time.Duration
	Metrics         http.Handler
	Logger          log.Logger
}

// Server is the HTTP check API.
type Server struct {
	addr      string
	decider   Decider
	sources   SourceLister
	refresher Refresher
	custom    CustomRuleEditor
	limiter   *rate.Limiter
	metrics   http.Handler
	logger    log.Logger
	handler   http.Handler

	mu      sync.Mutex
	srv     *http.Server
	ln      net.Listener
	done    chan struct{}
	running bool
}

// CheckResponse is the body of GET /v1/check.
type CheckResponse struct {
	Block bool   `json:"block"`
	Stage string `json:"stage"`
	Rule  string `json:"rule,omitempty"`
	Class string `json:"class,omitempty"`
}

// RefreshResponse is the body of POST /v1/refresh.
type RefreshResponse struct {
	Stats filterlist.CompileStats `json:"stats"`
	Error string                  `json:"error,omitempty"`
}

// CustomRulesResponse is the body of GET /v1/custom.
type CustomRulesResponse struct {
	Rules []string `json:"rules"`
}

// CustomRuleRequest is the body of POST and DELETE /v1/custom.
type CustomRuleRequest struct {
	Rule string `json:"rule"`
}

// CustomRuleResponse is the body of a successful custom rule edit.
type CustomRuleResponse struct {
	Rule  string                  `json:"rule"`
	Stats filterlist.CompileStats `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New validates opts and builds the route table.
func New(opts Options) (*Server, error) {
	if opts.Decider == nil || opts.Sources == nil || opts.Refresher == nil {
		return nil, fmt.Errorf("httpapi: decider, sources and refresher are required")
	}
	s := &Server{
		addr:      opts.Addr,
		decider:   opts.Decider,
		sources:   opts.Sources,
		refresher: opts.Refresher,
		custom:    opts.Custom,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.NewNoopLogger()
	}
	if opts.RefreshInterval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.RefreshInterval), 1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/check", s.handleCheck)
	mux.HandleFunc("GET /v1/stats", s.handleStats)
	mux.HandleFunc("GET /v1/sources", s.handleSources)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)
	if s.custom != nil {
		mux.HandleFunc("GET /v1/custom", s.handleCustomList)
		mux.HandleFunc("POST /v1/custom", s.handleCustomAdd)
		mux.HandleFunc("DELETE /v1/custom", s.handleCustomRemove)
	}
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	s.handler = mux
	return s, nil
}

// Handler returns the route table, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the listener and serves in the background until Stop is
// called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("http api already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	done := make(chan struct{})
	s.ln, s.srv, s.done, s.running = ln, srv, done, true

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error(map[string]any{"error": err}, "http_api_serve_failed")
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-done:
		}
	}()

	s.logger.Info(map[string]any{"address": ln.Addr().String()}, "http_api_started")
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.done)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	if err != nil {
		s.logger.Warn(map[string]any{"error": err}, "http_api_shutdown_failed")
	}
	s.logger.Info(map[string]any{"address": s.ln.Addr().String()}, "http_api_stopped")
	return err
}

// Address returns the bound address once started, otherwise the configured one.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rawURL := q.Get("url")
	if rawURL == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing url parameter"})
		return
	}
	req, err := domain.NewRequestContext(rawURL, q.Get("page"), domain.ParseResourceType(q.Get("type")))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	d := s.decider.Decide(req)
	resp := CheckResponse{Block: d.Blocked, Stage: d.Stage.String(), Rule: d.Rule}
	if d.Rule != "" {
		resp.Class = d.Class.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.decider.Stats())
}

func (s *Server) handleSources(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sources.Sources())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "refresh rate limited"})
		return
	}
	stats, err := s.refresher.Refresh(r.Context())
	resp := RefreshResponse{Stats: stats}
	if err != nil {
		resp.Error = err.Error()
		s.logger.Warn(map[string]any{"error": err}, "manual_refresh_partial_failure")
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCustomList(w http.ResponseWriter, _ *http.Request) {
	rules := s.custom.CustomRules()
	if rules == nil {
		rules = []string{}
	}
	s.writeJSON(w, http.StatusOK, CustomRulesResponse{Rules: rules})
}

func (s *Server) handleCustomAdd(w http.ResponseWriter, r *http.Request) {
	s.editCustom(w, r, "custom_rule_added", s.custom.AddCustomRule)
}

func (s *Server) handleCustomRemove(w http.ResponseWriter, r *http.Request) {
	s.editCustom(w, r, "custom_rule_removed", s.custom.RemoveCustomRule)
}

// editCustom reads the rule from the JSON body, or from the rule query
// parameter when the body is empty, and applies edit.
func (s *Server) editCustom(
	w http.ResponseWriter,
	r *http.Request,
	msg string,
	edit func(string) (filterlist.CompileStats, error),
) {
	var body CustomRuleRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCustomBody))
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if body.Rule == "" {
		body.Rule = r.URL.Query().Get("rule")
	}
	body.Rule = strings.TrimSpace(body.Rule)
	if body.Rule == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing rule"})
		return
	}

	stats, err := edit(body.Rule)
	if err != nil {
		s.writeJSON(w, customStatus(err), errorResponse{Error: err.Error()})
		return
	}
	s.logger.Info(map[string]any{"rule": body.Rule, "version": stats.Version}, msg)
	s.writeJSON(w, http.StatusOK, CustomRuleResponse{Rule: body.Rule, Stats: stats})
}

func customStatus(err error) int {
	switch {
	case errors.Is(err, updater.ErrInvalidRule):
		return http.StatusBadRequest
	case errors.Is(err, updater.ErrRuleExists):
		return http.StatusConflict
	case errors.Is(err, updater.ErrRuleNotFound), errors.Is(err, updater.ErrNoCustomSource):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug(map[string]any{"error": err}, "http_api_write_failed")
	}
}
