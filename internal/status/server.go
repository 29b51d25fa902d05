// Package status serves the keep-alive HTTP endpoint: a plain liveness
// page for uptime monitors and a small JSON health snapshot.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"classbot/pkg/logx"
)

type Config struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address"`
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = "127.0.0.1:8080"
	}
	return c
}

// Health is the snapshot reported on /healthz. The bot layer supplies
// a producer so the server never touches storage itself.
type Health struct {
	Uptime        string `json:"uptime"`
	Subscribers   int    `json:"subscribers"`
	Announcements int    `json:"announcements"`
}

type Server struct {
	mu   sync.Mutex
	log  logx.Logger
	srv  *http.Server
	ln   net.Listener
	addr string

	started  time.Time
	snapshot func(ctx context.Context) Health
}

func NewServer(log logx.Logger, snapshot func(ctx context.Context) Health) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{log: log, snapshot: snapshot, started: time.Now()}
}

// Start brings the listener up. A failed bind is logged and swallowed:
// the bot keeps running without the endpoint.
func (s *Server) Start(cfg Config) {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled || s.srv != nil {
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/healthz", s.handleHealth)

	srv := &http.Server{Addr: cfg.Address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	ln, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		s.log.Warn("status listen failed", logx.String("addr", cfg.Address), logx.Err(err))
		return
	}

	s.srv = srv
	s.ln = ln
	s.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("status server error", logx.String("addr", s.addr), logx.Err(err))
		}
	}()
	s.log.Info("status endpoint up", logx.String("addr", s.addr))
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Bot is alive!"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var h Health
	if s.snapshot != nil {
		h = s.snapshot(r.Context())
	}
	h.Uptime = time.Since(s.started).Round(time.Second).String()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h)
}

// Stop gracefully shuts the listener down.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return
	}
	srv := s.srv
	ln := s.ln
	addr := s.addr
	s.srv = nil
	s.ln = nil
	s.addr = ""

	shutdownCtx := ctx
	if shutdownCtx == nil {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn("status shutdown error", logx.String("addr", addr), logx.Err(err))
	}
	if ln != nil {
		_ = ln.Close()
	}
	s.log.Info("status endpoint down", logx.String("addr", addr))
}

// Addr reports the actual listen address if running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
