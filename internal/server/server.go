// Package server exposes form configs over HTTP and runs live form sessions
// over WebSocket.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"

	"github.com/reoring/dynform"
	"github.com/reoring/dynform/internal/ctxlog"
	"github.com/reoring/dynform/jsonschema"
	"github.com/reoring/dynform/middleware"
)

// maxConfigBytes bounds config documents posted to /validate-config.
const maxConfigBytes = 4 << 20

// Config holds server configuration.
type Config struct {
	Addr     string
	Registry *Registry
	Logger   *slog.Logger
	// OriginPatterns are passed to the WebSocket handshake; empty allows
	// same-origin requests only.
	OriginPatterns []string
}

// Server serves the registry and live sessions.
type Server struct {
	cfg      Config
	log      *slog.Logger
	sessions sessions
}

// New returns a server for cfg. A nil registry serves no forms.
func New(cfg Config) *Server {
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	log := cfg.Logger
	if log == nil {
		log = ctxlog.Discard()
	}
	return &Server{cfg: cfg, log: log}
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer, s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.count()})
	})
	r.Post("/validate-config", s.validateConfig)

	r.Route("/forms", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, s.cfg.Registry.Names())
		})
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.withForm(func(w http.ResponseWriter, r *http.Request, cfgs []dynform.FieldConfig) {
				writeJSON(w, http.StatusOK, cfgs)
			}))
			r.Get("/schema", s.withForm(func(w http.ResponseWriter, r *http.Request, cfgs []dynform.FieldConfig) {
				writeJSON(w, http.StatusOK, jsonschema.FromConfig(cfgs))
			}))
			r.Post("/validate", s.withForm(s.validateBody))
			r.Get("/ws", s.withForm(s.serveSession))
		})
	})
	r.Get("/sessions/{id}", s.getSession)
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctxlog.WithLogger(context.WithoutCancel(ctx), s.log) },
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.cfg.Addr, "forms", len(s.cfg.Registry.Names()))
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := s.log.With("request_id", chimw.GetReqID(r.Context()))
		ctx := ctxlog.WithLogger(r.Context(), log)
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))
		log.DebugContext(ctx, "request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}

func (s *Server) withForm(h func(http.ResponseWriter, *http.Request, []dynform.FieldConfig)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		cfgs, ok := s.cfg.Registry.Get(name)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown_form", "no form named "+name)
			return
		}
		h(w, r, cfgs)
	}
}

func (s *Server) validateConfig(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read_error", err.Error())
		return
	}
	res := dynform.ValidateConfig(data, s.cfg.Registry.Options()...)
	code := http.StatusOK
	if !res.OK() {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, map[string]any{"configs": res.Configs, "errors": res.Errors})
}

func (s *Server) validateBody(w http.ResponseWriter, r *http.Request, cfgs []dynform.FieldConfig) {
	v, err := middleware.NewValidator(cfgs, s.cfg.Registry.Options()...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config_error", err.Error())
		return
	}
	res, err := v.Read(r.Context(), r.Body)
	code := middleware.Status(res, err)
	if code != http.StatusOK {
		writeJSON(w, code, middleware.ErrorPayload(res, err))
		return
	}
	writeJSON(w, code, res)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	f, ok := s.sessions.get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_session", "no live session with that id")
		return
	}
	writeJSON(w, http.StatusOK, snapshot(f))
}

func snapshot(f *dynform.Form) SnapshotData {
	return SnapshotData{Value: f.Value(), Errors: f.Errors(), Valid: f.Valid(), Nodes: f.Snapshot()}
}

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("writeJSON encode error", "error", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorData{Code: code, Message: message})
}
