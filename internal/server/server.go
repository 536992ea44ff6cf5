// Package server exposes the analysis workflow as a small web UI and JSON
// API backed by per-visitor sessions.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/KaramelBytes/insightgenie/internal/assistant"
	"github.com/KaramelBytes/insightgenie/internal/log"
	"github.com/KaramelBytes/insightgenie/internal/session"
	"github.com/KaramelBytes/insightgenie/internal/viz"
)

//go:embed templates/*.html
var templateFS embed.FS

// SessionCookie names the cookie carrying the session ID.
const SessionCookie = "insightgenie_session"

// DefaultMaxUploadMB bounds uploads when Config leaves it unset.
const DefaultMaxUploadMB = 32

// Config holds server options.
type Config struct {
	MaxUploadMB int
}

// Server routes HTTP requests to sessions.
type Server struct {
	router    *chi.Mux
	sessions  *session.Manager
	assistant *assistant.Assistant
	templates *template.Template
	maxUpload int64
}

type ctxKey struct{}

// New builds the router. A nil assistant behaves as a degraded one.
func New(sessions *session.Manager, a *assistant.Assistant, cfg Config) (*Server, error) {
	if a == nil {
		a = assistant.Degraded(nil)
	}
	mb := cfg.MaxUploadMB
	if mb <= 0 {
		mb = DefaultMaxUploadMB
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"svg":  viz.SVG,
		"pct":  func(f float64) string { return fmt.Sprintf("%.2f%%", f) },
		"join": joinNames,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s := &Server{
		router:    chi.NewRouter(),
		sessions:  sessions,
		assistant: a,
		templates: tmpl,
		maxUpload: int64(mb) << 20,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(s.withSession)
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleIndex)
	s.router.Get("/report", s.handleReport)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/profile", s.handleProfile)
		r.Get("/insights", s.handleInsights)
		r.Get("/visualizations", s.handleVisualizations)
		r.Post("/visualizations", s.handleCustomVisualization)
		r.Post("/clean", s.handleClean)
		r.Post("/outliers", s.handleOutliers)
		r.Post("/normalize", s.handleNormalize)
		r.Get("/export", s.handleExport)
		r.Post("/ask", s.handleAsk)
		r.Post("/chat", s.handleChat)
		r.Delete("/chat", s.handleClearChat)
		r.Get("/suggestions", s.handleSuggestions)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("serving web UI", zap.String("addr", addr))
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// withSession attaches the visitor's session ID, issuing a new one when the
// cookie is missing or has expired.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookie); err == nil {
			id = c.Value
		}
		if id == "" || s.sessions.Do(id, func(*session.Session) error { return nil }) != nil {
			id = s.sessions.Create()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// do runs fn against the request's session.
func (s *Server) do(r *http.Request, fn func(*session.Session) error) error {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return s.sessions.Do(id, fn)
}

func (s *Server) renderTemplate(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		log.Error("render template", zap.String("template", name), zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("encode response", zap.Error(err))
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeSessionError maps session-level failures to a status code.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoDataset):
		writeError(w, http.StatusConflict, "Please upload a dataset first.")
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
