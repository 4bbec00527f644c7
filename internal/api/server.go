// Package api exposes the host over HTTP: plugin status, event and request
// injection, plugin settings and the console, including a live WebSocket
// stream of console rows.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"phoned/internal/host"
	"phoned/internal/plugins/console"
	"phoned/pkg/event"
	"phoned/pkg/modem"
	"phoned/pkg/plugin"

	"go.uber.org/zap"
)

// Host is the part of the host runtime the API drives.
type Host interface {
	Dispatch(ctx context.Context, ev *event.Event) error
	Request(ctx context.Context, req *modem.Request) error
	Settings(name string) error
	Plugin(name string) (plugin.Plugin, bool)
	Plugins() []host.PluginStatus
	Errors() []host.ReportedError
}

// consoleView is what the console plugin offers to the presentation layer.
type consoleView interface {
	Log() *console.Log
	Window() *console.Window
}

// Server provides HTTP API endpoints for the phone host
type Server struct {
	host   Host
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a new API server
func NewServer(h Host, logger *zap.Logger, port int) *Server {
	s := &Server{
		host:   h,
		logger: logger.Named("api"),
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleSitemap)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/plugins", s.handleGetPlugins)
	mux.HandleFunc("POST /api/plugins/{name}/settings", s.handleSettings)
	mux.HandleFunc("POST /api/events", s.handlePostEvent)
	mux.HandleFunc("POST /api/requests", s.handlePostRequest)
	mux.HandleFunc("GET /api/errors", s.handleGetErrors)
	mux.HandleFunc("GET /api/console", s.handleGetConsole)
	mux.HandleFunc("POST /api/console/close", s.handleCloseConsole)
	mux.HandleFunc("GET /api/console/ws", s.handleConsoleStream)
	return mux
}

// EventRequest is the body of POST /api/events
type EventRequest struct {
	Type    string `json:"type"`
	Kind    string `json:"kind,omitempty"`
	Title   string `json:"title,omitempty"`
	Message string `json:"message,omitempty"`
}

// ModemRequest is the body of POST /api/requests
type ModemRequest struct {
	Type   string `json:"type"`
	Number string `json:"number,omitempty"`
	Text   string `json:"text,omitempty"`
}

// ConsoleResponse is the body of GET /api/console
type ConsoleResponse struct {
	Visible bool          `json:"visible"`
	Rows    []console.Row `json:"rows"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleHealth returns a simple health check response
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetPlugins(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.host.Plugins())
}

func (s *Server) handleGetErrors(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.host.Errors())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := s.host.Settings(name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, host.ErrUnknownPlugin) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err)
		return
	}

	s.logger.Debug("Plugin settings invoked", zap.String("plugin", name))
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePostEvent(w http.ResponseWriter, r *http.Request) {
	var body EventRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	typ, err := event.ParseType(body.Type)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	ev := event.New(typ)
	if typ == event.Notification {
		ev = event.NewNotification(event.ParseKind(body.Kind), body.Title, body.Message)
	}

	if err := s.host.Dispatch(r.Context(), ev); err != nil {
		s.writeError(w, dispatchStatus(err), err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

func (s *Server) handlePostRequest(w http.ResponseWriter, r *http.Request) {
	var body ModemRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	typ, err := modem.ParseRequestType(body.Type)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	req := &modem.Request{Type: typ, Number: body.Number, Text: body.Text}
	if err := s.host.Request(r.Context(), req); err != nil {
		s.writeError(w, dispatchStatus(err), err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "dispatched"})
}

func dispatchStatus(err error) int {
	if errors.Is(err, host.ErrNotLoaded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) console() (consoleView, bool) {
	p, ok := s.host.Plugin(console.Name)
	if !ok {
		return nil, false
	}
	view, ok := p.(consoleView)
	return view, ok
}

func (s *Server) handleGetConsole(w http.ResponseWriter, r *http.Request) {
	view, ok := s.console()
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("console plugin is not loaded"))
		return
	}

	s.writeJSON(w, http.StatusOK, ConsoleResponse{
		Visible: view.Window().Visible(),
		Rows:    view.Log().Rows(),
	})
}

// handleCloseConsole hides the console window. Its rows are kept and the
// console plugin's settings action shows it again.
func (s *Server) handleCloseConsole(w http.ResponseWriter, r *http.Request) {
	view, ok := s.console()
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("console plugin is not loaded"))
		return
	}

	view.Window().Close()
	s.logger.Debug("Console window closed")
	s.writeJSON(w, http.StatusOK, map[string]bool{"visible": false})
}

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []Endpoint{
	{Path: "/", Method: "GET", Description: "This sitemap - lists all available API endpoints"},
	{Path: "/health", Method: "GET", Description: "Health check endpoint - returns {\"status\": \"ok\"}"},
	{Path: "/api/plugins", Method: "GET", Description: "Loaded plugins with metadata and status"},
	{Path: "/api/plugins/{name}/settings", Method: "POST", Description: "Run a plugin's settings action"},
	{Path: "/api/events", Method: "POST", Description: "Dispatch an event: {\"type\", \"kind\", \"title\", \"message\"}"},
	{Path: "/api/requests", Method: "POST", Description: "Send a modem request: {\"type\", \"number\", \"text\"}"},
	{Path: "/api/errors", Method: "GET", Description: "Errors reported by plugins"},
	{Path: "/api/console", Method: "GET", Description: "Console rows"},
	{Path: "/api/console/close", Method: "POST", Description: "Hide the console window (settings shows it again)"},
	{Path: "/api/console/ws", Method: "GET", Description: "WebSocket stream of console rows; send {\"type\":\"close\"} to hide the window"},
}

// handleSitemap returns a list of all available API endpoints
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		s.writeJSON(w, http.StatusOK, endpoints)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "phoned API\n")
	fmt.Fprintf(w, "==========\n\n")
	fmt.Fprintf(w, "Available endpoints:\n\n")
	for _, ep := range endpoints {
		fmt.Fprintf(w, "  %-6s %-30s %s\n", ep.Method, ep.Path, ep.Description)
	}
	fmt.Fprintf(w, "\nExamples:\n\n")
	fmt.Fprintf(w, "  Bring the modem up:\n")
	fmt.Fprintf(w, "    curl -X POST -d '{\"type\":\"online\"}' http://localhost:8080/api/events\n\n")
	fmt.Fprintf(w, "  Raise the console:\n")
	fmt.Fprintf(w, "    curl -X POST http://localhost:8080/api/plugins/console/settings\n")
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP API server", zap.String("addr", s.server.Addr))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop() error {
	s.logger.Info("Stopping HTTP API server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	return nil
}
