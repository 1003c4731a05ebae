// Package web provides the HTTP interface of the dht-sensor daemon.
package web

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sweeney/dht-sensor/internal/status"
)

// Response bodies for the plain-text routes.
const (
	AliveBody         = "alive"
	NoMeasurementBody = "no measurement yet"
)

const textPlain = "text/plain; charset=utf-8"

// Server serves the reading and status pages over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
// Access logs go to accessLog in Combined Log Format; nil disables them.
func New(addr string, tracker *status.Tracker, accessLog io.Writer) *Server {
	s := &Server{tracker: tracker}

	r := mux.NewRouter()
	get := []string{http.MethodGet, http.MethodHead}
	r.HandleFunc("/alive", s.handleAlive).Methods(get...)
	r.HandleFunc("/measurement", s.handleMeasurement).Methods(get...)
	r.HandleFunc("/", s.handleIndex).Methods(get...)
	r.HandleFunc("/index.html", s.handleIndex).Methods(get...)
	r.HandleFunc("/index.json", s.handleJSON).Methods(get...)

	var h http.Handler = r
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(false))(h)
	if accessLog != nil {
		h = handlers.CombinedLoggingHandler(accessLog, h)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: h,
	}
	return s
}

// Handler returns the root handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// handleAlive never touches the tracker so it keeps answering when the
// sensor is dead.
func (s *Server) handleAlive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", textPlain)
	io.WriteString(w, AliveBody)
}

func (s *Server) handleMeasurement(w http.ResponseWriter, r *http.Request) {
	reading, at, ok := s.tracker.Reading()

	w.Header().Set("Content-Type", textPlain)
	w.Header().Set("Cache-Control", "no-store")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, NoMeasurementBody)
		return
	}
	w.Header().Set("Last-Modified", at.UTC().Format(http.TimeFormat))
	io.WriteString(w, reading.String())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}
