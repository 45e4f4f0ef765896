// Package web provides the HTTP/JSON relay between the daemon and the
// display layer: current bucket levels, debug state, the exported decay
// rate, manual pour controls, and a websocket live feed.
package web

import (
	"context"
	"log"
	"net"
	"net/http"
	"strconv"

	"github.com/jordan77-lang/water-allocation/internal/status"
)

// Command is a manual/test override enqueued by an HTTP handler and
// consumed by the daemon's main loop, so engine state is only ever touched
// from one goroutine.
type Command struct {
	Kind   CommandKind
	Bucket string
	Points float64
	Manual bool
}

// CommandKind discriminates manual override commands.
type CommandKind int

const (
	// CommandPour bumps a bucket's displayed value and lets it drain.
	CommandPour CommandKind = iota
	// CommandManual flips the manual latch that mutes live samples.
	CommandManual
)

// Server serves the relay endpoints.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   chan<- Command
	hub        *Hub
}

// New creates a Server that reads state from the given tracker and hands
// manual commands to the daemon over the commands channel.
func New(addr string, tracker *status.Tracker, commands chan<- Command) *Server {
	s := &Server{
		tracker:  tracker,
		commands: commands,
		hub:      newHub(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/data", s.handleData)
	mux.HandleFunc("/debug/raw", s.handleDebugRaw)
	mux.HandleFunc("/config", s.handleConfig)
	mux.HandleFunc("/status.json", s.handleStatus)
	mux.HandleFunc("/pour", s.handlePour)
	mux.HandleFunc("/mode", s.handleMode)
	mux.HandleFunc("/live", s.hub.handleUpgrade)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and its websocket clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.closeAll()
	return s.httpServer.Shutdown(ctx)
}

// PushLevels broadcasts the current bucket levels to websocket clients.
func (s *Server) PushLevels(snap status.Snapshot) {
	s.hub.broadcast(levelsMessage(snap))
}

// PushEvent broadcasts a story event to websocket clients.
func (s *Server) PushEvent(payload []byte) {
	s.hub.broadcast(eventMessage(payload))
}

// The display layer is a static page served from elsewhere; GET endpoints
// are open to any origin the way the original relay was.
func allowAnyOrigin(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	allowAnyOrigin(w)
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatData(snap))
}

func (s *Server) handleDebugRaw(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	allowAnyOrigin(w)
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatDebugRaw(snap))
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	allowAnyOrigin(w)
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatConfig(snap))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	allowAnyOrigin(w)
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handlePour(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		http.Error(w, "missing bucket", http.StatusBadRequest)
		return
	}
	points, err := strconv.ParseFloat(r.URL.Query().Get("points"), 64)
	if err != nil || points < 0 {
		http.Error(w, "invalid points", http.StatusBadRequest)
		return
	}

	if !s.enqueue(Command{Kind: CommandPour, Bucket: bucket, Points: points}) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	manual, err := strconv.ParseBool(r.URL.Query().Get("manual"))
	if err != nil {
		http.Error(w, "invalid manual flag", http.StatusBadRequest)
		return
	}

	if !s.enqueue(Command{Kind: CommandManual, Manual: manual}) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// enqueue hands a command to the main loop without ever blocking a handler.
func (s *Server) enqueue(cmd Command) bool {
	select {
	case s.commands <- cmd:
		return true
	default:
		log.Printf("web: command queue full, dropping %v", cmd.Kind)
		return false
	}
}
