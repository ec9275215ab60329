// Package ws exposes the pipeline output to dashboard clients: a push-only
// websocket stream plus a couple of small REST endpoints.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/mangue-baja/telemetry-service-go/log"
	"github.com/mangue-baja/telemetry-service-go/pkg/model"
	"github.com/mangue-baja/telemetry-service-go/pkg/processing/race"
	"github.com/mangue-baja/telemetry-service-go/pkg/utils/broadcast"
	"github.com/mangue-baja/telemetry-service-go/pkg/utils/history"
)

type Server struct {
	addr string
	bcst broadcast.BroadcastServer[[]byte]
	hist *history.RingBuffer
	proc *race.Processor
	sess *model.Session

	httpSrv *http.Server
	l       *log.Logger
}

type Option func(*Server)

func WithSession(sess *model.Session) Option {
	return func(s *Server) { s.sess = sess }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.l = l }
}

func NewServer(
	addr string,
	bcst broadcast.BroadcastServer[[]byte],
	hist *history.RingBuffer,
	proc *race.Processor,
	opts ...Option,
) *Server {
	ret := &Server{
		addr: addr,
		bcst: bcst,
		hist: hist,
		proc: proc,
		l:    log.Default().Named("ws"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Start begins serving and returns immediately; a listen failure is logged.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/telemetry", s.handleTelemetry)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/reference", s.handleReference)
	mux.HandleFunc("/api/session", s.handleSession)

	s.httpSrv = &http.Server{
		Addr:    s.addr,
		Handler: newCORS().Handler(mux),
	}
	s.l.Info("http server listening", log.String("addr", s.addr))
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http server stopped", log.ErrorField(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// the dashboard dev server runs on a different origin
func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleTelemetry manages one dashboard client. The server only pushes;
// whatever the client sends is read and discarded (keep-alive). A broken
// connection only tears down this client.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.l.Warn("websocket upgrade failed", log.ErrorField(err))
		return
	}
	s.l.Info("client connected", log.String("remote", conn.RemoteAddr().String()))

	// prime the client with the buffered window, oldest first
	recent := s.hist.Recent(s.hist.Capacity())
	for i := len(recent) - 1; i >= 0; i-- {
		msg, err := json.Marshal(&recent[i])
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			return
		}
	}

	sub := s.bcst.Subscribe()
	go s.writeLoop(conn, sub)

	// inbound messages are keep-alive only
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	s.l.Info("client disconnected", log.String("remote", conn.RemoteAddr().String()))
	s.bcst.CancelSubscription(sub)
	conn.Close()
}

func (s *Server) writeLoop(conn *websocket.Conn, sub <-chan []byte) {
	for msg := range sub {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			// reader loop notices the closed connection and unsubscribes
			conn.Close()
			return
		}
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	limit := s.hist.Capacity()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		if n < limit {
			limit = n
		}
	}
	writeJSON(w, s.hist.Recent(limit))
}

// handleReference sets the start/finish line from the most recent buffered
// sample with a GPS fix.
func (s *Server) handleReference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	latest := s.hist.LatestWithFix()
	if latest == nil {
		http.Error(w, "no sample with gps data buffered yet", http.StatusConflict)
		return
	}
	s.proc.SetReference(latest.Latitude, latest.Longitude)
	writeJSON(w, map[string]float64{
		"sf_lat": latest.Latitude,
		"sf_lon": latest.Longitude,
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.sess == nil {
		http.Error(w, "no active session", http.StatusNotFound)
		return
	}
	writeJSON(w, s.sess)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Default().Named("ws").Error("could not write response", log.ErrorField(err))
	}
}
