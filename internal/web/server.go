// Package web exposes the backend event stream and telemetry snapshots to
// GUI clients over websockets.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/events"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/logger"
	"github.com/LuciferMornens/macos-optimizer-beta/internal/metrics"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Local GUI shell only; the listener binds loopback.
		return true
	},
}

const metricsPushPeriod = time.Second

// Server broadcasts operation events and periodic metrics frames.
type Server struct {
	host    string
	port    int
	bus     *events.Bus
	sampler *metrics.Sampler

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewServer(host string, port int, bus *events.Bus, sampler *metrics.Sampler) *Server {
	return &Server{
		host:    host,
		port:    port,
		bus:     bus,
		sampler: sampler,
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Start serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	sub, unsubscribe := s.bus.Subscribe()
	defer unsubscribe()
	go s.pumpEvents(ctx, sub)
	go s.pumpMetrics(ctx)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: s.handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", srv.Addr).Msg("event server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Reader loop only to notice closure; clients never send commands here.
	go func() {
		defer s.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[conn]; ok {
		delete(s.clients, conn)
		conn.Close()
	}
}

func (s *Server) broadcast(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.dropClient(conn)
		}
	}
}

func (s *Server) pumpEvents(ctx context.Context, sub <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			s.broadcast(ev)
		}
	}
}

func (s *Server) pumpMetrics(ctx context.Context) {
	ticker := time.NewTicker(metricsPushPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.broadcast(events.Event{
				Channel: "metrics:snapshot",
				Payload: s.sampler.Snapshot(),
			})
		}
	}
}
