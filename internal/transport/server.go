// Package transport is Overseer's concrete answer to spec.md 9's
// "distribution substitute" design note: a mutually authenticated TLS
// server carrying gorilla/websocket connections, from which exit and the
// pair/telemetry handshake are derived. node_up/node_down
// themselves come from the Adapter's own reachability probe (see
// internal/adapter); this package owns only the worker-initiated control
// channel used for release push, pairing, and telemetry.
package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventType distinguishes the three things a connection can tell the
// controller.
type EventType string

const (
	EventPair      EventType = "pair"
	EventTelemetry EventType = "telemetry"
	EventExit      EventType = "exit"
)

// TelemetryPayload mirrors the {name, payload, timestamp} shape from
// spec.md 6.
type TelemetryPayload struct {
	Name      string
	Payload   map[string]any
	Timestamp time.Time
}

// Event is what the transport layer delivers to the controller's mailbox.
type Event struct {
	Type      EventType
	LaborName string
	PairPID   string
	Telemetry TelemetryPayload
}

type wireMessage struct {
	Type    string         `json:"type"`
	Name    string         `json:"name"`
	PID     string         `json:"pid,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Server accepts worker connections, derives pair/telemetry/exit events
// from them, and exposes a Dial method internal/pair uses to push release
// artifacts to a worker that has already said hello.
type Server struct {
	upgrader websocket.Upgrader
	events   chan<- Event

	mu    sync.Mutex
	conns map[string]*websocket.Conn
}

// NewServer builds a Server that emits onto events. events should be
// non-blocking from the server's perspective; the controller's mailbox
// typically wraps it in a goroutine that forwards into the single event
// channel, or the caller supplies a sufficiently buffered channel directly.
func NewServer(events chan<- Event) *Server {
	return &Server{
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		events:   events,
		conns:    make(map[string]*websocket.Conn),
	}
}

// ServerTLSConfig builds a mutual-TLS config from a server certificate/key
// pair, requiring and verifying a client certificate on every connection.
func ServerTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("transport: load server cert: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Handler returns the http.Handler to mount at the pairing endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleConn)
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	go s.serveConn(conn)
}

func (s *Server) serveConn(conn *websocket.Conn) {
	var name string
	defer func() {
		conn.Close()
		if name != "" {
			s.mu.Lock()
			delete(s.conns, name)
			s.mu.Unlock()
			s.emit(Event{Type: EventExit, LaborName: name})
		}
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			// Binary frames are release-push payloads consumed directly
			// by internal/release.ReadPushed on the worker side; the
			// server itself never interprets them.
			continue
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "hello":
			name = msg.Name
			s.mu.Lock()
			s.conns[name] = conn
			s.mu.Unlock()
		case "pair":
			s.emit(Event{Type: EventPair, LaborName: msg.Name, PairPID: msg.PID})
		case "telemetry":
			s.emit(Event{
				Type:      EventTelemetry,
				LaborName: msg.Name,
				Telemetry: TelemetryPayload{Name: msg.Name, Payload: msg.Payload, Timestamp: time.Now()},
			})
		}
	}
}

func (s *Server) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// Dial returns the connection a worker opened for laborName, so
// internal/pair's Loader can push a release over it. It errors if that
// worker hasn't said hello yet.
func (s *Server) Dial(ctx context.Context, laborName string) (io.ReadWriteCloser, error) {
	s.mu.Lock()
	conn, ok := s.conns[laborName]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("transport: no connection from %q yet", laborName)
	}
	return &wsConnAdapter{conn: conn}, nil
}

// Connected reports whether laborName currently has a live connection.
func (s *Server) Connected(laborName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.conns[laborName]
	return ok
}
