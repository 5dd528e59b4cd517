// Package workerclient is the SDK a spawned worker process links against
// to complete its half of the pairing handshake: say hello, receive the
// pushed release, and report status back as telemetry. It is not named by
// spec.md directly, but is required to make the worker side of the
// handshake in spec.md 6 concretely runnable.
package workerclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fleetkeep/overseer/internal/release"
)

type wireMessage struct {
	Type    string         `json:"type"`
	Name    string         `json:"name"`
	PID     string         `json:"pid,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Client is a worker's connection back to its overseer.
type Client struct {
	conn *websocket.Conn
	name string
}

// Dial opens the control connection, identified by the labor name the
// adapter assigned at spawn time (conventionally delivered via the
// OVERSEER_LABOR_NAME environment variable), and immediately sends the
// "hello" frame so the overseer can locate this connection when it pushes
// the release.
func Dial(ctx context.Context, addr, name string, tlsConfig *tls.Config) (*Client, error) {
	u := url.URL{Scheme: "wss", Host: addr, Path: "/pair"}
	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConfig,
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("workerclient: dial %s: %w", addr, err)
	}

	c := &Client{conn: conn, name: name}
	if err := c.sendJSON(wireMessage{Type: "hello", Name: name}); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// ReceiveRelease blocks for the release artifact Overseer pushes after
// hello, returning its raw bytes and the entry point it was told to start.
func (c *Client) ReceiveRelease() ([]byte, EntryPoint, error) {
	msgType, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, EntryPoint{}, fmt.Errorf("workerclient: read release frame: %w", err)
	}
	if msgType != websocket.BinaryMessage {
		return nil, EntryPoint{}, fmt.Errorf("workerclient: expected binary release frame, got type %d", msgType)
	}
	payload, err := release.ReadPushed(bytes.NewReader(data))
	if err != nil {
		return nil, EntryPoint{}, err
	}

	_, startData, err := c.conn.ReadMessage()
	if err != nil {
		return nil, EntryPoint{}, fmt.Errorf("workerclient: read start frame: %w", err)
	}
	var frame struct {
		Module   string `json:"module"`
		Function string `json:"function"`
	}
	if err := json.Unmarshal(startData, &frame); err != nil {
		return nil, EntryPoint{}, fmt.Errorf("workerclient: decode start frame: %w", err)
	}

	return payload, EntryPoint{Module: frame.Module, Function: frame.Function}, nil
}

// EntryPoint mirrors overseer.EntryPoint on the worker side.
type EntryPoint struct {
	Module   string
	Function string
}

// Pair completes the handshake: the worker announces its own control pid
// (e.g. the entry-point subprocess's OS pid) once it has started.
func (c *Client) Pair(pid string) error {
	return c.sendJSON(wireMessage{Type: "pair", Name: c.name, PID: pid})
}

// Telemetry sends a fire-and-forget status update.
func (c *Client) Telemetry(payload map[string]any) error {
	return c.sendJSON(wireMessage{Type: "telemetry", Name: c.name, Payload: payload})
}

// Close releases the underlying connection; the overseer observes this as
// an exit event.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) sendJSON(msg wireMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("workerclient: marshal %s frame: %w", msg.Type, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("workerclient: send %s frame: %w", msg.Type, err)
	}
	return nil
}
