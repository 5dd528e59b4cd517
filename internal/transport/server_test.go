package transport_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/fleetkeep/overseer/internal/transport"
)

func dialTestServer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHelloThenPairEmitsEvents(t *testing.T) {
	events := make(chan transport.Event, 8)
	s := transport.NewServer(events)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialTestServer(t, srv)

	hello, _ := json.Marshal(map[string]string{"type": "hello", "name": "w-1"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, hello))

	require.Eventually(t, func() bool { return s.Connected("w-1") }, time.Second, 10*time.Millisecond)

	pair, _ := json.Marshal(map[string]string{"type": "pair", "name": "w-1", "pid": "123"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, pair))

	select {
	case ev := <-events:
		require.Equal(t, transport.EventPair, ev.Type)
		require.Equal(t, "w-1", ev.LaborName)
		require.Equal(t, "123", ev.PairPID)
	case <-time.After(time.Second):
		t.Fatal("pair event not delivered")
	}
}

func TestTelemetryEvent(t *testing.T) {
	events := make(chan transport.Event, 8)
	s := transport.NewServer(events)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialTestServer(t, srv)
	telemetry, _ := json.Marshal(map[string]any{
		"type": "telemetry", "name": "w-1", "payload": map[string]any{"load": 0.5},
	})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, telemetry))

	select {
	case ev := <-events:
		require.Equal(t, transport.EventTelemetry, ev.Type)
		require.Equal(t, "w-1", ev.Telemetry.Name)
		require.InDelta(t, 0.5, ev.Telemetry.Payload["load"], 0.0001)
	case <-time.After(time.Second):
		t.Fatal("telemetry event not delivered")
	}
}

func TestConnCloseEmitsExit(t *testing.T) {
	events := make(chan transport.Event, 8)
	s := transport.NewServer(events)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialTestServer(t, srv)
	hello, _ := json.Marshal(map[string]string{"type": "hello", "name": "w-2"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, hello))
	require.Eventually(t, func() bool { return s.Connected("w-2") }, time.Second, 10*time.Millisecond)

	conn.Close()

	select {
	case ev := <-events:
		require.Equal(t, transport.EventExit, ev.Type)
		require.Equal(t, "w-2", ev.LaborName)
	case <-time.After(time.Second):
		t.Fatal("exit event not delivered")
	}
}

func TestDialPushesOverHelloedConnection(t *testing.T) {
	events := make(chan transport.Event, 8)
	s := transport.NewServer(events)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dialTestServer(t, srv)
	hello, _ := json.Marshal(map[string]string{"type": "hello", "name": "w-3"})
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, hello))
	require.Eventually(t, func() bool { return s.Connected("w-3") }, time.Second, 10*time.Millisecond)

	rwc, err := s.Dial(context.Background(), "w-3")
	require.NoError(t, err)
	_, err = rwc.Write([]byte("hi"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, msgType)
	require.Equal(t, "hi", string(data))
}

func TestDialUnknownLaborFails(t *testing.T) {
	events := make(chan transport.Event, 8)
	s := transport.NewServer(events)
	_, err := s.Dial(context.Background(), "ghost")
	require.Error(t, err)
}
