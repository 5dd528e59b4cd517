package transport

import (
	"io"
	"sync"

	"github.com/gorilla/websocket"
)

// wsConnAdapter adapts a *websocket.Conn to io.ReadWriteCloser so
// internal/release's length-prefixed Push/ReadPushed helpers work
// unmodified over a websocket transport: each Write becomes one binary
// message, and Read transparently spans message boundaries.
type wsConnAdapter struct {
	conn *websocket.Conn

	mu     sync.Mutex
	reader io.Reader
}

func (w *wsConnAdapter) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *wsConnAdapter) Read(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for {
		if w.reader == nil {
			_, r, err := w.conn.NextReader()
			if err != nil {
				return 0, err
			}
			w.reader = r
		}
		n, err := w.reader.Read(p)
		if err == io.EOF {
			w.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

// Close releases this push handle only. The underlying websocket is the
// worker's pairing connection, owned by Server.serveConn, and stays open so
// the worker can still pair and send telemetry over it.
func (w *wsConnAdapter) Close() error {
	return nil
}
