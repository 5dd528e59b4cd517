// Package eventlog is an append-only audit trail of controller events,
// adapted from the teacher's write-ahead log. Unlike a WAL, it is never
// replayed: spec.md's Non-goals explicitly exclude persistence across
// overseer restarts, so this package exists purely for operators tailing a
// file, not for crash recovery. See SPEC_FULL.md "Design Notes".
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Record is one logged controller event.
type Record struct {
	Seq       uint64         `json:"seq"`
	Kind      string         `json:"kind"`
	LaborName string         `json:"labor_name,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Log appends Records as newline-delimited JSON to a single file, opened
// once and kept open for the life of the overseer instance.
type Log struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	seq  uint64
}

// Open appends to (creating if necessary) the file at path.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %q: %w", path, err)
	}
	return &Log{file: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one record. It never returns an error to the controller's
// event-handling path in practice because audit logging failures must not
// stall supervision; callers that care about the error can still inspect
// it for alerting.
func (l *Log) Append(kind, laborName string, detail map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	rec := Record{Seq: l.seq, Kind: kind, LaborName: laborName, Detail: detail, Timestamp: time.Now()}
	if err := l.enc.Encode(rec); err != nil {
		return fmt.Errorf("eventlog: append: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
