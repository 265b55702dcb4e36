package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one line in the coordinator's append-only event stream.
type Event struct {
	Ts     time.Time      `json:"ts"`
	Kind   string         `json:"kind"`
	Fields map[string]any `json:"fields,omitempty"`
}

// EventRecorder appends events as JSON lines for later analysis.
type EventRecorder struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewEventRecorder creates/opens the target file and returns a recorder.
func NewEventRecorder(path string) (*EventRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &EventRecorder{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single event to the underlying JSONL file.
func (r *EventRecorder) Record(kind string, fields map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return
	}
	_ = r.enc.Encode(Event{Ts: time.Now().UTC(), Kind: kind, Fields: fields})
}

// Close flushes and closes the file handle.
func (r *EventRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
