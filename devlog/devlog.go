// Package devlog records per-invocation pipeline events for development
// debugging. The recorder is an explicit handle threaded through the pipeline
// rather than ambient state, so disabling it is a no-op value and tests can
// assert on exactly what was recorded.
package devlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Recorder receives one event per pipeline stage.
type Recorder interface {
	Record(stage string, fields map[string]any)
}

// Nop discards every event. The zero-cost default when dev logging is off.
type Nop struct{}

// Record implements Recorder.
func (Nop) Record(string, map[string]any) {}

type event struct {
	Time   time.Time      `json:"time"`
	Stage  string         `json:"stage"`
	Fields map[string]any `json:"fields,omitempty"`
}

// File appends JSON-line events to a per-run file inside a directory, with an
// optional echo of each line to stdout.
type File struct {
	mu   sync.Mutex
	f    *os.File
	echo bool
}

// NewFile creates the output directory if needed and opens a run-stamped file.
func NewFile(dir string, echo bool) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("devlog: create directory: %w", err)
	}
	// Nanoseconds plus the pid keep names unique when several recorders start
	// within the same second.
	now := time.Now().UTC()
	name := fmt.Sprintf("run-%s-%09d-%d.jsonl",
		now.Format("20060102-150405"), now.Nanosecond(), os.Getpid())
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("devlog: open run file: %w", err)
	}
	return &File{f: f, echo: echo}, nil
}

// Record implements Recorder. Marshal or write failures are swallowed; dev
// logging must never interfere with the pipeline.
func (r *File) Record(stage string, fields map[string]any) {
	line, err := json.Marshal(event{
		Time:   time.Now().UTC(),
		Stage:  stage,
		Fields: fields,
	})
	if err != nil {
		return
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.f.Write(line)
	if r.echo {
		_, _ = os.Stdout.Write(line)
	}
}

// Close flushes and closes the run file.
func (r *File) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}
