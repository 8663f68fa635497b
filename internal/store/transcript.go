package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mweinbach/agent-coworker/internal/ident"
)

// Transcript direction values. Input is case-insensitive and normalized to
// lowercase before it reaches disk.
const (
	DirectionServer = "server"
	DirectionClient = "client"
)

// ErrBadDirection is wrapped when an event's direction is neither "server"
// nor "client".
var ErrBadDirection = errors.New(`direction must be "server" or "client"`)

// TranscriptEvent is one line of a per-thread JSONL transcript. Payload is an
// opaque document; the log never inspects its shape.
type TranscriptEvent struct {
	TS        string `json:"ts"`
	ThreadID  string `json:"threadId"`
	Direction string `json:"direction"`
	Payload   any    `json:"payload"`
}

// TranscriptLog stores one append-only JSONL file per thread under
// <dataDir>/transcripts. Files are only ever appended to or deleted whole;
// single appends rely on the filesystem's append atomicity, so no lock is
// held here.
type TranscriptLog struct {
	dir string
}

func NewTranscriptLog(dataDir string) *TranscriptLog {
	return &TranscriptLog{dir: filepath.Join(dataDir, "transcripts")}
}

// Dir returns the transcripts directory.
func (l *TranscriptLog) Dir() string { return l.dir }

// filePath requires threadID to be validated by the caller.
func (l *TranscriptLog) filePath(threadID string) string {
	return filepath.Join(l.dir, threadID+".jsonl")
}

func normalizeDirection(direction string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(direction))
	if d != DirectionServer && d != DirectionClient {
		return "", fmt.Errorf("%w, got %q", ErrBadDirection, direction)
	}
	return d, nil
}

// Read returns every event ever appended for the thread, in append order. A
// missing file yields an empty sequence. Any unparseable line fails the whole
// read with its 1-based line number; partial results are never returned.
func (l *TranscriptLog) Read(threadID string) ([]TranscriptEvent, error) {
	if err := ident.Validate(threadID, "thread id"); err != nil {
		return nil, err
	}

	p := l.filePath(threadID)
	raw, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return []TranscriptEvent{}, nil
		}
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	out := []TranscriptEvent{}
	for i, line := range strings.Split(string(raw), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		var evt TranscriptEvent
		if err := json.Unmarshal([]byte(trimmed), &evt); err != nil {
			return nil, fmt.Errorf("parse transcript line %d (%s): %w", i+1, p, err)
		}
		out = append(out, evt)
	}
	return out, nil
}

// AppendOne validates the event, then appends one JSON line to the thread's
// file, creating the file and the transcripts directory as needed.
func (l *TranscriptLog) AppendOne(evt TranscriptEvent) error {
	if err := ident.Validate(evt.ThreadID, "thread id"); err != nil {
		return err
	}
	direction, err := normalizeDirection(evt.Direction)
	if err != nil {
		return err
	}
	evt.Direction = direction

	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("serialize transcript event: %w", err)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create transcripts directory: %w", err)
	}
	return appendLines(l.filePath(evt.ThreadID), append(line, '\n'))
}

// AppendBatch appends many events, possibly spanning threads, with one
// open-append-close cycle per distinct thread. Every event is validated up
// front; an invalid entry rejects the whole batch before anything is written.
// Per thread, the result is identical to sequential AppendOne calls in the
// original relative order.
func (l *TranscriptLog) AppendBatch(events []TranscriptEvent) error {
	if len(events) == 0 {
		return nil
	}

	byThread := map[string][]byte{}
	for _, evt := range events {
		if err := ident.Validate(evt.ThreadID, "thread id"); err != nil {
			return err
		}
		direction, err := normalizeDirection(evt.Direction)
		if err != nil {
			return err
		}
		evt.Direction = direction
		line, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("serialize transcript event: %w", err)
		}
		byThread[evt.ThreadID] = append(append(byThread[evt.ThreadID], line...), '\n')
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create transcripts directory: %w", err)
	}
	for threadID, buf := range byThread {
		if err := appendLines(l.filePath(threadID), buf); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the thread's transcript file. A missing file is success.
func (l *TranscriptLog) Delete(threadID string) error {
	if err := ident.Validate(threadID, "thread id"); err != nil {
		return err
	}
	if err := os.Remove(l.filePath(threadID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

func appendLines(path string, buf []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript file: %w", err)
	}
	if _, err := f.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("append transcript: %w", err)
	}
	return f.Close()
}
