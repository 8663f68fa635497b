package supervisor

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrStartupTimeout marks a spawn whose server never announced itself within
// the startup window. It is distinct from a protocol error so callers can
// tell "broken" apart from "slow".
var ErrStartupTimeout = errors.New("server startup timed out")

// ErrStartupFailed marks a spawn whose server closed its stdout before
// emitting the startup line, usually because it crashed on launch. Reported
// immediately; a dead child must not be mistaken for a slow one.
var ErrStartupFailed = errors.New("server exited before startup handshake")

// listeningMessage is the structured first stdout line of a workspace
// server started with --json. Only URL is consumed; the rest is accepted for
// forward compatibility.
type listeningMessage struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	Port int    `json:"port"`
	Cwd  string `json:"cwd"`
}

// awaitListening reads exactly one line from the server's stdout and parses
// it as a listeningMessage. A dedicated goroutine blocks on the read and
// forwards the line over a one-shot channel; the caller waits on that channel
// bounded by timeout and by ctx.
func awaitListening(ctx context.Context, stdout io.Reader, timeout time.Duration) (listeningMessage, error) {
	type readResult struct {
		line string
		err  error
	}
	results := make(chan readResult, 1)
	go func() {
		line, err := bufio.NewReader(stdout).ReadString('\n')
		if err != nil && strings.TrimSpace(line) == "" {
			results <- readResult{err: err}
			return
		}
		results <- readResult{line: line}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		if res.err != nil {
			return listeningMessage{}, fmt.Errorf("%w: %v", ErrStartupFailed, res.err)
		}
		var msg listeningMessage
		if err := json.Unmarshal([]byte(strings.TrimSpace(res.line)), &msg); err != nil {
			return listeningMessage{}, fmt.Errorf("parse server startup line %q: %w", strings.TrimSpace(res.line), err)
		}
		if msg.URL == "" {
			return listeningMessage{}, fmt.Errorf("server startup line %q has no url", strings.TrimSpace(res.line))
		}
		return msg, nil
	case <-timer.C:
		return listeningMessage{}, fmt.Errorf("%w after %s", ErrStartupTimeout, timeout)
	case <-ctx.Done():
		return listeningMessage{}, ctx.Err()
	}
}

// drainLines reads r until EOF and hands each line to sink. It runs for the
// lifetime of the process pipe and never affects program flow. A non-nil
// return means the drain stopped early (for example a line over the buffer
// cap) and later output was dropped.
func drainLines(r io.Reader, sink func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 4096), 1024*1024)
	for scanner.Scan() {
		sink(scanner.Text())
	}
	return scanner.Err()
}
