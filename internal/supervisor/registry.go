// Package supervisor starts, tracks, and stops the per-workspace coworker
// server processes. Each workspace has at most one live server; the registry
// owns every child process handle it holds and is the only releaser of the
// underlying OS resources.
package supervisor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mweinbach/agent-coworker/internal/ident"
)

const (
	defaultStartupTimeout = 15 * time.Second
	terminateWait         = 3 * time.Second
)

// Handle is one live workspace server. It is created only after a successful
// handshake and owned exclusively by the registry entry that holds it.
type Handle struct {
	workspaceID string
	url         string
	cmd         *exec.Cmd
	done        chan struct{}
}

// URL returns the server's advertised base URL.
func (h *Handle) URL() string { return h.url }

// Exited reports whether the process has been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Config tunes a Registry. The zero value is usable; NewRegistry fills in
// defaults.
type Config struct {
	Logger *log.Logger

	// StartupTimeout bounds the wait for the server's handshake line.
	StartupTimeout time.Duration

	// NewCommand builds the launch command for a workspace server. Defaults
	// to locating the coworker-server sidecar binary. Tests inject fakes
	// here.
	NewCommand func(workspacePath string, yolo bool) (*exec.Cmd, error)

	// OnDiagnostic, when set, receives every stderr line a running server
	// emits, after it has been logged.
	OnDiagnostic func(workspaceID, line string)
}

// Registry maps workspace IDs to live server handles. One mutex guards the
// whole map; entries change rarely (workspace open/close) relative to reads.
type Registry struct {
	cfg Config

	mu      sync.Mutex
	servers map[string]*Handle
}

func NewRegistry(cfg Config) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "supervisor"})
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = defaultStartupTimeout
	}
	if cfg.NewCommand == nil {
		cfg.NewCommand = newServerCommand
	}
	return &Registry{cfg: cfg, servers: map[string]*Handle{}}
}

// EnsureRunning returns the URL of a live server for the workspace, spawning
// one if none is registered or the registered one has exited. Repeated calls
// for a still-live workspace return the cached URL without spawning.
func (r *Registry) EnsureRunning(ctx context.Context, workspaceID, workspacePath string, yolo bool) (string, error) {
	if err := ident.Validate(workspaceID, "workspace id"); err != nil {
		return "", err
	}
	if err := validateWorkspacePath(workspacePath); err != nil {
		return "", err
	}

	r.mu.Lock()
	if h, ok := r.servers[workspaceID]; ok {
		if !h.Exited() {
			url := h.url
			r.mu.Unlock()
			return url, nil
		}
		// Stale entry: the process exited without an explicit stop.
		delete(r.servers, workspaceID)
		r.cfg.Logger.Info("removing exited server", "workspace", workspaceID)
	}
	r.mu.Unlock()

	// The lock is not held across spawn and handshake, so two concurrent
	// calls for the same workspace can both spawn. The second insert wins
	// and the displaced process is terminated below. Acceptable for a single
	// interactive user; a multi-caller deployment would need a per-workspace
	// lock here instead.
	h, err := r.spawn(ctx, workspaceID, workspacePath, yolo)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	displaced := r.servers[workspaceID]
	r.servers[workspaceID] = h
	r.mu.Unlock()
	if displaced != nil {
		go r.terminate(displaced)
	}
	return h.url, nil
}

func (r *Registry) spawn(ctx context.Context, workspaceID, workspacePath string, yolo bool) (*Handle, error) {
	cmd, err := r.cfg.NewCommand(workspacePath, yolo)
	if err != nil {
		return nil, err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture server stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("capture server stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn server process: %w", err)
	}

	h := &Handle{workspaceID: workspaceID, cmd: cmd, done: make(chan struct{})}
	go func() {
		_ = cmd.Wait()
		close(h.done)
	}()
	go func() {
		err := drainLines(stderr, func(line string) {
			r.cfg.Logger.Debug("server stderr", "workspace", workspaceID, "line", line)
			if r.cfg.OnDiagnostic != nil {
				r.cfg.OnDiagnostic(workspaceID, line)
			}
		})
		if err != nil {
			r.cfg.Logger.Warn("server stderr drain stopped", "workspace", workspaceID, "err", err)
		}
	}()

	msg, err := awaitListening(ctx, stdout, r.cfg.StartupTimeout)
	if err != nil {
		// Never leave a half-started process running and unregistered.
		r.terminate(h)
		return nil, err
	}
	h.url = msg.URL
	r.cfg.Logger.Info("workspace server listening",
		"workspace", workspaceID, "url", msg.URL, "pid", cmd.Process.Pid)
	return h, nil
}

// Stop terminates and removes the workspace's server, if any. Stopping a
// workspace with no server is a no-op.
func (r *Registry) Stop(workspaceID string) error {
	if err := ident.Validate(workspaceID, "workspace id"); err != nil {
		return err
	}
	r.mu.Lock()
	h := r.servers[workspaceID]
	delete(r.servers, workspaceID)
	r.mu.Unlock()
	if h != nil {
		r.terminate(h)
	}
	return nil
}

// StopAll terminates every registered server. Idempotent; invoked both by an
// explicit stop-everything request and by application shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	handles := make([]*Handle, 0, len(r.servers))
	for _, h := range r.servers {
		handles = append(handles, h)
	}
	r.servers = map[string]*Handle{}
	r.mu.Unlock()

	for _, h := range handles {
		r.terminate(h)
	}
}

// terminate shuts a process down in two phases: a cooperative termination
// request, a bounded wait, then an unconditional kill. It always returns and
// is safe to call on an already-exited handle.
func (r *Registry) terminate(h *Handle) {
	if h == nil || h.cmd == nil || h.cmd.Process == nil {
		return
	}
	if h.Exited() {
		return
	}

	_ = signalTerm(h.cmd)
	select {
	case <-h.done:
		return
	case <-time.After(terminateWait):
	}

	r.cfg.Logger.Warn("server did not exit after cooperative shutdown, killing",
		"workspace", h.workspaceID, "pid", h.cmd.Process.Pid)
	_ = forceKill(h.cmd)
	<-h.done
}

func validateWorkspacePath(p string) error {
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("workspace path does not exist: %s: %w", p, os.ErrNotExist)
		}
		return fmt.Errorf("stat workspace path %s: %w", p, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: workspace path is not a directory: %s", ident.ErrInvalid, p)
	}
	return nil
}
