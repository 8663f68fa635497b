package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mweinbach/agent-coworker/internal/store"
	"github.com/mweinbach/agent-coworker/internal/supervisor"
)

// App is the desktop binding surface. Every exported method is callable from
// the frontend; requests and responses marshal through JSON.
type App struct {
	ctx context.Context

	registry    *supervisor.Registry
	state       *store.StateStore
	transcripts *store.TranscriptLog
}

type EnsureServerRequest struct {
	WorkspaceID   string `json:"workspaceId"`
	WorkspacePath string `json:"workspacePath"`
	Yolo          bool   `json:"yolo"`
}

type EnsureServerResponse struct {
	URL string `json:"url"`
}

type AppendEventRequest struct {
	TS        string `json:"ts"`
	ThreadID  string `json:"threadId"`
	Direction string `json:"direction"`
	Payload   any    `json:"payload"`
}

func NewApp(registry *supervisor.Registry, state *store.StateStore, transcripts *store.TranscriptLog) *App {
	return &App{registry: registry, state: state, transcripts: transcripts}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

func (a *App) shutdown(ctx context.Context) {
	a.registry.StopAll()
}

// EnsureWorkspaceServer returns the URL of a running server for the
// workspace, starting one if needed.
func (a *App) EnsureWorkspaceServer(req EnsureServerRequest) (*EnsureServerResponse, error) {
	url, err := a.registry.EnsureRunning(a.ctx, req.WorkspaceID, req.WorkspacePath, req.Yolo)
	if err != nil {
		return nil, err
	}
	return &EnsureServerResponse{URL: url}, nil
}

func (a *App) StopWorkspaceServer(workspaceID string) error {
	return a.registry.Stop(workspaceID)
}

func (a *App) StopAllWorkspaceServers() {
	a.registry.StopAll()
}

func (a *App) LoadState() (*store.PersistedState, error) {
	return a.state.Load()
}

func (a *App) SaveState(st *store.PersistedState) error {
	return a.state.Save(st)
}

func (a *App) ReadTranscript(threadID string) ([]store.TranscriptEvent, error) {
	return a.transcripts.Read(threadID)
}

// AppendTranscriptEvent records one event. An empty TS is stamped with the
// current time.
func (a *App) AppendTranscriptEvent(req AppendEventRequest) error {
	ts := req.TS
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}
	evt := store.TranscriptEvent{
		TS:        ts,
		ThreadID:  req.ThreadID,
		Direction: req.Direction,
		Payload:   req.Payload,
	}
	return a.transcripts.AppendOne(evt)
}

func (a *App) AppendTranscriptBatch(events []store.TranscriptEvent) error {
	return a.transcripts.AppendBatch(events)
}

func (a *App) DeleteTranscript(threadID string) error {
	return a.transcripts.Delete(threadID)
}

func (a *App) NewWorkspaceID() string {
	return uuid.NewString()
}

func (a *App) NewThreadID() string {
	return uuid.NewString()
}
