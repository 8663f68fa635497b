package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestWorkspaceAddAndList(t *testing.T) {
	home := t.TempDir()
	ws := t.TempDir()

	out, err := runCLI(t, "--home", home, "workspace", "add", ws, "--name", "demo")
	if err != nil {
		t.Fatalf("workspace add: %v", err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		t.Fatal("workspace add printed no id")
	}

	// Adding the same path again reuses the record.
	out2, err := runCLI(t, "--home", home, "workspace", "add", ws)
	if err != nil {
		t.Fatalf("second workspace add: %v", err)
	}
	if strings.TrimSpace(out2) != id {
		t.Fatalf("duplicate add returned %q, want %q", strings.TrimSpace(out2), id)
	}

	listOut, err := runCLI(t, "--home", home, "workspace", "list")
	if err != nil {
		t.Fatalf("workspace list: %v", err)
	}
	if !strings.Contains(listOut, id) || !strings.Contains(listOut, "demo") {
		t.Fatalf("list output missing workspace: %q", listOut)
	}
}

func TestWorkspaceAddRejectsMissingPath(t *testing.T) {
	home := t.TempDir()
	if _, err := runCLI(t, "--home", home, "workspace", "add", "/no/such/dir"); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestStatePrintsDefaultDocument(t *testing.T) {
	home := t.TempDir()
	out, err := runCLI(t, "--home", home, "state")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("state output is not JSON: %v\n%s", err, out)
	}
	if v, _ := doc["version"].(float64); v != 1 {
		t.Fatalf("version = %v", doc["version"])
	}
}

func TestTranscriptAppendShowRemove(t *testing.T) {
	home := t.TempDir()

	if _, err := runCLI(t, "--home", home, "transcript", "append", "th-1", "client", `{"text":"hi"}`); err != nil {
		t.Fatalf("transcript append: %v", err)
	}
	if _, err := runCLI(t, "--home", home, "transcript", "append", "th-1", "server", `{"text":"hello"}`); err != nil {
		t.Fatalf("second transcript append: %v", err)
	}

	out, err := runCLI(t, "--home", home, "transcript", "show", "th-1")
	if err != nil {
		t.Fatalf("transcript show: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("show printed %d lines, want 2\n%s", len(lines), out)
	}
	if !strings.Contains(lines[0], `"client"`) || !strings.Contains(lines[1], `"server"`) {
		t.Fatalf("unexpected transcript order:\n%s", out)
	}

	if _, err := runCLI(t, "--home", home, "transcript", "rm", "th-1"); err != nil {
		t.Fatalf("transcript rm: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "transcripts", "th-1.jsonl")); !os.IsNotExist(err) {
		t.Fatalf("transcript file still present after rm: %v", err)
	}

	// Removing again stays quiet.
	if _, err := runCLI(t, "--home", home, "transcript", "rm", "th-1"); err != nil {
		t.Fatalf("second transcript rm: %v", err)
	}
}

func TestTranscriptAppendRejectsBadDirection(t *testing.T) {
	home := t.TempDir()
	if _, err := runCLI(t, "--home", home, "transcript", "append", "th-1", "sideways", `{}`); err == nil {
		t.Fatal("expected error for bad direction")
	}
}

func TestTranscriptAppendRejectsBadPayload(t *testing.T) {
	home := t.TempDir()
	if _, err := runCLI(t, "--home", home, "transcript", "append", "th-1", "client", `{not json`); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
