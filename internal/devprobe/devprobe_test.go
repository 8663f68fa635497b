package devprobe

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestParseDebugPort(t *testing.T) {
	cases := []struct {
		raw  string
		port int
		ok   bool
	}{
		{"9222", 9222, true},
		{"127.0.0.1:9222", 9222, true},
		{"localhost:0", 0, true},
		{" 9222 ", 9222, true},
		{"", 0, false},
		{"not-a-port", 0, false},
		{"127.0.0.1:", 0, false},
		{"70000", 0, false},
		{"-1", 0, false},
	}
	for _, c := range cases {
		port, ok := parseDebugPort(c.raw)
		if ok != c.ok || port != c.port {
			t.Fatalf("parseDebugPort(%q) = (%d, %v), want (%d, %v)", c.raw, port, ok, c.port, c.ok)
		}
	}
}

func TestMaybeStartDisabledByDefault(t *testing.T) {
	t.Setenv(EnableEnv, "")
	h := NewHub(quietLogger())
	if addr := h.MaybeStart(); addr != "" {
		h.Close()
		t.Fatalf("probe started without being enabled: %s", addr)
	}
}

func TestDiscoveryDocuments(t *testing.T) {
	h := NewHub(quietLogger())
	addr, err := h.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Close()

	resp, err := http.Get("http://" + addr + "/json/version")
	if err != nil {
		t.Fatalf("GET /json/version: %v", err)
	}
	defer resp.Body.Close()
	var version map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&version); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	wsURL, _ := version["webSocketDebuggerUrl"].(string)
	if !strings.HasPrefix(wsURL, "ws://127.0.0.1:") || !strings.HasSuffix(wsURL, "/ws") {
		t.Fatalf("webSocketDebuggerUrl = %q", wsURL)
	}

	resp2, err := http.Get("http://" + addr + "/json/list")
	if err != nil {
		t.Fatalf("GET /json/list: %v", err)
	}
	defer resp2.Body.Close()
	var list []map[string]any
	if err := json.NewDecoder(resp2.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list has %d targets, want 1", len(list))
	}
	if got, _ := list[0]["webSocketDebuggerUrl"].(string); got != wsURL {
		t.Fatalf("list url %q != version url %q", got, wsURL)
	}
}

func TestPublishReachesWebsocketClient(t *testing.T) {
	h := NewHub(quietLogger())
	addr, err := h.Start(0)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The client registers asynchronously after the upgrade; retry until
	// the published line lands.
	got := make(chan diagnosticLine, 1)
	go func() {
		var line diagnosticLine
		if err := conn.ReadJSON(&line); err == nil {
			got <- line
		}
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		h.Publish("ws-1", "server booted")
		select {
		case line := <-got:
			if line.WorkspaceID != "ws-1" || line.Line != "server booted" {
				t.Fatalf("got %+v", line)
			}
			return
		case <-deadline:
			t.Fatal("published line never reached the client")
		case <-tick.C:
		}
	}
}

func TestPublishWithoutClientsIsNoop(t *testing.T) {
	h := NewHub(quietLogger())
	h.Publish("ws-1", "nobody listening")
}
