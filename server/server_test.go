package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vigil/aggregate"
	"vigil/monitor"
	"vigil/probe"
	"vigil/report"
)

func reportWith(overall probe.State) monitor.Report {
	return monitor.Report{
		Snapshot: aggregate.Snapshot{
			Timestamp: time.Now(),
			Overall:   overall,
			Results: []aggregate.Result{
				{Result: probe.Result{Probe: "api", State: overall}, Mandatory: true},
			},
		},
	}
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(":0", report.New(report.Config{}))
	ts := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestServer_Liveness(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK" {
		t.Errorf("body = %q, want 'OK'", body)
	}
}

func TestServer_StatusBeforeFirstSnapshot(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 before the first snapshot", resp.StatusCode)
	}

	var doc map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if doc["overall"] != "unknown" {
		t.Errorf("overall = %v, want 'unknown'", doc["overall"])
	}
}

func TestServer_StatusMirrorsOverall(t *testing.T) {
	tests := []struct {
		name       string
		overall    probe.State
		wantStatus int
	}{
		{"pass", probe.StatePass, http.StatusOK},
		{"warn", probe.StateWarn, http.StatusOK},
		{"fail", probe.StateFail, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ts := testServer(t)
			s.Publish(reportWith(tt.overall))

			resp, err := http.Get(ts.URL + "/status")
			if err != nil {
				t.Fatalf("GET /status: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var doc report.JSONReport
			if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if doc.Overall != tt.overall.String() {
				t.Errorf("overall = %v, want %v", doc.Overall, tt.overall)
			}
		})
	}
}

func TestServer_WebSocketPush(t *testing.T) {
	s, ts := testServer(t)
	s.Publish(reportWith(probe.StatePass))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/status/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	defer conn.Close()

	// The latest snapshot arrives on connect.
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read initial payload: %v", err)
	}
	var doc report.JSONReport
	if err := json.Unmarshal(msg, &doc); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if doc.Overall != "pass" {
		t.Errorf("initial overall = %v, want 'pass'", doc.Overall)
	}

	// A new publish is pushed to the open connection.
	s.Publish(reportWith(probe.StateFail))
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read pushed payload: %v", err)
	}
	if err := json.Unmarshal(msg, &doc); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if doc.Overall != "fail" {
		t.Errorf("pushed overall = %v, want 'fail'", doc.Overall)
	}
}

func TestServer_Metrics(t *testing.T) {
	_, ts := testServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestUpgrader_CheckOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin header", "", "vigil.local:8787", true},
		{"same origin", "http://vigil.local:8787", "vigil.local:8787", true},
		{"cross origin", "http://evil.example", "vigil.local:8787", false},
		{"malformed origin", "://bad", "vigil.local:8787", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://"+tt.host+"/status/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := upgrader.CheckOrigin(r); got != tt.want {
				t.Errorf("CheckOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}
