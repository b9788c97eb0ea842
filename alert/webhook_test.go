package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNotifier_Notify(t *testing.T) {
	var body []byte
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewNotifier(WebhookConfig{URL: srv.URL})
	events := []Event{
		{Probe: "db", StateText: "fail", Consecutive: 3, Timestamp: time.Now()},
	}

	if err := n.Notify(context.Background(), events); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %v, want application/json", contentType)
	}

	var payload struct {
		Source string  `json:"source"`
		Alerts []Event `json:"alerts"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Source != "vigil" {
		t.Errorf("source = %v, want 'vigil'", payload.Source)
	}
	if len(payload.Alerts) != 1 || payload.Alerts[0].Probe != "db" {
		t.Errorf("alerts = %+v, want one event for 'db'", payload.Alerts)
	}
}

func TestNotifier_NoEventsNoRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	n := NewNotifier(WebhookConfig{URL: srv.URL})
	if err := n.Notify(context.Background(), nil); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if called {
		t.Error("webhook was called with zero events")
	}
}

func TestNotifier_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := NewNotifier(WebhookConfig{URL: srv.URL})
	err := n.Notify(context.Background(), []Event{{Probe: "db"}})
	if err == nil {
		t.Fatal("Notify() should fail on a 5xx response")
	}
}

func TestNotifier_Unreachable(t *testing.T) {
	n := NewNotifier(WebhookConfig{URL: "http://127.0.0.1:1", Timeout: time.Second})
	err := n.Notify(context.Background(), []Event{{Probe: "db"}})
	if err == nil {
		t.Fatal("Notify() should fail when the webhook is unreachable")
	}
}
