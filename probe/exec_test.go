package probe

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecProbe_ExitZero(t *testing.T) {
	p := NewExecProbe(ExecConfig{Name: "true", Command: "true"})
	result := p.Probe(context.Background())

	if result.State != StatePass {
		t.Errorf("State = %v, want StatePass (%s)", result.State, result.Detail)
	}
	if result.Detail != "exit 0" {
		t.Errorf("Detail = %v, want 'exit 0'", result.Detail)
	}
}

func TestExecProbe_NonzeroExit(t *testing.T) {
	p := NewExecProbe(ExecConfig{Name: "false", Command: "echo broken; exit 3"})
	result := p.Probe(context.Background())

	if result.State != StateFail {
		t.Errorf("State = %v, want StateFail", result.State)
	}
	if result.Err == nil {
		t.Error("Err should be set for a nonzero exit")
	}
	if !strings.Contains(result.Detail, "broken") {
		t.Errorf("Detail = %q, should include the command output", result.Detail)
	}
}

func TestExecProbe_Timeout(t *testing.T) {
	p := NewExecProbe(ExecConfig{Name: "sleep", Command: "sleep 10", Timeout: 50 * time.Millisecond})
	result := p.Probe(context.Background())

	if result.State != StateFail {
		t.Errorf("State = %v, want StateFail", result.State)
	}
	if result.Detail != DetailTimeout {
		t.Errorf("Detail = %v, want %v", result.Detail, DetailTimeout)
	}
}
