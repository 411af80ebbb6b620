package health

import (
	"runtime"
	"testing"
	"time"
)

func TestCollect(t *testing.T) {
	s := Collect(Options{
		StartedAt: time.Now().Add(-90 * time.Second),
		Transport: "stdio",
		Shells:    2,
	})
	if s.Status != "healthy" || s.Transport != "stdio" || s.Shells != 2 {
		t.Errorf("snapshot = %+v", s)
	}
	if s.Uptime != "1m30s" {
		t.Errorf("uptime = %q", s.Uptime)
	}
	if s.Runtime.Version != runtime.Version() || s.Goroutines <= 0 {
		t.Errorf("runtime info = %+v", s.Runtime)
	}
	if _, err := time.Parse(time.RFC3339, s.Timestamp); err != nil {
		t.Errorf("timestamp %q: %v", s.Timestamp, err)
	}
}

func TestCollectWithoutStart(t *testing.T) {
	if s := Collect(Options{}); s.Uptime != "" {
		t.Errorf("uptime = %q, want empty", s.Uptime)
	}
}
