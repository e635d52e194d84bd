package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autopub/internal/dispatch"
	"autopub/internal/eventbus"
	"autopub/pkg/logx"
)

func TestRecorderAppendsJobEvents(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "autopub.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	bus := eventbus.New()
	rec := NewRecorder(st, bus, logx.Nop())
	rec.Start(context.Background())

	bus.Publish(eventbus.Event{
		Type: dispatch.EventJobFailed,
		Data: dispatch.JobEvent{
			ID:       "tiktok_bob",
			Kind:     "login",
			Platform: "tiktok",
			Account:  "bob",
			Took:     3 * time.Second,
			Error:    "QR scan timed out",
		},
	})
	// Non-job events on the bus are ignored.
	bus.Publish(eventbus.Event{Type: "config.reloaded", Data: "noise"})

	auditPath := strings.TrimSuffix(path, ".db") + ".jobs.jsonl"
	deadline := time.Now().Add(2 * time.Second)
	var content string
	for time.Now().Before(deadline) {
		b, _ := os.ReadFile(auditPath)
		content = string(b)
		if content != "" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	rec.Stop()

	if !strings.Contains(content, `"tiktok_bob"`) || !strings.Contains(content, `"failed"`) {
		t.Fatalf("audit content = %q", content)
	}
	if strings.Contains(content, "noise") {
		t.Fatal("non-job event must not be recorded")
	}
}

func TestRecorderDisabledStoreIsNoop(t *testing.T) {
	t.Parallel()
	rec := NewRecorder(nil, eventbus.New(), logx.Nop())
	rec.Start(context.Background())
	rec.Stop()
}
