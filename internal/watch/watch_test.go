package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"autopub/pkg/logx"
)

type recordingEscalator struct {
	mu    sync.Mutex
	keys  []string
	paths []string
}

func (r *recordingEscalator) Escalate(ctx context.Context, key, imagePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
	r.paths = append(r.paths, imagePath)
	return nil
}

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
}

func TestScanEscalatesStaleArtifactsOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	now := time.Now()

	touch(t, filepath.Join(dir, "douyin_alice.json"), now.Add(-48*time.Hour))
	touch(t, filepath.Join(dir, "tiktok_bob.json"), now.Add(-time.Minute))
	touch(t, filepath.Join(dir, "notes.txt"), now.Add(-48*time.Hour))
	touch(t, filepath.Join(dir, "douyin_login_qr.png"), now.Add(-48*time.Hour))

	esc := &recordingEscalator{}
	s := New(Config{Enabled: true, MaxAge: 24 * time.Hour}, dir, esc, logx.Nop())

	if got := s.Scan(context.Background()); got != 1 {
		t.Fatalf("Scan = %d escalations, want 1", got)
	}
	if len(esc.keys) != 1 || esc.keys[0] != "douyin_alice" {
		t.Fatalf("escalated keys = %v, want [douyin_alice]", esc.keys)
	}
	if want := filepath.Join(dir, "douyin_login_qr.png"); esc.paths[0] != want {
		t.Fatalf("image path = %q, want %q", esc.paths[0], want)
	}
}

func TestScanMissingDir(t *testing.T) {
	t.Parallel()
	esc := &recordingEscalator{}
	s := New(Config{Enabled: true}, filepath.Join(t.TempDir(), "absent"), esc, logx.Nop())
	if got := s.Scan(context.Background()); got != 0 {
		t.Fatalf("Scan = %d, want 0", got)
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: false}, t.TempDir(), &recordingEscalator{}, logx.Nop())
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop(context.Background())
}

func TestStartRejectsBadSpec(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true, Spec: "not a cron spec"}, t.TempDir(), &recordingEscalator{}, logx.Nop())
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
}
