package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autopub/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil || st != nil {
			t.Fatalf("Open(%q) = (%v, %v), want disabled", driver, st, err)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "postgres"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestFileStoreJobAppend(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "autopub.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	err = st.AppendJob(context.Background(), JobRecord{
		JobID:    "douyin_alice",
		Kind:     "login",
		Platform: "douyin",
		Account:  "alice",
		State:    "completed",
		TookMS:   1200,
	})
	if err != nil {
		t.Fatalf("AppendJob: %v", err)
	}

	b, err := os.ReadFile(strings.TrimSuffix(path, ".db") + ".jobs.jsonl")
	if err != nil {
		t.Fatalf("read audit: %v", err)
	}
	if !strings.Contains(string(b), `"douyin_alice"`) {
		t.Fatalf("audit line missing job id: %s", b)
	}
}

func TestFileStoreDedupRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "autopub.db")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	until := time.Now().Add(time.Hour).Truncate(time.Millisecond)
	if err := st.PutDedup(context.Background(), "escalate:douyin_alice", until); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	got, ok, err := st.GetDedup(context.Background(), "escalate:douyin_alice")
	if err != nil || !ok || !got.Equal(until) {
		t.Fatalf("GetDedup = (%v, %v, %v), want (%v, true, nil)", got, ok, err, until)
	}

	// Journal must survive a close/reopen cycle.
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	st2, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, ok, err = st2.GetDedup(context.Background(), "escalate:douyin_alice")
	if err != nil || !ok || !got.Equal(until) {
		t.Fatalf("replayed GetDedup = (%v, %v, %v)", got, ok, err)
	}
}

func TestFileStoreUnknownKeyMisses(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "a.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	_, ok, err := st.GetDedup(context.Background(), "missing")
	if err != nil || ok {
		t.Fatalf("GetDedup(missing) = (%v, %v)", ok, err)
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	st, err := Open(Config{
		Driver:      "sqlite",
		Path:        filepath.Join(t.TempDir(), "autopub.sqlite"),
		BusyTimeout: time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer st.Close()

	if err := st.AppendJob(context.Background(), JobRecord{JobID: "p-1", Kind: "publish", Platform: "tiktok", Account: "bob", State: "failed", Error: "rejected"}); err != nil {
		t.Fatalf("AppendJob: %v", err)
	}

	until := time.Now().Add(30 * time.Minute).Truncate(time.Millisecond)
	if err := st.PutDedup(context.Background(), "k", until); err != nil {
		t.Fatalf("PutDedup: %v", err)
	}
	got, ok, err := st.GetDedup(context.Background(), "k")
	if err != nil || !ok || !got.Equal(until) {
		t.Fatalf("GetDedup = (%v, %v, %v)", got, ok, err)
	}
}
