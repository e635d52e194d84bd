package status

import (
	"fmt"
	"sync"
	"testing"
)

func TestGetUnknownReturnsNotFound(t *testing.T) {
	t.Parallel()
	s := NewStore()
	got := s.Get("never-submitted")
	if got.State != StateNotFound {
		t.Fatalf("State = %q, want %q", got.State, StateNotFound)
	}
	if got.Err != "" {
		t.Fatalf("Err = %q, want empty", got.Err)
	}
}

func TestLifecycleTransitions(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Set("douyin_alice", StateInProgress)
	if got := s.Get("douyin_alice").State; got != StateInProgress {
		t.Fatalf("State = %q, want in_progress", got)
	}

	s.Fail("douyin_alice", "sms code rejected")
	got := s.Get("douyin_alice")
	if got.State != StateFailed || got.Err != "sms code rejected" {
		t.Fatalf("unexpected status %+v", got)
	}
	if !got.State.Terminal() {
		t.Fatal("failed should be terminal")
	}
}

func TestConcurrentWritersNeverCorrupt(t *testing.T) {
	t.Parallel()
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		id := fmt.Sprintf("tiktok_user%d", i%5)
		go func() {
			defer wg.Done()
			s.Set(id, StateCompleted)
		}()
		go func() {
			defer wg.Done()
			s.Fail(id, "boom")
		}()
	}
	wg.Wait()

	// A final read returns one of the two terminal outcomes, never a torn mix.
	for i := 0; i < 5; i++ {
		got := s.Get(fmt.Sprintf("tiktok_user%d", i))
		switch {
		case got.State == StateCompleted && got.Err == "":
		case got.State == StateFailed && got.Err == "boom":
		default:
			t.Fatalf("mixed status observed: %+v", got)
		}
	}
}
