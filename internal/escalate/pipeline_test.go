package escalate

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"autopub/internal/storage"
	"autopub/pkg/logx"
)

type fakeSender struct {
	mu        sync.Mutex
	receivers map[string]int
	recvErr   error
	textErr   error
	imageErr  error

	texts  []string
	images []string
	toWhom []string
}

func (f *fakeSender) Receivers(ctx context.Context) (map[string]int, error) {
	return f.receivers, f.recvErr
}

func (f *fakeSender) SendText(ctx context.Context, receiver, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.textErr != nil {
		return f.textErr
	}
	f.toWhom = append(f.toWhom, receiver)
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeSender) SendImageURL(ctx context.Context, receiver, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageErr != nil {
		return f.imageErr
	}
	f.images = append(f.images, imageURL)
	return nil
}

type fakeArtifact struct {
	url string
	err error
	n   int
}

func (f *fakeArtifact) Upload(ctx context.Context, localPath string) (string, error) {
	f.n++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type fakeWorkflow struct {
	urls []string
	err  error
}

func (f *fakeWorkflow) Trigger(ctx context.Context, imageURL string) error {
	f.urls = append(f.urls, imageURL)
	return f.err
}

func newPipeline(t *testing.T, cfg Config, s Sender, a ArtifactStore, w WorkflowTrigger, st storage.Store) *Pipeline {
	t.Helper()
	return New(cfg, s, a, w, st, logx.Nop())
}

func TestSelectReceiverMinMetric(t *testing.T) {
	t.Parallel()
	s := &fakeSender{receivers: map[string]int{"u1": 5, "u2": 2, "u3": 9}}
	p := newPipeline(t, Config{}, s, &fakeArtifact{}, nil, nil)

	got, err := p.SelectReceiver(context.Background())
	if err != nil {
		t.Fatalf("SelectReceiver: %v", err)
	}
	if got != "u2" {
		t.Fatalf("SelectReceiver = %q, want u2", got)
	}
}

func TestSelectReceiverTieBreakDeterministic(t *testing.T) {
	t.Parallel()
	s := &fakeSender{receivers: map[string]int{"zeta": 1, "alpha": 1, "mid": 1}}
	p := newPipeline(t, Config{}, s, &fakeArtifact{}, nil, nil)

	for i := 0; i < 20; i++ {
		got, err := p.SelectReceiver(context.Background())
		if err != nil || got != "alpha" {
			t.Fatalf("iteration %d: got (%q, %v), want alpha", i, got, err)
		}
	}
}

func TestSelectReceiverEmpty(t *testing.T) {
	t.Parallel()
	s := &fakeSender{receivers: map[string]int{}}
	p := newPipeline(t, Config{}, s, &fakeArtifact{}, nil, nil)

	if _, err := p.SelectReceiver(context.Background()); !errors.Is(err, ErrNoReceiver) {
		t.Fatalf("err = %v, want ErrNoReceiver", err)
	}
}

func TestSelectReceiverQueryFailure(t *testing.T) {
	t.Parallel()
	s := &fakeSender{recvErr: errors.New("backend down")}
	p := newPipeline(t, Config{}, s, &fakeArtifact{}, nil, nil)

	if _, err := p.SelectReceiver(context.Background()); !errors.Is(err, ErrNoReceiver) {
		t.Fatalf("err = %v, want ErrNoReceiver", err)
	}
}

func TestEscalateDeliversTextImageAndWorkflow(t *testing.T) {
	t.Parallel()
	s := &fakeSender{receivers: map[string]int{"ops": 0}}
	a := &fakeArtifact{url: "http://minio.local/auto-img/auto_img/x/qr.png"}
	w := &fakeWorkflow{}
	p := newPipeline(t, Config{}, s, a, w, nil)

	if err := p.Escalate(context.Background(), "douyin_alice", "/tmp/qr.png"); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if len(s.texts) != 1 || len(s.images) != 1 {
		t.Fatalf("sends = %d text, %d image, want 1/1", len(s.texts), len(s.images))
	}
	if s.toWhom[0] != "ops" {
		t.Fatalf("receiver = %q, want ops", s.toWhom[0])
	}
	if s.images[0] != a.url {
		t.Fatalf("image url = %q, want %q", s.images[0], a.url)
	}
	if len(w.urls) != 1 || w.urls[0] != a.url {
		t.Fatalf("workflow urls = %v", w.urls)
	}
}

func TestEscalateUploadFailureAborts(t *testing.T) {
	t.Parallel()
	s := &fakeSender{receivers: map[string]int{"ops": 0}}
	a := &fakeArtifact{err: errors.New("bucket unreachable")}
	p := newPipeline(t, Config{}, s, a, nil, nil)

	if err := p.Escalate(context.Background(), "k", "/tmp/qr.png"); err == nil {
		t.Fatal("expected error when upload fails")
	}
	if len(s.texts) != 0 || len(s.images) != 0 {
		t.Fatalf("nothing should be sent after failed upload, got %d/%d", len(s.texts), len(s.images))
	}
}

func TestEscalateTextFailureDoesNotBlockImage(t *testing.T) {
	t.Parallel()
	s := &fakeSender{
		receivers: map[string]int{"ops": 0},
		textErr:   errors.New("text rejected"),
	}
	a := &fakeArtifact{url: "http://host/img.png"}
	p := newPipeline(t, Config{}, s, a, nil, nil)

	if err := p.Escalate(context.Background(), "k", "/tmp/qr.png"); err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if len(s.images) != 1 {
		t.Fatalf("image sends = %d, want 1 despite text failure", len(s.images))
	}
}

func TestEscalateNoReceiverSkipsUpload(t *testing.T) {
	t.Parallel()
	s := &fakeSender{receivers: map[string]int{}}
	a := &fakeArtifact{url: "http://host/img.png"}
	p := newPipeline(t, Config{}, s, a, nil, nil)

	if err := p.Escalate(context.Background(), "k", "/tmp/qr.png"); !errors.Is(err, ErrNoReceiver) {
		t.Fatalf("err = %v, want ErrNoReceiver", err)
	}
	if a.n != 0 {
		t.Fatalf("upload called %d times, want 0", a.n)
	}
}

func TestEscalateDedupSuppressesRepeat(t *testing.T) {
	t.Parallel()
	st, err := storage.Open(storage.Config{
		Driver: "file",
		Path:   filepath.Join(t.TempDir(), "autopub.db"),
	}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	s := &fakeSender{receivers: map[string]int{"ops": 0}}
	a := &fakeArtifact{url: "http://host/img.png"}
	p := newPipeline(t, Config{DedupWindow: time.Hour}, s, a, nil, st)

	if err := p.Escalate(context.Background(), "douyin_alice", "/tmp/qr.png"); err != nil {
		t.Fatalf("first escalate: %v", err)
	}
	if err := p.Escalate(context.Background(), "douyin_alice", "/tmp/qr.png"); err != nil {
		t.Fatalf("second escalate: %v", err)
	}
	if len(s.texts) != 1 {
		t.Fatalf("text sends = %d, want 1 (second suppressed)", len(s.texts))
	}

	// A different key is not suppressed.
	if err := p.Escalate(context.Background(), "tiktok_bob", "/tmp/qr.png"); err != nil {
		t.Fatalf("third escalate: %v", err)
	}
	if len(s.texts) != 2 {
		t.Fatalf("text sends = %d, want 2", len(s.texts))
	}
}

func TestEscalateRateLimit(t *testing.T) {
	t.Parallel()
	s := &fakeSender{receivers: map[string]int{"ops": 0}}
	a := &fakeArtifact{url: "http://host/img.png"}
	p := newPipeline(t, Config{RatePerMinute: 1}, s, a, nil, nil)

	if err := p.Escalate(context.Background(), "a", "/tmp/qr.png"); err != nil {
		t.Fatalf("first escalate: %v", err)
	}
	if err := p.Escalate(context.Background(), "b", "/tmp/qr.png"); err == nil {
		t.Fatal("expected rate limit error on second escalate")
	}
	if len(s.texts) != 1 {
		t.Fatalf("text sends = %d, want 1", len(s.texts))
	}
}

type panicSender struct{ fakeSender }

func (p *panicSender) SendText(ctx context.Context, receiver, text string) error {
	panic("sender exploded")
}

func TestEscalateRecoversFromPanic(t *testing.T) {
	t.Parallel()
	s := &panicSender{fakeSender{receivers: map[string]int{"ops": 0}}}
	a := &fakeArtifact{url: "http://host/img.png"}
	p := newPipeline(t, Config{}, s, a, nil, nil)

	err := p.Escalate(context.Background(), "k", "/tmp/qr.png")
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
}
