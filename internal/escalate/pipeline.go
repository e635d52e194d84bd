// Package escalate notifies a human when a session artifact needs manual
// re-authentication: pick the least-loaded receiver, upload the diagnostic
// image to object storage, send a warning plus the image, and optionally kick
// a downstream remediation workflow.
//
// Everything here is best-effort. A failed escalation is strictly worse than
// a missed one, but it must never crash the flow that triggered it: every
// step swallows its own failure and logs.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/time/rate"

	"autopub/internal/storage"
	"autopub/pkg/logx"
)

var ErrNoReceiver = errors.New("no notification receiver available")

// expiredNotice is the fixed warning text sent before the QR image.
const expiredNotice = "Session artifact for %s has expired; please scan the QR code to log in again."

// Sender abstracts the notification channel (webhook backend or Telegram).
type Sender interface {
	// Receivers maps receiver id -> load metric. Channels with a single
	// fixed receiver report it with metric 0.
	Receivers(ctx context.Context) (map[string]int, error)
	SendText(ctx context.Context, receiver, text string) error
	SendImageURL(ctx context.Context, receiver, imageURL string) error
}

// ArtifactStore uploads a local diagnostic file and returns its public URL.
type ArtifactStore interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// WorkflowTrigger starts the downstream remediation workflow.
type WorkflowTrigger interface {
	Trigger(ctx context.Context, imageURL string) error
}

type Config struct {
	// DedupWindow suppresses repeat escalations for the same key. Zero
	// disables dedup.
	DedupWindow time.Duration
	// RatePerMinute caps outbound escalations. Zero means 6/min.
	RatePerMinute int
}

type Pipeline struct {
	cfg      Config
	sender   Sender
	artifact ArtifactStore
	workflow WorkflowTrigger // may be nil
	store    storage.Store   // may be nil (dedup disabled)
	limiter  *rate.Limiter
	log      logx.Logger
}

func New(cfg Config, sender Sender, artifact ArtifactStore, workflow WorkflowTrigger, store storage.Store, log logx.Logger) *Pipeline {
	rpm := cfg.RatePerMinute
	if rpm <= 0 {
		rpm = 6
	}
	return &Pipeline{
		cfg:      cfg,
		sender:   sender,
		artifact: artifact,
		workflow: workflow,
		store:    store,
		limiter:  rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		log:      log,
	}
}

// SelectReceiver returns the receiver with the minimum load metric.
//
// Go randomizes map iteration, so the tie-break is made deterministic: the
// lexicographically smallest id among the minima wins. An empty mapping or a
// failed query yields ErrNoReceiver; callers treat that as terminal for the
// whole escalation.
func (p *Pipeline) SelectReceiver(ctx context.Context) (string, error) {
	receivers, err := p.sender.Receivers(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoReceiver, err)
	}
	best := ""
	bestMetric := 0
	for id, metric := range receivers {
		switch {
		case best == "":
			best, bestMetric = id, metric
		case metric < bestMetric:
			best, bestMetric = id, metric
		case metric == bestMetric && id < best:
			best = id
		}
	}
	if best == "" {
		return "", ErrNoReceiver
	}
	return best, nil
}

// Escalate runs the full pipeline for one expired (platform, account) pair.
//
// key identifies the pair for dedup purposes, imagePath is the QR screenshot
// to deliver. The returned error is informational; callers are free to ignore
// it, and nothing ever panics past this point.
func (p *Pipeline) Escalate(ctx context.Context, key, imagePath string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("escalation panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			err = fmt.Errorf("escalation panicked: %v", r)
		}
	}()

	if suppressed := p.dedupHit(ctx, key); suppressed {
		p.log.Debug("escalation suppressed by dedup", logx.String("key", key))
		return nil
	}
	if !p.limiter.Allow() {
		p.log.Warn("escalation rate limited", logx.String("key", key))
		return errors.New("escalation rate limited")
	}

	receiver, err := p.SelectReceiver(ctx)
	if err != nil {
		p.log.Warn("escalation aborted: no receiver", logx.String("key", key), logx.Err(err))
		return err
	}

	imageURL, err := p.artifact.Upload(ctx, imagePath)
	if err != nil {
		p.log.Warn("escalation aborted: artifact upload failed", logx.String("key", key), logx.Err(err))
		return fmt.Errorf("upload artifact: %w", err)
	}

	// Text and image are independent calls; failure of either is logged and
	// does not roll back the other.
	if terr := p.sender.SendText(ctx, receiver, fmt.Sprintf(expiredNotice, key)); terr != nil {
		p.log.Warn("escalation text not delivered", logx.String("receiver", receiver), logx.Err(terr))
	}
	if ierr := p.sender.SendImageURL(ctx, receiver, imageURL); ierr != nil {
		p.log.Warn("escalation image not delivered", logx.String("receiver", receiver), logx.Err(ierr))
	}

	if p.workflow != nil {
		if werr := p.workflow.Trigger(ctx, imageURL); werr != nil {
			p.log.Warn("remediation workflow not triggered", logx.Err(werr))
		}
	}

	p.markDedup(ctx, key)
	p.log.Info("escalation delivered",
		logx.String("key", key),
		logx.String("receiver", receiver),
		logx.String("image_url", imageURL))
	return nil
}

func (p *Pipeline) dedupHit(ctx context.Context, key string) bool {
	if p.store == nil || p.cfg.DedupWindow <= 0 {
		return false
	}
	until, ok, err := p.store.GetDedup(ctx, dedupKey(key))
	if err != nil {
		p.log.Debug("dedup lookup failed", logx.Err(err))
		return false
	}
	return ok && time.Now().Before(until)
}

func (p *Pipeline) markDedup(ctx context.Context, key string) {
	if p.store == nil || p.cfg.DedupWindow <= 0 {
		return
	}
	if err := p.store.PutDedup(ctx, dedupKey(key), time.Now().Add(p.cfg.DedupWindow)); err != nil {
		p.log.Debug("dedup store failed", logx.Err(err))
	}
}

func dedupKey(key string) string { return "escalate:" + key }
