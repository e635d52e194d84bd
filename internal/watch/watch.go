// Package watch periodically inspects persisted session artifacts and
// escalates the ones that have gone stale before a backend trips over them.
package watch

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"autopub/internal/platform"
	"autopub/pkg/logx"
)

// Escalator is the downstream handler for a stale (platform, account) pair.
type Escalator interface {
	Escalate(ctx context.Context, key, imagePath string) error
}

type Config struct {
	Enabled bool
	// Spec is a 5-field cron expression; empty means every 10 minutes.
	Spec string
	// MaxAge marks an artifact stale once its mtime is older than this.
	// Zero means 24h.
	MaxAge time.Duration
}

type Service struct {
	cfg       Config
	dir       string
	escalator Escalator
	log       logx.Logger

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, sessionDir string, esc Escalator, log logx.Logger) *Service {
	if cfg.Spec == "" {
		cfg.Spec = "*/10 * * * *"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, dir: sessionDir, escalator: esc, log: log}
}

func (s *Service) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.log.Debug("session watcher disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.cfg.Spec, func() { s.Scan(ctx) }); err != nil {
		return err
	}
	c.Start()
	s.c = c
	s.log.Info("session watcher started",
		logx.String("spec", s.cfg.Spec),
		logx.Duration("max_age", s.cfg.MaxAge))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("session watcher stopped")
}

// Scan walks the session dir once and escalates every stale artifact.
// It returns the number of escalations attempted.
func (s *Service) Scan(ctx context.Context) int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.log.Warn("session dir scan failed", logx.String("dir", s.dir), logx.Err(err))
		return 0
	}

	cutoff := time.Now().Add(-s.cfg.MaxAge)
	attempted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		plat, account, ok := platform.ParseArtifactName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		key := plat + "_" + account
		s.log.Warn("stale session artifact",
			logx.String("platform", plat),
			logx.String("account", account),
			logx.Time("mtime", info.ModTime()))
		attempted++
		if err := s.escalator.Escalate(ctx, key, platform.QRImagePath(s.dir, plat)); err != nil {
			s.log.Warn("escalation failed", logx.String("key", key), logx.Err(err))
		}
	}
	return attempted
}
