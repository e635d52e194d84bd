package logx

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// operatorWriter is a zerolog LevelWriter that forwards warn-and-above lines
// to the notification webhook. Delivery is queued and rate limited; when the
// queue is full the line is dropped (logging must never block the caller).
type operatorWriter struct {
	svc *Service
}

func (w *operatorWriter) Write(p []byte) (int, error) {
	// Plain Write has no level information; treat as below threshold.
	return len(p), nil
}

func (w *operatorWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc

	s.mu.Lock()
	minLevel := s.minLevel
	limiter := s.limiter
	receiver := s.receiver
	s.mu.Unlock()

	if level < minLevel || receiver == "" {
		return len(p), nil
	}
	if limiter != nil && !limiter.Allow() {
		return len(p), nil
	}

	line := strings.TrimSpace(string(p))
	if line == "" {
		return len(p), nil
	}

	select {
	case s.opQueue <- line:
	default:
		// queue full, drop
	}
	return len(p), nil
}

func (s *Service) operatorWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-s.opQueue:
			s.mu.Lock()
			sender := s.sender
			receiver := s.receiver
			s.mu.Unlock()
			if sender == nil || receiver == "" {
				continue
			}
			sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_ = sender.SendText(sendCtx, receiver, line)
			cancel()
		}
	}
}
