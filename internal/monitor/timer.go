package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// Timer periodically auto-closes sessions that have gone idle. An
// abandoned browser tab stops sending observations; after MaxIdle the
// session is closed and scored like any other.
type Timer struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
	running  atomic.Bool
}

// NewTimer creates a new idle auto-close timer.
func NewTimer(service *Service, logger *slog.Logger) *Timer {
	return &Timer{
		service:  service,
		interval: 30 * time.Second,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Running reports whether the timer loop is actively running.
func (t *Timer) Running() bool {
	return t.running.Load()
}

// Start begins the auto-close loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	t.running.Store(true)
	defer t.running.Store(false)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.safeCloseIdle(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) safeCloseIdle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in monitor timer", "panic", fmt.Sprint(r))
		}
	}()
	t.closeIdle(ctx)
}

func (t *Timer) closeIdle(ctx context.Context) {
	closed, err := t.service.ForceCloseIdle(ctx)
	if err != nil {
		t.logger.Warn("failed to list idle sessions", "error", err)
		return
	}
	if closed > 0 {
		t.logger.Info("auto-closed idle sessions", "count", closed)
	}
}
