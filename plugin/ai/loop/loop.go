// Package loop runs a function on a fixed interval with idempotent start and stop.
package loop

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Loop runs fn once on Start and then on every tick until stopped.
// Ticks never overlap: the next one waits for fn to return.
type Loop struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context)

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	logger  *slog.Logger
}

// New creates a stopped loop.
func New(name string, interval time.Duration, fn func(ctx context.Context)) *Loop {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Loop{
		name:     name,
		interval: interval,
		fn:       fn,
		stopCh:   make(chan struct{}),
		logger:   slog.Default().With("component", name),
	}
}

// Interval returns the tick interval.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

// Start begins the loop. Calling Start on a running loop is a no-op.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopCh = make(chan struct{})
	stopCh := l.stopCh
	l.mu.Unlock()

	l.wg.Add(1)
	go l.run(ctx, stopCh)

	l.logger.Info("loop started", "interval", l.interval)
}

// Stop halts further ticks and waits for an in-flight tick to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()

	l.wg.Wait()
	l.logger.Info("loop stopped")
}

// IsRunning returns whether the loop is running.
func (l *Loop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Loop) run(ctx context.Context, stopCh <-chan struct{}) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	// Process immediately on start
	l.fn(ctx)

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("loop context cancelled")
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			l.fn(ctx)
		}
	}
}
