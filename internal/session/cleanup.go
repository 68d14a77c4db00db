package session

import (
	"context"
	"sync"
	"time"

	"github.com/kaphack/realtime-crisis-triage-engine/internal/observability"
)

const DefaultCleanupInterval = time.Minute

// CleanupService periodically sweeps idle sessions out of a Store.
type CleanupService struct {
	store    *Store
	interval time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func NewCleanupService(store *Store, interval time.Duration) *CleanupService {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	return &CleanupService{store: store, interval: interval}
}

// Start launches the sweeper. Calling Start on a running service does nothing.
func (c *CleanupService) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return
	}

	cleanupCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.run(cleanupCtx, c.done)
}

// Stop cancels the sweeper and waits for it to exit.
func (c *CleanupService) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
}

func (c *CleanupService) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		close(done)
	}()

	log := observability.WithFields("component", "session.cleanup")
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("cleanup service stopping")
			return
		case <-ticker.C:
			start := time.Now()
			if removed := c.store.EvictExpired(); removed > 0 {
				log.Info("evicted idle sessions",
					"removed", removed,
					"remaining", c.store.Len(),
					"duration_ms", time.Since(start).Milliseconds())
			}
		}
	}
}
