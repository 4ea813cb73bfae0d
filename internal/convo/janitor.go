package convo

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultSweepInterval = 10 * time.Minute

// StartJanitor runs Sweep every interval until ctx is cancelled. The returned
// channel is closed once the loop has exited.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("conversation janitor stopped")
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
	return done
}

// Sweep removes every expired record and returns how many were removed.
//
// Expired keys are collected per shard under the read lock; each one is then
// deleted under the write lock after re-checking, so a record refreshed in
// between survives.
func (s *Store) Sweep() int {
	now := s.now()
	var removed []string
	for _, sh := range s.shards {
		var candidates []string
		sh.mu.RLock()
		for userID, rec := range sh.records {
			if s.expired(rec, now) {
				candidates = append(candidates, userID)
			}
		}
		sh.mu.RUnlock()

		for _, userID := range candidates {
			if s.evictIfExpired(sh, userID, now) {
				removed = append(removed, userID)
			}
		}
	}

	for _, userID := range removed {
		s.notify(userID, EvictSweep)
	}
	if len(removed) > 0 {
		s.logger.Info("cleaned up expired conversations", zap.Int("count", len(removed)))
		s.hookMu.RLock()
		hook := s.onSweep
		s.hookMu.RUnlock()
		if hook != nil {
			hook(len(removed))
		}
	}
	return len(removed)
}
