package assistant

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultWorkspaceTTL    = 2 * time.Hour
	DefaultJanitorInterval = 10 * time.Minute
)

// StartWorkspaceJanitor evicts workspaces idle for longer than ttl until ctx
// is done.
func (s *Service) StartWorkspaceJanitor(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	if ttl <= 0 {
		ttl = DefaultWorkspaceTTL
	}
	go s.cleanupLoop(ctx, interval, ttl)
}

func (s *Service) cleanupLoop(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictIdle(ttl)
		}
	}
}

func (s *Service) evictIdle(ttl time.Duration) []string {
	ids := s.store.EvictIdle(ttl)
	for _, id := range ids {
		s.dispatcher.CancelWorkspace(id)
	}
	if len(ids) > 0 {
		s.logger.Info("evicted idle workspaces", zap.Int("count", len(ids)), zap.Strings("workspaces", ids))
	}
	s.metrics.SetWorkspaces(s.store.Len())
	return ids
}
