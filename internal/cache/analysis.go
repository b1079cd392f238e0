package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"paperlens/internal/models"
	"paperlens/internal/redis"
	"paperlens/internal/storage"
)

const keyPrefix = "paperlens:analysis:"

// Tier names where a cached analysis was found.
type Tier string

const (
	TierNone  Tier = ""
	TierRedis Tier = "redis"
	TierDB    Tier = "db"
)

// Hot is a short-lived key/value store, satisfied by *redis.Client.
type Hot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Cold is the durable store, satisfied by *storage.AnalysisStore.
type Cold interface {
	Get(ctx context.Context, hash string) (*storage.StoredAnalysis, error)
	Put(ctx context.Context, file *models.PaperFile, analysis *models.PaperAnalysis) error
	Delete(ctx context.Context, hash string) error
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Analyses caches finished analyses by PDF content hash. Either tier may be
// absent; cache failures are logged and treated as misses.
type Analyses struct {
	hot    Hot
	cold   Cold
	ttl    time.Duration
	logger *zap.Logger
}

func New(hot Hot, cold Cold, ttl time.Duration, logger *zap.Logger) *Analyses {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Analyses{hot: hot, cold: cold, ttl: ttl, logger: logger}
}

// Enabled reports whether any tier is configured.
func (a *Analyses) Enabled() bool {
	return a != nil && (a.hot != nil || a.cold != nil)
}

// Load returns the cached analysis for hash and the tier that served it.
func (a *Analyses) Load(ctx context.Context, hash string) (*models.PaperAnalysis, Tier, bool) {
	if !a.Enabled() || hash == "" {
		return nil, TierNone, false
	}
	if a.hot != nil {
		raw, err := a.hot.Get(ctx, keyPrefix+hash)
		switch {
		case err == nil:
			var analysis models.PaperAnalysis
			if err := json.Unmarshal(raw, &analysis); err == nil {
				// Papers that keep coming back stay hot.
				_ = a.hot.Expire(ctx, keyPrefix+hash, a.ttl)
				return &analysis, TierRedis, true
			}
			a.logger.Warn("drop undecodable cached analysis", zap.String("hash", hash))
			_ = a.hot.Del(ctx, keyPrefix+hash)
		case !errors.Is(err, redis.ErrCacheMiss):
			a.logger.Warn("redis analysis lookup failed", zap.String("hash", hash), zap.Error(err))
		}
	}
	if a.cold != nil {
		row, err := a.cold.Get(ctx, hash)
		switch {
		case err == nil:
			a.storeHot(ctx, hash, row.Analysis)
			return row.Analysis, TierDB, true
		case !errors.Is(err, storage.ErrNotFound):
			a.logger.Warn("db analysis lookup failed", zap.String("hash", hash), zap.Error(err))
		}
	}
	return nil, TierNone, false
}

// Store writes analysis to every configured tier.
func (a *Analyses) Store(ctx context.Context, file *models.PaperFile, analysis *models.PaperAnalysis) {
	if !a.Enabled() || file == nil || file.Hash == "" || analysis == nil {
		return
	}
	if a.cold != nil {
		if err := a.cold.Put(ctx, file, analysis); err != nil {
			a.logger.Warn("persist analysis failed", zap.String("hash", file.Hash), zap.Error(err))
		}
	}
	a.storeHot(ctx, file.Hash, analysis)
}

// Invalidate removes hash from every tier.
func (a *Analyses) Invalidate(ctx context.Context, hash string) {
	if !a.Enabled() || hash == "" {
		return
	}
	if a.hot != nil {
		if err := a.hot.Del(ctx, keyPrefix+hash); err != nil {
			a.logger.Warn("redis invalidate failed", zap.String("hash", hash), zap.Error(err))
		}
	}
	if a.cold != nil {
		if err := a.cold.Delete(ctx, hash); err != nil {
			a.logger.Warn("db invalidate failed", zap.String("hash", hash), zap.Error(err))
		}
	}
}

// Purge drops durable entries created before cutoff. Redis entries age out
// on their own TTL.
func (a *Analyses) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	if a == nil || a.cold == nil {
		return 0, nil
	}
	n, err := a.cold.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	a.logger.Info("purged cached analyses", zap.Int64("count", n), zap.Time("cutoff", cutoff))
	return n, nil
}

func (a *Analyses) storeHot(ctx context.Context, hash string, analysis *models.PaperAnalysis) {
	if a.hot == nil {
		return
	}
	data, err := json.Marshal(analysis)
	if err != nil {
		a.logger.Warn("encode analysis for redis failed", zap.Error(err))
		return
	}
	if err := a.hot.Set(ctx, keyPrefix+hash, data, a.ttl); err != nil {
		a.logger.Warn("redis analysis store failed", zap.String("hash", hash), zap.Error(err))
	}
}
