package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"paperlens/internal/config"
	"paperlens/internal/models"
	"paperlens/internal/redis"
	"paperlens/internal/storage"
)

type memHot struct {
	mu      sync.Mutex
	data    map[string][]byte
	err     error
	expires int
}

func newMemHot() *memHot { return &memHot{data: map[string][]byte{}} }

func (m *memHot) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, redis.ErrCacheMiss
	}
	return v, nil
}

func (m *memHot) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value.([]byte)
	return nil
}

func (m *memHot) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memHot) Expire(_ context.Context, key string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		m.expires++
	}
	return nil
}

func newCold(t *testing.T) *storage.AnalysisStore {
	t.Helper()
	db, err := storage.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: filepath.Join(t.TempDir(), "cache.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(db, "sqlite3"))
	return storage.NewAnalysisStore(db)
}

func TestLoadFallsBackToDBAndBackfills(t *testing.T) {
	hot := newMemHot()
	cold := newCold(t)
	c := New(hot, cold, time.Hour, nil)
	ctx := context.Background()
	file := &models.PaperFile{Name: "p.pdf", Hash: "h1"}

	_, tier, ok := c.Load(ctx, "h1")
	require.False(t, ok)
	require.Equal(t, TierNone, tier)

	require.NoError(t, cold.Put(ctx, file, &models.PaperAnalysis{Title: "Stored"}))
	got, tier, ok := c.Load(ctx, "h1")
	require.True(t, ok)
	require.Equal(t, TierDB, tier)
	require.Equal(t, "Stored", got.Title)

	got, tier, ok = c.Load(ctx, "h1")
	require.True(t, ok)
	require.Equal(t, TierRedis, tier)
	require.Equal(t, "Stored", got.Title)
	require.Equal(t, 1, hot.expires)
}

func TestStoreWritesBothTiers(t *testing.T) {
	hot := newMemHot()
	cold := newCold(t)
	c := New(hot, cold, time.Hour, nil)
	ctx := context.Background()

	c.Store(ctx, &models.PaperFile{Name: "p.pdf", Hash: "h2"}, &models.PaperAnalysis{Title: "Fresh"})
	require.Contains(t, hot.data, keyPrefix+"h2")
	row, err := cold.Get(ctx, "h2")
	require.NoError(t, err)
	require.Equal(t, "Fresh", row.Analysis.Title)

	c.Invalidate(ctx, "h2")
	_, _, ok := c.Load(ctx, "h2")
	require.False(t, ok)
}

func TestPurgeDropsOldEntries(t *testing.T) {
	cold := newCold(t)
	c := New(nil, cold, time.Hour, nil)
	ctx := context.Background()
	c.Store(ctx, &models.PaperFile{Name: "p.pdf", Hash: "old"}, &models.PaperAnalysis{Title: "Old"})

	n, err := c.Purge(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = c.Purge(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	_, _, ok := c.Load(ctx, "old")
	require.False(t, ok)

	n, err = New(newMemHot(), nil, time.Hour, nil).Purge(ctx, time.Now())
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestHotFailureIsAMiss(t *testing.T) {
	hot := newMemHot()
	hot.err = errors.New("connection refused")
	c := New(hot, nil, time.Hour, nil)
	_, _, ok := c.Load(context.Background(), "h3")
	require.False(t, ok)
}

func TestDisabledCache(t *testing.T) {
	c := New(nil, nil, 0, nil)
	require.False(t, c.Enabled())
	c.Store(context.Background(), &models.PaperFile{Hash: "x"}, &models.PaperAnalysis{})
	_, _, ok := c.Load(context.Background(), "x")
	require.False(t, ok)

	var nilCache *Analyses
	require.False(t, nilCache.Enabled())
}
