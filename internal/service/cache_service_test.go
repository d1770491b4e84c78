package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	err     error
	deletes []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.deletes = append(m.deletes, pattern)
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

func TestCohortSummaryKey(t *testing.T) {
	assert.Equal(t, "cohort:summary:bio-101:_all", CohortSummaryKey("bio-101", ""))
	assert.Equal(t, "cohort:summary:bio-101:A", CohortSummaryKey("bio-101", "A"))
	assert.NotEqual(t, CohortSummaryKey("bio-101", ""), CohortSummaryKey("bio-101", "all"))
}

func TestCohortSummaryPatternEscapesGlob(t *testing.T) {
	assert.Equal(t, "cohort:summary:bio-101:*", cohortSummaryPattern("bio-101"))
	assert.Equal(t, `cohort:summary:bio\*\?\[x\]\\:*`, cohortSummaryPattern(`bio*?[x]\`))
}

func TestCacheServiceInvalidateGlobCourseStaysScoped(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, time.Minute, nil, true)
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, CohortSummaryKey("bio-101", "A"), map[string]int{"n": 1}, 0))
	require.NoError(t, svc.Set(ctx, CohortSummaryKey("b?o-101", ""), map[string]int{"n": 2}, 0))
	require.NoError(t, svc.Set(ctx, CohortSummaryKey("bio*", ""), map[string]int{"n": 3}, 0))

	require.NoError(t, svc.InvalidateCohort(ctx, "bio*"))
	assert.NotContains(t, repo.entries, CohortSummaryKey("bio*", ""))
	assert.Contains(t, repo.entries, CohortSummaryKey("bio-101", "A"))

	require.NoError(t, svc.InvalidateCohort(ctx, "b?o-101"))
	assert.NotContains(t, repo.entries, CohortSummaryKey("b?o-101", ""))
	assert.Contains(t, repo.entries, CohortSummaryKey("bio-101", "A"))
}

func TestCacheServiceRoundTripAndInvalidate(t *testing.T) {
	repo := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, CohortSummaryKey("bio-101", "A"), &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, CohortSummaryKey("bio-101", "A"), map[string]int{"n": 2}, 0))
	require.NoError(t, svc.Set(ctx, CohortSummaryKey("chem-201", ""), map[string]int{"n": 1}, 0))
	hit, err = svc.Get(ctx, CohortSummaryKey("bio-101", "A"), &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, out["n"])

	require.NoError(t, svc.InvalidateCohort(ctx, "bio-101"))
	assert.NotContains(t, repo.entries, CohortSummaryKey("bio-101", "A"))
	assert.Contains(t, repo.entries, CohortSummaryKey("chem-201", ""))

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCache()
	svc := NewCacheService(repo, nil, 0, nil, false)
	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.entries)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	hit, err := nilSvc.Get(context.Background(), "k", new(int))
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, nilSvc.InvalidateCohort(context.Background(), "bio-101"))
}

func TestCacheServiceBackendError(t *testing.T) {
	repo := newMemoryCache()
	repo.err = errors.New("connection refused")
	svc := NewCacheService(repo, nil, 0, nil, true)
	hit, err := svc.Get(context.Background(), "k", new(int))
	assert.Error(t, err)
	assert.False(t, hit)
	assert.Error(t, svc.Invalidate(context.Background(), "k*"))
}
