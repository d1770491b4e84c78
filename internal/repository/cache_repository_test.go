package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/practicum-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "cohort:summary:bio-101:_all", &dest)
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "cohort:summary:bio-101:_all", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "cohort:summary:bio-101:*"))
	assert.NoError(t, repo.Ping(ctx))
}

func TestCacheRepositoryNamespacing(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	assert.Equal(t, "practicum:cohort:summary:bio-101:A", repo.key("cohort:summary:bio-101:A"))

	scoped := repo.WithNamespace("staging")
	assert.Equal(t, "staging:x", scoped.key("x"))
	assert.Equal(t, "practicum:x", repo.key("x"))
	assert.Equal(t, "x", repo.WithNamespace("").key("x"))
}
