package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyDeterministic(t *testing.T) {
	q := Query{Text: "breach of contract", Type: TypeHybrid}
	assert.Equal(t, cacheKey(3, q), cacheKey(3, q))
	assert.True(t, strings.HasPrefix(cacheKey(3, q), cacheKeyPrefix))
}

func TestCacheKeyVariesByVersion(t *testing.T) {
	q := Query{Text: "breach of contract", Type: TypeHybrid}
	assert.NotEqual(t, cacheKey(1, q), cacheKey(2, q),
		"a new snapshot version must never serve stale entries")
}

func TestCacheKeyVariesByQueryShape(t *testing.T) {
	base := Query{Text: "breach", Type: TypeFullText}

	byType := base
	byType.Type = TypeSemantic
	assert.NotEqual(t, cacheKey(1, base), cacheKey(1, byType))

	byFilter := base
	byFilter.Filters.DocumentTypes = []string{"contract"}
	assert.NotEqual(t, cacheKey(1, base), cacheKey(1, byFilter))

	byOptions := base
	byOptions.Options.MaxResults = 5
	assert.NotEqual(t, cacheKey(1, base), cacheKey(1, byOptions))
}

// offlineCache returns a QueryCache whose breaker is already open, so
// lookups and stores short-circuit without touching Redis and GetOrCompute
// always runs the compute path.
func offlineCache(t *testing.T) *QueryCache {
	t.Helper()
	c := NewQueryCache(nil, time.Minute, nil)
	down := errors.New("redis down")
	for i := 0; i < 5; i++ {
		_ = c.breaker.Execute(func() error { return down })
	}
	return c
}

func TestGetOrComputeCopiesResponsePerCaller(t *testing.T) {
	c := offlineCache(t)

	shared := &Response{Query: "breach", TotalHits: 2}
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	compute := func() (*Response, error) {
		entered <- struct{}{}
		<-release
		return shared, nil
	}

	var wg sync.WaitGroup
	responses := make([]*Response, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], _, errs[i] = c.GetOrCompute(context.Background(), "k", compute)
		}(i)
	}
	<-entered
	// Give the second caller time to join the in-flight computation before
	// releasing it; a caller that misses the flight just recomputes.
	time.Sleep(10 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.NotNil(t, responses[0])
	require.NotNil(t, responses[1])
	assert.NotSame(t, responses[0], responses[1],
		"each caller stamps Took and CacheHit on its own copy")
	assert.NotSame(t, shared, responses[0])

	responses[0].CacheHit = true
	responses[0].Took = time.Second
	assert.False(t, responses[1].CacheHit)
	assert.Zero(t, responses[1].Took)
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	c := offlineCache(t)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), "k", func() (*Response, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCacheKeyNormalisesFilterLists(t *testing.T) {
	a := Query{Text: "breach", Filters: Filters{Entities: []string{"Acme", "globex"}}}
	b := Query{Text: "breach", Filters: Filters{Entities: []string{"Globex", "acme"}}}
	assert.Equal(t, cacheKey(1, a), cacheKey(1, b),
		"filter list order and casing do not change semantics")
}
