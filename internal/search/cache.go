package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/attestor-labs/lexsearch/pkg/metrics"
	"github.com/attestor-labs/lexsearch/pkg/redis"
	"github.com/attestor-labs/lexsearch/pkg/resilience"
)

const cacheKeyPrefix = "lexsearch:query:"

// QueryCache stores computed responses in Redis, keyed by snapshot version
// plus the canonical query. Because the version is part of the key, stale
// entries are never served after a new snapshot is published; old versions
// simply age out via TTL. Redis failures degrade to computing the response
// directly; a circuit breaker keeps a down Redis from slowing every query.
type QueryCache struct {
	client  *redis.Client
	breaker *resilience.CircuitBreaker
	group   singleflight.Group
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewQueryCache creates a cache. metrics may be nil.
func NewQueryCache(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *QueryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		client:  client,
		breaker: resilience.NewCircuitBreaker("query-cache", resilience.CircuitBreakerConfig{}),
		ttl:     ttl,
		metrics: m,
		logger:  slog.Default().With("component", "query-cache"),
	}
}

// cacheKey builds a deterministic key for one query against one snapshot
// version. Filters and options participate so differently-shaped requests
// never collide.
func cacheKey(version uint64, q Query) string {
	h := sha256.New()
	fmt.Fprintf(h, "v%d|%s|%s|", version, q.Type, q.Text)
	fmt.Fprintf(h, "types=%s|cases=%s|ents=%s|conf=%g|",
		canonicalList(q.Filters.DocumentTypes),
		canonicalList(q.Filters.CaseIDs),
		canonicalList(q.Filters.Entities),
		q.Filters.ConfidenceThreshold,
	)
	if dr := q.Filters.DateRange; dr != nil {
		if dr.Start != nil {
			fmt.Fprintf(h, "from=%d|", dr.Start.UnixNano())
		}
		if dr.End != nil {
			fmt.Fprintf(h, "to=%d|", dr.End.UnixNano())
		}
	}
	fmt.Fprintf(h, "max=%d|snip=%t:%d:%t|rank=%s|thr=%g",
		q.Options.MaxResults,
		q.Options.snippetsEnabled(), q.Options.SnippetLength, q.Options.highlightEnabled(),
		q.Options.RankingStrategy,
		q.Options.SemanticThreshold,
	)
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func canonicalList(values []string) string {
	if len(values) == 0 {
		return ""
	}
	sorted := make([]string, len(values))
	for i, v := range values {
		sorted[i] = strings.ToLower(strings.TrimSpace(v))
	}
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// GetOrCompute returns the cached response for key, or computes and stores
// it. Concurrent callers with the same key share one computation but each
// receives its own shallow copy: callers stamp per-request fields (Took,
// CacheHit) on the returned value, which must not race across waiters. The
// bool reports whether the response came from the cache.
func (c *QueryCache) GetOrCompute(ctx context.Context, key string, compute func() (*Response, error)) (*Response, bool, error) {
	type outcome struct {
		resp *Response
		hit  bool
	}
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.lookup(ctx, key); ok {
			return outcome{resp: resp, hit: true}, nil
		}
		resp, err := compute()
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, resp)
		return outcome{resp: resp}, nil
	})
	if err != nil {
		return nil, false, err
	}
	out := v.(outcome)
	resp := *out.resp
	return &resp, out.hit, nil
}

func (c *QueryCache) lookup(ctx context.Context, key string) (*Response, bool) {
	var payload string
	var missed bool
	err := c.breaker.Execute(func() error {
		var err error
		payload, err = c.client.Get(ctx, key)
		if redis.IsNilError(err) {
			// A miss is a healthy answer, not a Redis failure.
			missed = true
			return nil
		}
		return err
	})
	if err != nil {
		c.logger.Warn("cache lookup failed", "error", err)
		c.recordMiss()
		return nil, false
	}
	if missed {
		c.recordMiss()
		return nil, false
	}
	var resp Response
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		c.logger.Warn("cache entry corrupt, dropping", "key", key, "error", err)
		_ = c.client.Del(ctx, key)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return &resp, true
}

func (c *QueryCache) store(ctx context.Context, key string, resp *Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		c.logger.Warn("cache marshal failed", "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, string(payload), c.ttl)
	})
	if err != nil {
		c.logger.Warn("cache store failed", "error", err)
	}
}

// Invalidate drops every cached query response.
func (c *QueryCache) Invalidate(ctx context.Context) (int64, error) {
	return c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
}

// Stats returns the process-local hit and miss counts.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *QueryCache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *QueryCache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
