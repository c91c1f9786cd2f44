// Package cache provides a two-tier cache for classification results: an
// in-process LRU in front of an optional shared Redis tier. Cache keys bind
// the signal content to the reference-artifact and engine versions, so a
// rule reload or engine upgrade naturally invalidates every prior entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/neuroonc-procedure-classifier/internal/domain"
)

const redisKeyPrefix = "neuroonc:classify:"

// ResultCache caches ClassificationResults. The Redis tier is optional and
// best-effort: a Redis outage degrades to the in-memory tier via a circuit
// breaker, it never fails a classification request.
type ResultCache struct {
	memory  *lru.Cache[string, *domain.ClassificationResult]
	redis   *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	log     *logrus.Logger
}

// New creates a result cache. redisClient may be nil for memory-only
// operation.
func New(cfg *domain.CacheConfig, redisClient *redis.Client, logger *logrus.Logger) (*ResultCache, error) {
	size := cfg.LRUSize
	if size <= 0 {
		size = 10000
	}

	memory, err := lru.New[string, *domain.ClassificationResult](size)
	if err != nil {
		return nil, err
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-result-cache",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Cache circuit breaker state changed")
		},
	})

	return &ResultCache{
		memory:  memory,
		redis:   redisClient,
		breaker: breaker,
		ttl:     ttl,
		log:     logger,
	}, nil
}

// Key derives the cache key for a signal. Two signals with identical
// normalized content share a key; the artifact and engine versions are part
// of the key so stale entries can never serve a new rule set.
func Key(sig *domain.ProcedureSignal, artifactVersion, engineVersion string) string {
	payload, _ := json.Marshal(sig)
	sum := sha256.Sum256(append([]byte(artifactVersion+"::"+engineVersion+"::"), payload...))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for key, if present in either tier. A Redis
// hit is promoted into the memory tier.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.ClassificationResult, bool) {
	if result, ok := c.memory.Get(key); ok {
		return result, true
	}

	if c.redis == nil {
		return nil, false
	}

	value, err := c.breaker.Execute(func() (interface{}, error) {
		return c.redis.Get(ctx, redisKeyPrefix+key).Bytes()
	})
	if err != nil {
		if err != redis.Nil {
			c.log.WithError(err).Debug("Redis cache read failed")
		}
		return nil, false
	}

	var result domain.ClassificationResult
	if err := json.Unmarshal(value.([]byte), &result); err != nil {
		c.log.WithError(err).Warn("Discarding undecodable cache entry")
		return nil, false
	}

	c.memory.Add(key, &result)
	return &result, true
}

// Set stores a result in both tiers. Redis write failures are logged and
// absorbed.
func (c *ResultCache) Set(ctx context.Context, key string, result *domain.ClassificationResult) {
	c.memory.Add(key, result)

	if c.redis == nil {
		return
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return
	}

	if _, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, redisKeyPrefix+key, payload, c.ttl).Err()
	}); err != nil {
		c.log.WithError(err).Debug("Redis cache write failed")
	}
}

// Purge drops the in-memory tier. Called on reference reloads; keyed
// versioning already isolates Redis entries, so only the local tier needs
// flushing to bound memory.
func (c *ResultCache) Purge() {
	c.memory.Purge()
}

// Len returns the number of entries in the memory tier.
func (c *ResultCache) Len() int {
	return c.memory.Len()
}
