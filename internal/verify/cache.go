// Package verify composes the asset source, classifier and a short-lived
// result cache into the ownership-verification decision.
package verify

import (
	"context"
	"sync"
	"time"

	"nftgate/internal/classify"
	"nftgate/internal/das"
	"nftgate/internal/domain"
	"nftgate/internal/observability"
)

// DefaultTTL bounds how long a classified result is served without a
// fresh indexer call.
const DefaultTTL = 5 * time.Minute

// cacheKey is the exact (wallet, collection) pair. A lookup without a
// collection is a distinct key from the same wallet with one, at the
// cost of one redundant upstream call per distinct filter.
type cacheKey struct {
	wallet     string
	collection string
}

type cacheEntry struct {
	assets    []domain.ClassifiedAsset
	fetchedAt time.Time
}

// Cache memoizes classified, filtered asset lists per (wallet,
// collection) key for a bounded TTL. Fetch failures are never stored, so
// the next lookup retries instead of sticking on a failure.
type Cache struct {
	fetcher das.AssetFetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[cacheKey]cacheEntry
}

// CacheOption configures Cache.
type CacheOption func(*Cache)

// WithTTL overrides the default entry lifetime.
func WithTTL(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.ttl = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a verification cache over the given asset source.
func NewCache(fetcher das.AssetFetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher: fetcher,
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: make(map[cacheKey]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrFetch returns the classified NFT list for the wallet, filtered by
// collection when one is given. A hit within TTL makes no network call;
// a miss or expired entry triggers exactly one fetch and overwrites the
// entry.
func (c *Cache) GetOrFetch(ctx context.Context, wallet, collection string) ([]domain.ClassifiedAsset, error) {
	key := cacheKey{wallet: wallet, collection: collection}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl {
		c.mu.Unlock()
		observability.RecordCache("hit")
		return entry.assets, nil
	}
	c.mu.Unlock()

	if ok {
		observability.RecordCache("expired")
	} else {
		observability.RecordCache("miss")
	}

	records, err := c.fetcher.AssetsByOwner(ctx, wallet)
	if err != nil {
		observability.RecordCache("error")
		return nil, err
	}

	assets := filterAssets(classify.ClassifyAll(records), collection)

	c.mu.Lock()
	c.entries[key] = cacheEntry{assets: assets, fetchedAt: c.now()}
	c.mu.Unlock()

	return assets, nil
}

// filterAssets keeps classified NFTs, narrowed to the target collection
// when one is given.
func filterAssets(assets []domain.ClassifiedAsset, collection string) []domain.ClassifiedAsset {
	out := make([]domain.ClassifiedAsset, 0, len(assets))
	for _, a := range assets {
		if !a.IsNFT {
			continue
		}
		if collection != "" && !classify.MatchesCollection(a, collection) {
			continue
		}
		out = append(out, a)
	}
	return out
}
