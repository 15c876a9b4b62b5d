package enrich

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/pkg/skiptrace"
)

// Lookup cache kinds.
const (
	CacheKindName  = "byname"
	CacheKindPhone = "byphone"
	CacheKindAge   = "age"
)

// LookupCache stores provider answers by query key. Expired entries are
// reported as misses.
type LookupCache interface {
	GetLookup(ctx context.Context, key string) ([]byte, bool, error)
	PutLookup(ctx context.Context, key, kind string, body []byte, ttl time.Duration) error
}

var _ skiptrace.Client = (*CachedSkipTracer)(nil)

// CachedSkipTracer serves repeated skip-trace queries from a LookupCache.
// Cache errors are logged and fall through to the provider.
type CachedSkipTracer struct {
	inner skiptrace.Client
	cache LookupCache
	ttl   time.Duration
}

// NewCachedSkipTracer wraps inner with cache.
func NewCachedSkipTracer(inner skiptrace.Client, cache LookupCache, ttl time.Duration) *CachedSkipTracer {
	return &CachedSkipTracer{inner: inner, cache: cache, ttl: ttl}
}

// SearchByName implements skiptrace.Client.
func (c *CachedSkipTracer) SearchByName(ctx context.Context, name, cityStateZip string) (*skiptrace.Person, error) {
	return cached(ctx, c, CacheKindName, lookupKey(CacheKindName, name, cityStateZip), func() (*skiptrace.Person, error) {
		return c.inner.SearchByName(ctx, name, cityStateZip)
	}, func(p *skiptrace.Person) { p.Cached = true })
}

// SearchByPhone implements skiptrace.Client.
func (c *CachedSkipTracer) SearchByPhone(ctx context.Context, phone string) (*skiptrace.Person, error) {
	return cached(ctx, c, CacheKindPhone, lookupKey(CacheKindPhone, phone), func() (*skiptrace.Person, error) {
		return c.inner.SearchByPhone(ctx, phone)
	}, func(p *skiptrace.Person) { p.Cached = true })
}

// LookupAge implements skiptrace.Client.
func (c *CachedSkipTracer) LookupAge(ctx context.Context, name, cityStateZip string) (*skiptrace.AgeRecord, error) {
	return cached(ctx, c, CacheKindAge, lookupKey(CacheKindAge, name, cityStateZip), func() (*skiptrace.AgeRecord, error) {
		return c.inner.LookupAge(ctx, name, cityStateZip)
	}, func(r *skiptrace.AgeRecord) { r.Cached = true })
}

func cached[T any](ctx context.Context, c *CachedSkipTracer, kind, key string, fetch func() (*T, error), mark func(*T)) (*T, error) {
	log := zap.L().With(zap.String("kind", kind))

	body, ok, err := c.cache.GetLookup(ctx, key)
	if err != nil {
		log.Warn("enrich: lookup cache read failed", zap.Error(err))
	}
	if ok {
		var v T
		uerr := json.Unmarshal(body, &v)
		if uerr == nil {
			mark(&v)
			log.Debug("enrich: lookup cache hit")
			return &v, nil
		}
		log.Warn("enrich: lookup cache entry unreadable", zap.Error(uerr))
	}

	v, err := fetch()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(v)
	if err == nil {
		err = c.cache.PutLookup(ctx, key, kind, data, c.ttl)
	}
	if err != nil {
		log.Warn("enrich: lookup cache write failed", zap.Error(err))
	}
	return v, nil
}

// lookupKey builds a case- and whitespace-insensitive cache key.
func lookupKey(kind string, parts ...string) string {
	norm := make([]string, 0, len(parts)+1)
	norm = append(norm, kind)
	for _, p := range parts {
		norm = append(norm, strings.Join(strings.Fields(strings.ToLower(p)), " "))
	}
	return strings.Join(norm, "|")
}
