package media

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// URLCache maps an object path to a previously minted signed URL. Entries
// must expire before the URL they hold does.
type URLCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, url string, ttl time.Duration)
	Delete(ctx context.Context, key string)
}

type cachedURL struct {
	url       string
	expiresAt time.Time
}

// MemoryCache - process-local URLCache
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cachedURL
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cachedURL),
		now:     time.Now,
	}
}

func (m *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return e.url, true
}

func (m *MemoryCache) Set(_ context.Context, key, url string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = cachedURL{url: url, expiresAt: m.now().Add(ttl)}
}

func (m *MemoryCache) Delete(_ context.Context, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Cleanup drops expired entries and returns how many were removed.
func (m *MemoryCache) Cleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for key, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, key)
			removed++
		}
	}
	return removed
}

// RunCleanup evicts expired entries every interval until ctx is done.
func (m *MemoryCache) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Cleanup(); n > 0 {
				log.Debugf("signed URL cache: evicted %d expired entries", n)
			}
		}
	}
}

// RedisCache - URLCache shared between instances. Redis errors degrade to
// cache misses.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "signed_url:"}
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Warn("signed URL cache get failed")
		}
		return "", false
	}
	return val, true
}

func (r *RedisCache) Set(ctx context.Context, key, url string, ttl time.Duration) {
	if err := r.client.Set(ctx, r.prefix+key, url, ttl).Err(); err != nil {
		log.WithError(err).Warn("signed URL cache set failed")
	}
}

func (r *RedisCache) Delete(ctx context.Context, key string) {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		log.WithError(err).Warn("signed URL cache delete failed")
	}
}
