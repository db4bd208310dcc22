package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/fileattach/internal/domain/model"
)

// Prometheus-метрики кэша проверок.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fa_auth_cache_hits_total",
		Help: "Количество попаданий в кэш проверенных токенов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fa_auth_cache_misses_total",
		Help: "Количество промахов кэша проверенных токенов.",
	})
)

// cacheEntry — проверенный пользователь и момент, после которого запись недействительна.
type cacheEntry struct {
	identity *model.Identity
	deadline time.Time
}

// CachedVerifier кэширует успешные проверки токенов.
// Запись живёт min(ttl, exp токена); токен с истёкшим exp всегда уходит в next.
// Ключ — SHA-256 токена, сам токен в памяти не хранится.
// Отказы не кэшируются.
type CachedVerifier struct {
	next  Verifier
	ttl   time.Duration
	cache *expirable.LRU[string, cacheEntry]
	now   func() time.Time
}

// NewCachedVerifier оборачивает next кэшем на maxSize записей.
func NewCachedVerifier(next Verifier, maxSize int, ttl time.Duration) *CachedVerifier {
	return &CachedVerifier{
		next:  next,
		ttl:   ttl,
		cache: expirable.NewLRU[string, cacheEntry](maxSize, nil, ttl),
		now:   time.Now,
	}
}

// Verify возвращает пользователя из кэша или делегирует проверку.
func (c *CachedVerifier) Verify(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, ErrMissingCredential
	}

	key := tokenKey(token)
	if entry, ok := c.cache.Get(key); ok {
		if c.now().Before(entry.deadline) {
			cacheHitsTotal.Inc()
			return entry.identity, nil
		}
		c.cache.Remove(key)
	}
	cacheMissesTotal.Inc()

	id, err := c.next.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	deadline := c.now().Add(c.ttl)
	if !id.ExpiresAt.IsZero() && id.ExpiresAt.Before(deadline) {
		deadline = id.ExpiresAt
	}
	if c.now().Before(deadline) {
		c.cache.Add(key, cacheEntry{identity: id, deadline: deadline})
	}
	return id, nil
}

// Len возвращает количество записей в кэше.
func (c *CachedVerifier) Len() int {
	return c.cache.Len()
}

func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
