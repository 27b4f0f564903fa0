package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Metrics is the part of monitoring.Metrics the cache reports to.
type Metrics interface {
	IncrementCacheHit()
	IncrementCacheMiss()
}

// Logger is the part of monitoring.Logger the cache middleware writes to.
type Logger interface {
	CacheLogger(operation, key string, hit bool, itemCount int)
}

// skipKey marks a response that must not be stored.
const skipKey = "cache.skip"

// SkipStore keeps the current response out of the cache, for results that
// are served but should not be repeated to later callers.
func SkipStore(ctx *gin.Context) {
	ctx.Set(skipKey, true)
}

// Cache is a size-bounded, expiring store of rendered responses.
type Cache struct {
	items  *expirable.LRU[string, []byte]
	size   int
	ttl    time.Duration
	hits   atomic.Int64
	misses atomic.Int64
	evicts atomic.Int64
}

// NewCache creates a cache holding at most size entries for ttl each.
func NewCache(size int, ttl time.Duration) *Cache {
	c := &Cache{size: size, ttl: ttl}
	c.items = expirable.NewLRU[string, []byte](size, func(string, []byte) {
		c.evicts.Add(1)
	}, ttl)
	return c
}

// Key hashes the parts into a fixed-length cache key.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Get retrieves an item from the cache
func (c *Cache) Get(key string) ([]byte, bool) {
	data, ok := c.items.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return data, ok
}

// Set stores an item in the cache
func (c *Cache) Set(key string, data []byte) {
	c.items.Add(key, data)
}

// Delete removes an item from the cache
func (c *Cache) Delete(key string) {
	c.items.Remove(key)
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.items.Purge()
}

// Size returns the number of live items
func (c *Cache) Size() int {
	return c.items.Len()
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	hits, misses := c.hits.Load(), c.misses.Load()
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = float64(hits) / float64(hits+misses) * 100
	}

	return map[string]interface{}{
		"active_items":     c.items.Len(),
		"max_items":        c.size,
		"ttl_seconds":      c.ttl.Seconds(),
		"hits":             hits,
		"misses":           misses,
		"evictions":        c.evicts.Load(),
		"hit_rate_percent": hitRate,
	}
}

// Middleware caches successful responses of POST requests to path, keyed on
// the request body. Requests carrying their own Authorization header bypass
// the cache so a caller's token never serves someone else's response.
func (c *Cache) Middleware(path string, metrics Metrics, logger Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost || ctx.FullPath() != path || ctx.GetHeader("Authorization") != "" {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}
		ctx.Request.Body = io.NopCloser(bytes.NewReader(body))

		key := Key(path, string(body))
		shortKey := key[:8] + "..."

		if cached, found := c.Get(key); found {
			logger.CacheLogger("get", shortKey, true, c.Size())
			metrics.IncrementCacheHit()
			ctx.Header("X-Cache", "HIT")
			ctx.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			ctx.Abort()
			return
		}

		logger.CacheLogger("get", shortKey, false, c.Size())
		metrics.IncrementCacheMiss()

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}
		ctx.Writer = wrapper
		ctx.Header("X-Cache", "MISS")
		ctx.Next()

		if wrapper.Status() != http.StatusOK {
			return
		}
		if ctx.GetBool(skipKey) {
			logger.CacheLogger("skip", shortKey, false, c.Size())
			return
		}
		c.Set(key, wrapper.body.Bytes())
		logger.CacheLogger("set", shortKey, false, c.Size())
	}
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
