package middleware

import (
	"bytes"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

// CompressionConfig holds configuration for response compression
type CompressionConfig struct {
	MinSize          int      // Minimum response size to compress (bytes)
	CompressionLevel int      // 1-9
	ContentTypes     []string // Content types to compress
}

// DefaultCompressionConfig returns the default compression configuration
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:          1024,
		CompressionLevel: gzip.DefaultCompression,
		ContentTypes: []string{
			"application/json",
			"text/plain",
			"text/html",
		},
	}
}

// CompressionMiddleware gzips buffered responses for clients that accept it.
// Reports are a few KB of JSON so buffering the whole body is fine.
type CompressionMiddleware struct {
	config CompressionConfig
	stats  CompressionStats
	pool   sync.Pool
}

// NewCompressionMiddleware creates a new compression middleware
func NewCompressionMiddleware(config CompressionConfig) *CompressionMiddleware {
	cm := &CompressionMiddleware{config: config}
	cm.pool.New = func() interface{} {
		gz, err := gzip.NewWriterLevel(nil, config.CompressionLevel)
		if err != nil {
			gz = gzip.NewWriter(nil)
		}
		return gz
	}
	return cm
}

// Handler returns the gin middleware.
func (cm *CompressionMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead || !acceptsGzip(c.Request) {
			c.Next()
			return
		}

		original := c.Writer
		bw := &bufferedWriter{ResponseWriter: original, status: http.StatusOK}
		c.Writer = bw
		c.Next()
		c.Writer = original

		body := bw.buf.Bytes()
		header := original.Header()
		if len(body) == 0 {
			original.WriteHeader(bw.status)
			return
		}

		if len(body) < cm.config.MinSize ||
			header.Get("Content-Encoding") != "" ||
			!cm.shouldCompress(header.Get("Content-Type")) {
			cm.stats.record(len(body), len(body), false)
			original.WriteHeader(bw.status)
			_, _ = original.Write(body)
			return
		}

		compressed, err := cm.compress(body)
		if err != nil {
			cm.stats.record(len(body), len(body), false)
			original.WriteHeader(bw.status)
			_, _ = original.Write(body)
			return
		}

		cm.stats.record(len(body), len(compressed), true)
		header.Set("Content-Encoding", "gzip")
		header.Add("Vary", "Accept-Encoding")
		header.Del("Content-Length")
		original.WriteHeader(bw.status)
		_, _ = original.Write(compressed)
	}
}

func (cm *CompressionMiddleware) compress(body []byte) ([]byte, error) {
	var out bytes.Buffer
	gz := cm.pool.Get().(*gzip.Writer)
	defer cm.pool.Put(gz)

	gz.Reset(&out)
	if _, err := gz.Write(body); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func (cm *CompressionMiddleware) shouldCompress(contentType string) bool {
	for _, ct := range cm.config.ContentTypes {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

// GetStats returns compression statistics
func (cm *CompressionMiddleware) GetStats() map[string]interface{} {
	return cm.stats.snapshot()
}

// bufferedWriter holds the response until the handler chain returns.
type bufferedWriter struct {
	gin.ResponseWriter
	buf    bytes.Buffer
	status int
	wrote  bool
}

func (w *bufferedWriter) WriteHeader(code int) {
	if code > 0 && !w.wrote {
		w.status = code
	}
}

func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(data []byte) (int, error) {
	w.wrote = true
	return w.buf.Write(data)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	w.wrote = true
	return w.buf.WriteString(s)
}

func (w *bufferedWriter) Status() int { return w.status }

func (w *bufferedWriter) Size() int { return w.buf.Len() }

func (w *bufferedWriter) Written() bool { return w.wrote }

// Flush is a no-op; nothing leaves before the chain finishes.
func (w *bufferedWriter) Flush() {}

// CompressionStats tracks compression statistics
type CompressionStats struct {
	totalRequests      atomic.Int64
	compressedRequests atomic.Int64
	totalBytes         atomic.Int64
	compressedBytes    atomic.Int64
}

func (cs *CompressionStats) record(originalSize, compressedSize int, compressed bool) {
	cs.totalRequests.Add(1)
	cs.totalBytes.Add(int64(originalSize))
	if compressed {
		cs.compressedRequests.Add(1)
		cs.compressedBytes.Add(int64(compressedSize))
	} else {
		cs.compressedBytes.Add(int64(originalSize))
	}
}

func (cs *CompressionStats) snapshot() map[string]interface{} {
	total := cs.totalBytes.Load()
	sent := cs.compressedBytes.Load()

	ratio := float64(1)
	if total > 0 {
		ratio = float64(sent) / float64(total)
	}

	return map[string]interface{}{
		"total_requests":      cs.totalRequests.Load(),
		"compressed_requests": cs.compressedRequests.Load(),
		"total_bytes":         total,
		"sent_bytes":          sent,
		"compression_ratio":   ratio,
		"compression_savings": 1.0 - ratio,
	}
}
