package resilience

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

// PoolConfig sizes a ConnectionPool.
type PoolConfig struct {
	Name           string
	MaxActive      int
	MaxIdle        int
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
}

// ConnectionPool bounds the number of in-flight requests to one upstream and
// routes every request through that upstream's circuit breaker. Callers over
// the limit wait for a slot until their context is done.
type ConnectionPool struct {
	config         PoolConfig
	client         *http.Client
	slots          *semaphore.Weighted
	circuitBreaker *CircuitBreaker

	active   atomic.Int64
	requests atomic.Int64
	failures atomic.Int64
}

// NewConnectionPool creates a pool. A nil breaker gets a default one.
func NewConnectionPool(config PoolConfig, cb *CircuitBreaker) *ConnectionPool {
	if config.MaxActive <= 0 {
		config.MaxActive = 10
	}
	if config.MaxIdle <= 0 {
		config.MaxIdle = config.MaxActive
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = 90 * time.Second
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if cb == nil {
		cb = NewCircuitBreaker(CircuitBreakerConfig{Name: config.Name})
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          config.MaxIdle,
		MaxConnsPerHost:       config.MaxActive,
		MaxIdleConnsPerHost:   config.MaxIdle,
		IdleConnTimeout:       config.IdleTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: config.RequestTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &ConnectionPool{
		config:         config,
		client:         &http.Client{Transport: transport, Timeout: config.RequestTimeout},
		slots:          semaphore.NewWeighted(int64(config.MaxActive)),
		circuitBreaker: cb,
	}
}

// DoRequest sends one request. Transport errors count against the circuit
// breaker; any HTTP response, whatever its status, is returned to the caller,
// who must close the body.
func (cp *ConnectionPool) DoRequest(ctx context.Context, method, url string, headers map[string]string, body io.Reader) (*http.Response, error) {
	if err := cp.slots.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for %s connection slot: %w", cp.config.Name, err)
	}
	cp.active.Add(1)
	defer func() {
		cp.active.Add(-1)
		cp.slots.Release(1)
	}()

	var resp *http.Response
	err := cp.circuitBreaker.Call(func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return err
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}

		cp.requests.Add(1)
		start := time.Now()
		resp, err = cp.client.Do(req)
		duration := time.Since(start)

		if err != nil {
			cp.failures.Add(1)
			slog.Warn("Request failed", "pool", cp.config.Name, "method", method, "url", url,
				"error", err, "duration_ms", duration.Milliseconds())
			return err
		}

		slog.Debug("Request completed", "pool", cp.config.Name, "method", method, "url", url,
			"status", resp.StatusCode, "duration_ms", duration.Milliseconds())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"name":                  cp.config.Name,
		"active_requests":       cp.active.Load(),
		"total_requests":        cp.requests.Load(),
		"failed_requests":       cp.failures.Load(),
		"max_active":            cp.config.MaxActive,
		"max_idle":              cp.config.MaxIdle,
		"idle_timeout_ms":       cp.config.IdleTimeout.Milliseconds(),
		"circuit_breaker_state": cp.circuitBreaker.State().String(),
	}
}

// Close drops idle keep-alive connections.
func (cp *ConnectionPool) Close() error {
	cp.client.CloseIdleConnections()
	slog.Info("Connection pool closed", "pool", cp.config.Name)
	return nil
}
