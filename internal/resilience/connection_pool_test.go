package resilience

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionPool_DoRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token abc", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	pool := NewConnectionPool(PoolConfig{Name: "test", MaxActive: 2}, nil)
	defer pool.Close()

	resp, err := pool.DoRequest(context.Background(), http.MethodGet, srv.URL, map[string]string{"Authorization": "token abc"}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	stats := pool.GetStats()
	assert.Equal(t, int64(1), stats["total_requests"])
	assert.Equal(t, int64(0), stats["active_requests"])
	assert.Equal(t, "closed", stats["circuit_breaker_state"])
}

func TestConnectionPool_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
	}))
	defer srv.Close()

	pool := NewConnectionPool(PoolConfig{Name: "bounded", MaxActive: 2}, nil)
	defer pool.Close()

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := pool.DoRequest(context.Background(), http.MethodGet, srv.URL, nil, nil)
			if assert.NoError(t, err) {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestConnectionPool_TransportErrorsTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "dead", FailureThreshold: 2, RecoveryTimeout: time.Minute})
	pool := NewConnectionPool(PoolConfig{Name: "dead", MaxActive: 1}, cb)

	for i := 0; i < 2; i++ {
		_, err := pool.DoRequest(context.Background(), http.MethodGet, url, nil, nil)
		require.Error(t, err)
	}

	_, err := pool.DoRequest(context.Background(), http.MethodGet, url, nil, nil)
	var cbErr *CircuitBreakerError
	assert.ErrorAs(t, err, &cbErr)
	assert.Equal(t, int64(2), pool.GetStats()["failed_requests"])
}
