// Package ratelimit throttles handler invocations and monitor API requests.
//
// Two limiters are provided:
//   - TokenBucket: one in-memory token bucket (golang.org/x/time/rate)
//   - Keyed: an independent token bucket per key, such as an event name or
//     a client address
//
// # Basic Usage
//
//	// 100 invocations/second with a burst of 10
//	limiter := ratelimit.NewTokenBucket(100, 10)
//	d := observable.New(observable.WithMiddleware(
//	    observable.RateLimitMiddleware(limiter),
//	))
//
// # Non-Blocking Check
//
//	if limiter.Allow(ctx) {
//	    // proceed
//	} else {
//	    // reject
//	}
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is the interface for rate limiters.
// All implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether an event may happen now and consumes a token if so.
	Allow(ctx context.Context) bool

	// Wait blocks until an event is allowed or ctx is done.
	Wait(ctx context.Context) error
}

// TokenBucket is a local token bucket limiter.
//
// Tokens are added at rps per second up to burst; each event takes one.
type TokenBucket struct {
	limiter *rate.Limiter
}

// NewTokenBucket creates a token bucket allowing rps events per second with
// bursts of up to burst events.
func NewTokenBucket(rps float64, burst int) *TokenBucket {
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Allow consumes one token if available.
func (t *TokenBucket) Allow(ctx context.Context) bool {
	return t.limiter.Allow()
}

// Wait blocks until a token is available or ctx is done.
func (t *TokenBucket) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// SetLimit updates the rate.
func (t *TokenBucket) SetLimit(rps float64) {
	t.limiter.SetLimit(rate.Limit(rps))
}

// SetBurst updates the burst size.
func (t *TokenBucket) SetBurst(burst int) {
	t.limiter.SetBurst(burst)
}

// Limit returns the rate in events per second.
func (t *TokenBucket) Limit() float64 {
	return float64(t.limiter.Limit())
}

// Burst returns the burst size.
func (t *TokenBucket) Burst() int {
	return t.limiter.Burst()
}

// Keyed holds one token bucket per key, created on first use.
//
// Example:
//
//	perClient := ratelimit.NewKeyed(5, 10)
//	if !perClient.For(r.RemoteAddr).Allow(ctx) {
//	    w.WriteHeader(http.StatusTooManyRequests)
//	}
type Keyed struct {
	mu      sync.Mutex
	rps     float64
	burst   int
	buckets map[string]*TokenBucket
}

// NewKeyed creates a keyed limiter whose buckets allow rps events per second
// with bursts of up to burst events.
func NewKeyed(rps float64, burst int) *Keyed {
	return &Keyed{
		rps:     rps,
		burst:   burst,
		buckets: make(map[string]*TokenBucket),
	}
}

// For returns the bucket of key.
func (k *Keyed) For(key string) *TokenBucket {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.buckets[key]
	if !ok {
		b = NewTokenBucket(k.rps, k.burst)
		k.buckets[key] = b
	}
	return b
}

// Len returns the number of buckets created so far.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Forget drops the bucket of key; the next For starts a full bucket.
func (k *Keyed) Forget(key string) {
	k.mu.Lock()
	delete(k.buckets, key)
	k.mu.Unlock()
}

// Compile-time check
var _ Limiter = (*TokenBucket)(nil)
