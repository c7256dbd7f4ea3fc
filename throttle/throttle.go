// Package throttle limits failed login attempts per client.
package throttle

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// DefaultSize caps the number of tracked clients.
const DefaultSize = 10000

// Throttle holds a token bucket per key in a bounded LRU, so an address
// spray evicts the least recent keys instead of growing memory. Only
// failures spend tokens; a success forgets the key.
type Throttle struct {
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type Option func(*Throttle)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) {
		t.now = now
	}
}

// New allows perMinute failures per key per minute, with bursts of the same size.
func New(perMinute, size int, opts ...Option) (*Throttle, error) {
	if perMinute <= 0 {
		perMinute = 1
	}
	if size <= 0 {
		size = DefaultSize
	}
	cache, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		return nil, err
	}
	t := &Throttle{
		limiters: cache,
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Allow reports whether key may attempt a login. It does not spend a token.
func (t *Throttle) Allow(key string) bool {
	limiter, ok := t.limiters.Get(key)
	if !ok {
		return true
	}
	return limiter.TokensAt(t.now()) >= 1
}

// Failure spends one token for key.
func (t *Throttle) Failure(key string) {
	limiter, ok := t.limiters.Get(key)
	if !ok {
		limiter = rate.NewLimiter(t.limit, t.burst)
		// A concurrent first failure may also add; either limiter is fresh.
		t.limiters.ContainsOrAdd(key, limiter)
		limiter, _ = t.limiters.Get(key)
	}
	limiter.AllowN(t.now(), 1)
}

// Success clears key's history.
func (t *Throttle) Success(key string) {
	t.limiters.Remove(key)
}

// Len returns the number of tracked keys.
func (t *Throttle) Len() int {
	return t.limiters.Len()
}
