package authflowrepo

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jrsteele09/go-session-gateway/internal/errors"
)

const (
	// DefaultTTL is how long a started login may take to come back.
	DefaultTTL  = 10 * time.Minute
	DefaultSize = 10_000
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo keeps flow states in a bounded LRU. Entries expire after the
// TTL and the least recently started flow is evicted when full.
type InMemoryRepo struct {
	states *expirable.LRU[string, AuthFlowState]
}

// NewInMemoryRepo creates a new in-memory auth flow state repository
func NewInMemoryRepo(size int, ttl time.Duration) *InMemoryRepo {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryRepo{
		states: expirable.NewLRU[string, AuthFlowState](size, nil, ttl),
	}
}

// Upsert stores or updates an auth flow state
func (r *InMemoryRepo) Upsert(state string, authState *AuthFlowState) error {
	if state == "" {
		return errors.Wrapf(errors.ErrInvalidRequest, "state cannot be empty")
	}
	if authState == nil {
		return errors.Wrapf(errors.ErrInvalidRequest, "authState cannot be nil")
	}
	// Stored by value to prevent external modifications
	r.states.Add(state, *authState)
	return nil
}

func (r *InMemoryRepo) Take(state string) (*AuthFlowState, error) {
	if state == "" {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "state cannot be empty")
	}
	authState, ok := r.states.Peek(state)
	if !ok || !r.states.Remove(state) {
		return nil, errors.Wrapf(errors.ErrNotFound, "auth flow state")
	}
	return &authState, nil
}

func (r *InMemoryRepo) Len() int {
	return r.states.Len()
}
