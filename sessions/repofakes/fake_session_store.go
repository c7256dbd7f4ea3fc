package fakesessionstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/sessions"
)

var (
	_ sessions.Store   = (*FakeSessionStore)(nil)
	_ sessions.Sweeper = (*FakeSessionStore)(nil)
)

// FakeSessionStore keeps sessions in memory. It backs the "memory" store
// backend and the tests.
type FakeSessionStore struct {
	sessions map[string]*sessions.Session
	byUser   map[string]map[string]struct{} // userID -> sessionIDs
	progress map[string]sessions.Progress   // userID -> onboarding progress
	failures map[string]error               // operation -> injected error
	lifetime time.Duration
	now      func() time.Time
	lock     sync.RWMutex
}

// NewFakeSessionStore creates a store whose sessions live for lifetime.
func NewFakeSessionStore(lifetime time.Duration) *FakeSessionStore {
	return &FakeSessionStore{
		sessions: make(map[string]*sessions.Session),
		byUser:   make(map[string]map[string]struct{}),
		progress: make(map[string]sessions.Progress),
		failures: make(map[string]error),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// SetClock replaces the store's time source.
func (ss *FakeSessionStore) SetClock(now func() time.Time) {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	ss.now = now
}

// FailWith makes every call to op ("create", "validate", "refresh", "destroy",
// "list", "update", "reset") return err until cleared with a nil err.
func (ss *FakeSessionStore) FailWith(op string, err error) {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if err == nil {
		delete(ss.failures, op)
		return
	}
	ss.failures[op] = err
}

func (ss *FakeSessionStore) injected(op string) error {
	return ss.failures[op]
}

func (ss *FakeSessionStore) Create(ctx context.Context, creds sessions.Credentials) (*sessions.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "create: %s", err)
	}
	if creds.UserID == "" || creds.AccessToken == "" {
		return nil, errors.Wrapf(errors.ErrAuthentication, "missing user or access token")
	}
	id, err := sessions.NewID()
	if err != nil {
		return nil, err
	}

	ss.lock.Lock()
	defer ss.lock.Unlock()
	if err := ss.injected("create"); err != nil {
		return nil, err
	}

	now := ss.now()
	session := &sessions.Session{
		ID:             id,
		UserID:         creds.UserID,
		Email:          creds.Email,
		AccessToken:    creds.AccessToken,
		RefreshToken:   creds.RefreshToken,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(ss.lifetime),
		ClientMeta:     creds.ClientMeta,
	}
	ss.sessions[id] = session
	if _, ok := ss.byUser[creds.UserID]; !ok {
		ss.byUser[creds.UserID] = make(map[string]struct{})
	}
	ss.byUser[creds.UserID][id] = struct{}{}

	return ss.project(session), nil
}

func (ss *FakeSessionStore) Validate(ctx context.Context, sessionID string) (*sessions.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "validate: %s", err)
	}
	ss.lock.RLock()
	defer ss.lock.RUnlock()
	if err := ss.injected("validate"); err != nil {
		return nil, err
	}

	session, err := ss.live(sessionID)
	if err != nil {
		return nil, err
	}
	return ss.project(session), nil
}

func (ss *FakeSessionStore) Refresh(ctx context.Context, sessionID string, extendByHours int) (*sessions.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "refresh: %s", err)
	}
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if err := ss.injected("refresh"); err != nil {
		return nil, err
	}

	session, err := ss.live(sessionID)
	if err != nil {
		return nil, err
	}
	now := ss.now()
	extended := now.Add(time.Duration(extendByHours) * time.Hour)
	if extended.After(session.ExpiresAt) {
		session.ExpiresAt = extended
	}
	session.LastActivityAt = now
	return ss.project(session), nil
}

func (ss *FakeSessionStore) Destroy(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(errors.ErrStoreUnavailable, "destroy: %s", err)
	}
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if err := ss.injected("destroy"); err != nil {
		return err
	}
	ss.remove(sessionID)
	return nil
}

func (ss *FakeSessionStore) ListActiveForUser(ctx context.Context, userID string) ([]sessions.Summary, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "list: %s", err)
	}
	ss.lock.RLock()
	defer ss.lock.RUnlock()
	if err := ss.injected("list"); err != nil {
		return nil, err
	}

	now := ss.now()
	summaries := make([]sessions.Summary, 0, len(ss.byUser[userID]))
	for id := range ss.byUser[userID] {
		session := ss.sessions[id]
		if session == nil || session.IsExpired(now) {
			continue
		}
		summaries = append(summaries, session.Summarise())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (ss *FakeSessionStore) UpdateOnboarding(ctx context.Context, sessionID string, from, to sessions.OnboardingState, tenantID string) (*sessions.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "update onboarding: %s", err)
	}
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if err := ss.injected("update"); err != nil {
		return nil, err
	}

	session, err := ss.live(sessionID)
	if err != nil {
		return nil, err
	}
	next, err := ss.progress[session.UserID].CompareAndSet(from, to, tenantID)
	if err != nil {
		return nil, err
	}
	ss.progress[session.UserID] = next
	return ss.project(session), nil
}

func (ss *FakeSessionStore) ResetOnboarding(ctx context.Context, sessionID string, to sessions.OnboardingState) (*sessions.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "reset onboarding: %s", err)
	}
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if err := ss.injected("reset"); err != nil {
		return nil, err
	}

	session, err := ss.live(sessionID)
	if err != nil {
		return nil, err
	}
	next, err := ss.progress[session.UserID].Reset(to)
	if err != nil {
		return nil, err
	}
	ss.progress[session.UserID] = next
	return ss.project(session), nil
}

// SweepExpired removes every session that expired before now.
func (ss *FakeSessionStore) SweepExpired(_ context.Context, now time.Time) (int, error) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	swept := 0
	for id, session := range ss.sessions {
		if session.IsExpired(now) {
			ss.remove(id)
			swept++
		}
	}
	return swept, nil
}

// Len returns the number of stored sessions, expired ones included.
func (ss *FakeSessionStore) Len() int {
	ss.lock.RLock()
	defer ss.lock.RUnlock()
	return len(ss.sessions)
}

// live must be called with the lock held.
func (ss *FakeSessionStore) live(sessionID string) (*sessions.Session, error) {
	session, ok := ss.sessions[sessionID]
	if !ok || session.IsExpired(ss.now()) {
		return nil, errors.ErrSessionNotFound
	}
	return session, nil
}

// remove must be called with the write lock held.
func (ss *FakeSessionStore) remove(sessionID string) {
	session, ok := ss.sessions[sessionID]
	if !ok {
		return
	}
	delete(ss.sessions, sessionID)
	if ids, ok := ss.byUser[session.UserID]; ok {
		delete(ids, sessionID)
		if len(ids) == 0 {
			delete(ss.byUser, session.UserID)
		}
	}
}

// project returns a copy carrying the owner's onboarding progress, so callers
// never alias stored state.
func (ss *FakeSessionStore) project(session *sessions.Session) *sessions.Session {
	out := *session
	ss.progress[session.UserID].Apply(&out)
	return &out
}
