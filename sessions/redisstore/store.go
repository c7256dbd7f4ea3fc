// Package redisstore keeps the authoritative session records in Redis.
//
// Keys:
//
//	session:{id}             JSON record, expires with the session
//	user:{id}:sessions       set of the user's session IDs
//	user:{id}:onboarding     hash with "state" and "tenant_id"
package redisstore

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/jrsteele09/go-session-gateway/internal/errors"
	"github.com/jrsteele09/go-session-gateway/internal/metrics"
	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/redis/go-redis/v9"
)

var (
	_ sessions.Store   = (*Store)(nil)
	_ sessions.Sweeper = (*Store)(nil)
)

const (
	sessionPrefix = "session:"
	userPrefix    = "user:"
	stateField    = "state"
	tenantField   = "tenant_id"
	scanBatch     = 100
)

// reader is the subset of commands shared by the client and a WATCH transaction.
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

type Store struct {
	client   redis.UniversalClient
	lifetime time.Duration
	now      func() time.Time
}

type Option func(*Store)

// WithClock replaces the time source used to stamp and expire sessions.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(client redis.UniversalClient, lifetime time.Duration, opts ...Option) *Store {
	s := &Store{client: client, lifetime: lifetime, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient connects and pings, failing fast at startup.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrStoreUnavailable, "redis ping: %s", err)
	}
	return client, nil
}

// record is the stored form. Unlike sessions.Session it keeps the tokens.
type record struct {
	ID             string              `json:"id"`
	UserID         string              `json:"user_id"`
	Email          string              `json:"email"`
	AccessToken    string              `json:"access_token"`
	RefreshToken   string              `json:"refresh_token,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	LastActivityAt time.Time           `json:"last_activity_at"`
	ExpiresAt      time.Time           `json:"expires_at"`
	ClientMeta     sessions.ClientMeta `json:"client_meta"`
}

func (r *record) session(p sessions.Progress) *sessions.Session {
	s := &sessions.Session{
		ID:             r.ID,
		UserID:         r.UserID,
		Email:          r.Email,
		AccessToken:    r.AccessToken,
		RefreshToken:   r.RefreshToken,
		CreatedAt:      r.CreatedAt,
		LastActivityAt: r.LastActivityAt,
		ExpiresAt:      r.ExpiresAt,
		ClientMeta:     r.ClientMeta,
	}
	p.Apply(s)
	return s
}

func sessionKey(id string) string {
	return sessionPrefix + id
}

func userSessionsKey(userID string) string {
	return userPrefix + userID + ":sessions"
}

func progressKey(userID string) string {
	return userPrefix + userID + ":onboarding"
}

func (s *Store) Create(ctx context.Context, creds sessions.Credentials) (_ *sessions.Session, err error) {
	defer s.observe("create", time.Now(), &err)

	if creds.UserID == "" || creds.AccessToken == "" {
		return nil, errors.Wrapf(errors.ErrAuthentication, "missing user or access token")
	}
	id, err := sessions.NewID()
	if err != nil {
		return nil, err
	}
	now := s.now()
	rec := &record{
		ID:             id,
		UserID:         creds.UserID,
		Email:          creds.Email,
		AccessToken:    creds.AccessToken,
		RefreshToken:   creds.RefreshToken,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(s.lifetime),
		ClientMeta:     creds.ClientMeta,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, sessionKey(id), data, s.lifetime)
		p.SAdd(ctx, userSessionsKey(creds.UserID), id)
		return nil
	})
	if err != nil {
		return nil, unavailable("create", err)
	}

	progress, err := s.loadProgress(ctx, s.client, creds.UserID)
	if err != nil {
		return nil, err
	}
	return rec.session(progress), nil
}

func (s *Store) Validate(ctx context.Context, sessionID string) (_ *sessions.Session, err error) {
	defer s.observe("validate", time.Now(), &err)

	rec, err := s.load(ctx, s.client, sessionID)
	if err != nil {
		return nil, err
	}
	progress, err := s.loadProgress(ctx, s.client, rec.UserID)
	if err != nil {
		return nil, err
	}
	return rec.session(progress), nil
}

func (s *Store) Refresh(ctx context.Context, sessionID string, extendByHours int) (_ *sessions.Session, err error) {
	defer s.observe("refresh", time.Now(), &err)

	var rec *record
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.load(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		now := s.now()
		if extended := now.Add(time.Duration(extendByHours) * time.Hour); extended.After(current.ExpiresAt) {
			current.ExpiresAt = extended
		}
		current.LastActivityAt = now
		data, err := json.Marshal(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, sessionKey(sessionID), data, current.ExpiresAt.Sub(now))
			return nil
		})
		rec = current
		return err
	}, sessionKey(sessionID))
	if errors.Is(err, redis.TxFailedErr) {
		// A concurrent refresh won. Refreshes commute, so its result stands.
		return s.Validate(ctx, sessionID)
	}
	if err != nil {
		return nil, storeError("refresh", err)
	}

	progress, err := s.loadProgress(ctx, s.client, rec.UserID)
	if err != nil {
		return nil, err
	}
	return rec.session(progress), nil
}

func (s *Store) Destroy(ctx context.Context, sessionID string) (err error) {
	defer s.observe("destroy", time.Now(), &err)

	rec, err := s.load(ctx, s.client, sessionID)
	if errors.Is(err, errors.ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(sessionID))
		p.SRem(ctx, userSessionsKey(rec.UserID), sessionID)
		return nil
	})
	return unavailable("destroy", err)
}

func (s *Store) ListActiveForUser(ctx context.Context, userID string) (_ []sessions.Summary, err error) {
	defer s.observe("list", time.Now(), &err)

	ids, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil {
		return nil, unavailable("list", err)
	}
	summaries := make([]sessions.Summary, 0, len(ids))
	if len(ids) == 0 {
		return summaries, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable("list", err)
	}

	now := s.now()
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		session := rec.session(sessions.Progress{})
		if session.IsExpired(now) {
			continue
		}
		summaries = append(summaries, session.Summarise())
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func (s *Store) UpdateOnboarding(ctx context.Context, sessionID string, from, to sessions.OnboardingState, tenantID string) (_ *sessions.Session, err error) {
	defer s.observe("update_onboarding", time.Now(), &err)

	return s.mutateProgress(ctx, sessionID, func(p sessions.Progress) (sessions.Progress, error) {
		return p.CompareAndSet(from, to, tenantID)
	})
}

func (s *Store) ResetOnboarding(ctx context.Context, sessionID string, to sessions.OnboardingState) (_ *sessions.Session, err error) {
	defer s.observe("reset_onboarding", time.Now(), &err)

	return s.mutateProgress(ctx, sessionID, func(p sessions.Progress) (sessions.Progress, error) {
		return p.Reset(to)
	})
}

// mutateProgress applies fn to the owner's progress inside WATCH/MULTI. A
// concurrent writer aborts the transaction, which is reported as a lost
// compare-and-set.
func (s *Store) mutateProgress(ctx context.Context, sessionID string, fn func(sessions.Progress) (sessions.Progress, error)) (*sessions.Session, error) {
	rec, err := s.load(ctx, s.client, sessionID)
	if err != nil {
		return nil, err
	}

	var next sessions.Progress
	key := progressKey(rec.UserID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.loadProgress(ctx, tx, rec.UserID)
		if err != nil {
			return err
		}
		next, err = fn(current)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HSet(ctx, key, stateField, next.State.String(), tenantField, next.TenantID)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, errors.Wrapf(errors.ErrInvalidOnboardingTransition, "concurrent onboarding update")
	}
	if err != nil {
		return nil, storeError("update onboarding", err)
	}
	return rec.session(next), nil
}

// SweepExpired drops session IDs whose records Redis has already expired from
// the per-user sets. It returns the number of IDs removed.
func (s *Store) SweepExpired(ctx context.Context, _ time.Time) (int, error) {
	swept := 0
	iter := s.client.Scan(ctx, 0, userPrefix+"*:sessions", scanBatch).Iterator()
	for iter.Next(ctx) {
		setKey := iter.Val()
		ids, err := s.client.SMembers(ctx, setKey).Result()
		if err != nil {
			return swept, unavailable("sweep", err)
		}
		for _, id := range ids {
			n, err := s.client.Exists(ctx, sessionKey(id)).Result()
			if err != nil {
				return swept, unavailable("sweep", err)
			}
			if n > 0 {
				continue
			}
			if err := s.client.SRem(ctx, setKey, id).Err(); err != nil {
				return swept, unavailable("sweep", err)
			}
			swept++
		}
	}
	if err := iter.Err(); err != nil {
		return swept, unavailable("sweep", err)
	}
	return swept, nil
}

func (s *Store) load(ctx context.Context, c reader, sessionID string) (*record, error) {
	raw, err := c.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, unavailable("load", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrapf(errors.ErrInternal, "corrupt session record: %s", err)
	}
	if (&sessions.Session{ExpiresAt: rec.ExpiresAt}).IsExpired(s.now()) {
		return nil, errors.ErrSessionNotFound
	}
	return &rec, nil
}

func (s *Store) loadProgress(ctx context.Context, c reader, userID string) (sessions.Progress, error) {
	fields, err := c.HGetAll(ctx, progressKey(userID)).Result()
	if err != nil {
		return sessions.Progress{}, unavailable("load progress", err)
	}
	if len(fields) == 0 {
		return sessions.Progress{}, nil
	}
	state, err := sessions.ParseOnboardingState(fields[stateField])
	if err != nil {
		return sessions.Progress{}, errors.Wrapf(errors.ErrInternal, "corrupt onboarding progress: %s", err)
	}
	return sessions.Progress{State: state, TenantID: fields[tenantField]}, nil
}

func (s *Store) observe(op string, start time.Time, err *error) {
	result := "ok"
	switch {
	case *err == nil:
	case errors.Is(*err, errors.ErrSessionNotFound):
		result = "not_found"
	case errors.Is(*err, errors.ErrStoreUnavailable):
		result = "unavailable"
	default:
		result = "error"
	}
	metrics.RecordStore(op, result, time.Since(start).Seconds())
}

// unavailable wraps a Redis transport error. nil stays nil.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(errors.ErrStoreUnavailable, "%s: %s", op, err)
}

// storeError keeps the store's own typed errors and wraps everything else as
// a transport failure.
func storeError(op string, err error) error {
	for _, typed := range []error{
		errors.ErrSessionNotFound,
		errors.ErrInvalidOnboardingTransition,
		errors.ErrUnknownOnboardingState,
		errors.ErrInternal,
		errors.ErrStoreUnavailable,
	} {
		if errors.Is(err, typed) {
			return err
		}
	}
	return unavailable(op, err)
}
