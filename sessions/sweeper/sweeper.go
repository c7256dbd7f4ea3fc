// Package sweeper removes expired sessions from stores that do not expire
// them on their own.
package sweeper

import (
	"context"
	"time"

	"github.com/jrsteele09/go-session-gateway/sessions"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultSchedule sweeps once a minute.
const DefaultSchedule = "@every 1m"

const sweepTimeout = 30 * time.Second

type Scheduler struct {
	cron  *cron.Cron
	store sessions.Sweeper
	now   func() time.Time
}

type Option func(*Scheduler)

// WithClock replaces the time sweeps compare expiry against.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New schedules store sweeps. schedule is a cron expression with a seconds
// field, or a descriptor such as "@every 5m".
func New(store sessions.Sweeper, schedule string, opts ...Option) (*Scheduler, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	s := &Scheduler{
		cron:  cron.New(cron.WithSeconds()),
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.cron.AddFunc(schedule, s.run); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new sweeps and returns a context that is done once a
// running sweep has finished, or after 5s.
func (s *Scheduler) Stop() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		<-s.cron.Stop().Done()
		cancel()
	}()
	return ctx
}

// Sweep runs one sweep now.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	removed, err := s.store.SweepExpired(ctx, s.now())
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("expired sessions swept")
	}
	return removed, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()
	if _, err := s.Sweep(ctx); err != nil {
		log.Error().Err(err).Msg("session sweep failed")
	}
}
