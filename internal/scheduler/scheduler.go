// Package scheduler runs engine cycles on a cron schedule, guaranteeing that
// cycles never overlap.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Runner is one engine cycle.
type Runner func(ctx context.Context) error

// Scheduler fires the runner per the cron expression. If a tick arrives
// while a cycle is still running, the tick is dropped, not queued.
type Scheduler struct {
	cron    *cron.Cron
	run     Runner
	log     zerolog.Logger
	running atomic.Bool
	skipped atomic.Int64
}

// New validates spec (standard five-field cron) and prepares the scheduler.
func New(spec string, run Runner, logger zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		run:  run,
		log:  logger.With().Str("component", "scheduler").Logger(),
	}

	ctx := context.Background()
	if _, err := s.cron.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins firing ticks. Returns immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop halts future ticks and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Int64("skipped_ticks", s.skipped.Load()).Msg("scheduler stopped")
}

// Skipped reports how many ticks were dropped because a cycle was running.
func (s *Scheduler) Skipped() int64 {
	return s.skipped.Load()
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.log.Warn().Msg("previous cycle still running, tick skipped")
		return
	}
	defer s.running.Store(false)

	if err := s.run(ctx); err != nil {
		s.log.Error().Err(err).Msg("cycle failed")
	}
}
