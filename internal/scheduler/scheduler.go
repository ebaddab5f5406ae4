package scheduler

import (
	"time"

	"yaks/internal/usecase"
	"yaks/pkg/logger"

	"github.com/go-co-op/gocron/v2"
)

// Scheduler drives feature expiry: a one-shot job per purchase with a
// duration, and a periodic sweep that catches anything the one-shot jobs
// missed (restarts, past-due rows, failed removals).
type Scheduler struct {
	sched    gocron.Scheduler
	features usecase.FeatureUseCase
	interval time.Duration
	log      *logger.Logger
}

func New(features usecase.FeatureUseCase, sweepInterval time.Duration, log *logger.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		sched:    sched,
		features: features,
		interval: sweepInterval,
		log:      log,
	}, nil
}

// Start begins the sweeper and runs one immediate sweep to pick up rows
// that expired while the service was down.
func (s *Scheduler) Start() error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweep),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	s.sched.Start()
	return nil
}

func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

// ScheduleExpiry books a one-shot expiry at the given instant. Times
// already in the past run right away; gocron refuses past start times.
func (s *Scheduler) ScheduleExpiry(useID string, at time.Time) {
	if !at.After(time.Now()) {
		go s.expire(useID)
		return
	}

	_, err := s.sched.NewJob(
		gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(at)),
		gocron.NewTask(s.expire, useID),
	)
	if err != nil {
		// The sweeper will handle this row.
		s.log.Warn("could not schedule expiry for use %s: %v", useID, err)
	}
}

func (s *Scheduler) expire(useID string) {
	if err := s.features.ExpireUse(useID); err != nil {
		s.log.Error("expiry failed for use %s: %v", useID, err)
	}
}

func (s *Scheduler) sweep() {
	processed, err := s.features.SweepExpired()
	if err != nil {
		s.log.Error("expiry sweep failed: %v", err)
		return
	}
	if processed > 0 {
		s.log.Info("expiry sweep processed %d feature uses", processed)
	}
}
