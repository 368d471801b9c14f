package usecase

import (
	"context"
	"fmt"
	"time"

	"FinScan/internal/domain/models"
	"FinScan/pkg/logger"

	"github.com/go-co-op/gocron/v2"
)

// Scanner is what the scheduler triggers on each scan tick.
type Scanner interface {
	Scan(ctx context.Context) (*models.ScanResult, error)
}

// ScheduleOptions sets the periodic jobs. A zero interval disables that job.
type ScheduleOptions struct {
	ScanInterval     time.Duration
	UniverseInterval time.Duration
	ScanOnStart      bool
}

// Scheduler runs universe rebuilds and scans periodically. Jobs run in singleton mode,
// so a tick that fires while the previous run is still going is dropped.
type Scheduler struct {
	scheduler gocron.Scheduler
	scanner   Scanner
	universe  UniverseBuilder
	log       *logger.Logger
	opts      ScheduleOptions
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler creates a scheduler instance.
func NewScheduler(scanner Scanner, universe UniverseBuilder, log *logger.Logger, opts ScheduleOptions) (*Scheduler, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("create gocron scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: s,
		scanner:   scanner,
		universe:  universe,
		log:       log,
		opts:      opts,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start registers the configured jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	if s.opts.UniverseInterval > 0 {
		if _, err := s.scheduler.NewJob(
			gocron.DurationJob(s.opts.UniverseInterval),
			gocron.NewTask(s.runUniverse),
			gocron.WithName("universe-build"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return fmt.Errorf("schedule universe build: %w", err)
		}
	}

	if s.opts.ScanInterval > 0 {
		if _, err := s.scheduler.NewJob(
			gocron.DurationJob(s.opts.ScanInterval),
			gocron.NewTask(s.runScan),
			gocron.WithName("scan"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			return fmt.Errorf("schedule scan: %w", err)
		}
	}

	if s.opts.ScanOnStart {
		if _, err := s.scheduler.NewJob(
			gocron.OneTimeJob(gocron.OneTimeJobStartImmediately()),
			gocron.NewTask(s.runScan),
			gocron.WithName("scan-on-start"),
		); err != nil {
			return fmt.Errorf("schedule startup scan: %w", err)
		}
	}

	s.log.Info("starting scheduler",
		logger.Duration("scan_interval", s.opts.ScanInterval),
		logger.Duration("universe_interval", s.opts.UniverseInterval),
		logger.Bool("scan_on_start", s.opts.ScanOnStart),
		logger.Int("jobs", len(s.scheduler.Jobs())),
	)
	s.scheduler.Start()
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.log.Info("stopping scheduler")
	s.cancel()
	return s.scheduler.Shutdown()
}

// JobNames lists the registered jobs.
func (s *Scheduler) JobNames() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}

func (s *Scheduler) runScan() {
	res, err := s.scanner.Scan(s.ctx)
	switch {
	case err == nil:
		s.log.Info("scheduled scan done", logger.String("scan_id", res.ScanID), logger.Int("rows", res.Count))
	case IsBusy(err):
		s.log.Info("scheduled scan skipped, another scan is running")
	case s.ctx.Err() != nil:
		s.log.Debug("scheduled scan cancelled")
	default:
		s.log.Error("scheduled scan failed", logger.Error(err))
	}
}

func (s *Scheduler) runUniverse() {
	res, err := s.universe.Build(s.ctx)
	if err != nil {
		if s.ctx.Err() == nil {
			s.log.Error("scheduled universe build failed", logger.Error(err))
		}
		return
	}
	s.log.Info("scheduled universe build done", logger.Int("kept", res.Kept), logger.Int("candidates", res.Candidates))
}
