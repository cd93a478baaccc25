// Package scheduler runs the periodic subscription jobs with gocron v2.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/rackgrid/rackgrid/internal/shared/biztime"
	"github.com/rackgrid/rackgrid/internal/shared/config"
	"github.com/rackgrid/rackgrid/internal/shared/logger"
)

// BatchJob processes every subscription due at now and returns how many it
// changed.
type BatchJob interface {
	Execute(ctx context.Context, now time.Time) (int, error)
}

const (
	defaultRenewalInterval = 6 * time.Hour
	defaultAdvanceInterval = time.Hour
	defaultBatchTimeout    = 30 * time.Minute
)

// SchedulerManager owns one gocron scheduler. Every job runs in singleton
// mode so a slow tick is never overlapped by the next one.
type SchedulerManager struct {
	scheduler gocron.Scheduler
	logger    logger.Interface
	now       func() time.Time

	started   bool
	startedMu sync.Mutex
}

func NewSchedulerManager(log logger.Interface) (*SchedulerManager, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &SchedulerManager{
		scheduler: s,
		logger:    log,
		now:       biztime.NowUTC,
	}, nil
}

// RegisterSubscriptionJobs schedules automatic renewal and tier advance.
func (m *SchedulerManager) RegisterSubscriptionJobs(cfg config.RenewalConfig, renewal, advance BatchJob) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultRenewalInterval
	}
	advanceInterval := cfg.AdvanceInterval
	if advanceInterval <= 0 {
		advanceInterval = defaultAdvanceInterval
	}
	timeout := cfg.BatchTimeout
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}

	if err := m.register("subscription-renewal", interval, timeout, renewal); err != nil {
		return err
	}
	if err := m.register("tier-advance", advanceInterval, timeout, advance); err != nil {
		return err
	}

	m.logger.Infow("registered subscription jobs",
		"renewal_interval", interval,
		"advance_interval", advanceInterval,
		"batch_timeout", timeout,
	)
	return nil
}

func (m *SchedulerManager) register(name string, interval, timeout time.Duration, job BatchJob) error {
	_, err := m.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			m.runBatch(ctx, name, job)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithTags("subscription"),
		gocron.WithName(name),
	)
	return err
}

func (m *SchedulerManager) runBatch(ctx context.Context, name string, job BatchJob) int {
	startTime := m.now()

	count, err := job.Execute(ctx, startTime)
	if err != nil {
		if ctx.Err() != nil {
			m.logger.Warnw("batch job interrupted", "job", name, "error", err)
			return count
		}
		m.logger.Errorw("batch job failed",
			"job", name,
			"error", err,
			"duration", time.Since(startTime),
		)
		return count
	}

	if count > 0 {
		m.logger.Infow("batch job completed", "job", name, "count", count, "duration", time.Since(startTime))
	} else {
		m.logger.Debugw("batch job found nothing to do", "job", name, "duration", time.Since(startTime))
	}
	return count
}

func (m *SchedulerManager) Start() {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if m.started {
		return
	}
	m.scheduler.Start()
	m.started = true
	m.logger.Infow("scheduler manager started", "job_count", len(m.scheduler.Jobs()))
}

// Stop waits for running jobs to finish.
func (m *SchedulerManager) Stop() error {
	m.startedMu.Lock()
	defer m.startedMu.Unlock()

	if !m.started {
		return nil
	}

	m.logger.Infow("stopping scheduler manager")
	err := m.scheduler.Shutdown()
	m.started = false
	if err != nil {
		m.logger.Errorw("scheduler manager shutdown with error", "error", err)
		return err
	}
	m.logger.Infow("scheduler manager stopped")
	return nil
}

func (m *SchedulerManager) Jobs() []gocron.Job {
	return m.scheduler.Jobs()
}
