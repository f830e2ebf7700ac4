package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/robfig/cron/v3"

	"CBOTLoader/internal/config"
	"CBOTLoader/internal/logging"
	"CBOTLoader/internal/model"
	"CBOTLoader/internal/pipeline"
)

// Runner executes one load job.
type Runner interface {
	Run(ctx context.Context, w model.DateWindow) (*pipeline.Result, error)
}

// Job is a scheduled load of the trailing LookbackDays for one frequency.
type Job struct {
	Spec         string
	Frequency    model.Frequency
	LookbackDays int
}

// JobsFromConfig converts configured jobs.
func JobsFromConfig(cfg []config.ScheduleJob) ([]Job, error) {
	jobs := make([]Job, 0, len(cfg))
	for i, c := range cfg {
		freq, err := model.ParseFrequency(c.Frequency)
		if err != nil {
			return nil, fmt.Errorf("schedule job %d: %w", i, err)
		}
		jobs = append(jobs, Job{Spec: c.Cron, Frequency: freq, LookbackDays: c.LookbackDays})
	}
	return jobs, nil
}

// Window returns the job's window ending on today.
func (j Job) Window(today civil.Date) model.DateWindow {
	return model.DateWindow{
		Start:     today.AddDays(-j.LookbackDays),
		End:       today,
		Frequency: j.Frequency,
	}
}

// Scheduler manages the cron jobs. A trigger that fires while the same job
// is still running is skipped by the cron chain. Jobs of different
// frequencies write to different tables and may run at the same time; a job
// whose table is already being loaded by another job is skipped.
type Scheduler struct {
	Cron   *cron.Cron
	Runner Runner
	Ctx    context.Context
	Now    func() time.Time
	log    *slog.Logger

	mu     sync.Mutex
	tables map[model.Frequency]*sync.Mutex
}

// NewScheduler creates a new Scheduler. Cron specs include a seconds field.
func NewScheduler(ctx context.Context, runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		Runner: runner,
		Ctx:    ctx,
		Now:    time.Now,
		log:    logger.With("component", "scheduler"),
	}
}

// RegisterAll registers every job.
func (s *Scheduler) RegisterAll(jobs []Job) error {
	for i, job := range jobs {
		if _, err := s.Cron.AddFunc(job.Spec, func() { s.RunNow(job) }); err != nil {
			return fmt.Errorf("register job %d (%s): %w", i, job.Spec, err)
		}
		s.log.Info("job registered", "cron", job.Spec, "frequency", job.Frequency.String(), "lookback_days", job.LookbackDays)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// tableLock returns the lock guarding the table freq loads into.
func (s *Scheduler) tableLock(freq model.Frequency) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables == nil {
		s.tables = make(map[model.Frequency]*sync.Mutex)
	}
	l, ok := s.tables[freq]
	if !ok {
		l = &sync.Mutex{}
		s.tables[freq] = l
	}
	return l
}

// RunNow executes job immediately, unless another job is loading the same
// table.
func (s *Scheduler) RunNow(job Job) {
	w := job.Window(civil.DateOf(s.Now()))
	lock := s.tableLock(job.Frequency)
	if !lock.TryLock() {
		s.log.Warn("table busy, skipping scheduled job", "window", w.String(), "table", job.Frequency.TableName())
		return
	}
	defer lock.Unlock()

	logger, runID := logging.WithRun(s.log)
	logger.Info("running scheduled job", "window", w.String())

	res, err := s.Runner.Run(pipeline.WithRunID(s.Ctx, runID), w)
	if err != nil {
		logger.Error("scheduled job failed", "window", w.String(), "err", err)
		return
	}
	logger.Info("scheduled job finished", "outcome", string(res.Outcome), "rows", res.Loaded)
}
