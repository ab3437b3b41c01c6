package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/quizmaster/backend/core"
)

type (
	// ScheduledFunc receives the instant its trigger fired for.
	ScheduledFunc func(ctx context.Context, at time.Time) (interface{}, error)

	// PeriodFunc maps a trigger time to the period it covers. Two triggers in the same period are one run.
	PeriodFunc func(at time.Time) string

	schedule struct {
		name   string
		spec   string
		period PeriodFunc
		fn     ScheduledFunc

		inFlight  string // period currently running
		succeeded string // last period that succeeded
	}

	// Scheduler fires registered jobs on their cron spec and submits them to the runner.
	// A period that already succeeded, or is running, is not started again.
	Scheduler struct {
		cron      *cron.Cron
		runner    *Runner
		loc       *time.Location
		logger    core.Logger
		mu        sync.Mutex
		schedules map[string]*schedule
	}
)

// HourPeriod keys reminder runs: one per hour.
func HourPeriod(at time.Time) string { return at.Format("2006-01-02T15") }

// MonthPeriod keys report runs: one per month.
func MonthPeriod(at time.Time) string { return at.Format("2006-01") }

func NewScheduler(runner *Runner, conf *core.Config, logger core.Logger) (*Scheduler, error) {
	loc, err := conf.Location()
	if err != nil {
		return nil, err
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:    runner,
		loc:       loc,
		logger:    logger,
		schedules: make(map[string]*schedule),
	}, nil
}

// Register adds a named job fired on `spec` (standard 5-field cron).
func (s *Scheduler) Register(name, spec string, period PeriodFunc, fn ScheduledFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[name]; ok {
		return errors.Errorf("schedule %q already registered", name)
	}
	sch := &schedule{name: name, spec: spec, period: period, fn: fn}
	if _, err := s.cron.AddFunc(spec, func() { s.fire(name) }); err != nil {
		return errors.Wrapf(err, "scheduling %s (%s)", name, spec)
	}
	s.schedules[name] = sch
	return nil
}

func (s *Scheduler) fire(name string) {
	ctx := context.Background()
	job, started, err := s.Trigger(ctx, name, time.Now())
	if err != nil {
		s.logger.Error(fmt.Sprintf("scheduler: triggering %s: %v", name, err), err)
		return
	}
	if !started {
		return
	}
	// hold the cron slot until the job is over so SkipIfStillRunning applies
	_, _ = s.runner.Wait(ctx, job.ID)
}

// Trigger submits the named job for the period containing `at`.
// It reports false, without error, when that period already succeeded or is in flight.
func (s *Scheduler) Trigger(ctx context.Context, name string, at time.Time) (Job, bool, error) {
	at = at.In(s.loc)

	s.mu.Lock()
	sch, ok := s.schedules[name]
	if !ok {
		s.mu.Unlock()
		return Job{}, false, errors.Errorf("unknown schedule %q", name)
	}
	period := sch.period(at)
	if sch.succeeded == period || sch.inFlight == period {
		s.mu.Unlock()
		s.logger.Debug(fmt.Sprintf("scheduler: %s already handled for %s", name, period))
		return Job{}, false, nil
	}
	sch.inFlight = period
	s.mu.Unlock()

	job, err := s.runner.Submit(ctx, name, func(ctx context.Context) (interface{}, error) {
		return sch.fn(ctx, at)
	})
	if err != nil {
		s.settle(sch, period, false)
		return job, false, err
	}

	go func() {
		done, err := s.runner.Wait(context.Background(), job.ID)
		s.settle(sch, period, err == nil && done.State == StateSucceeded)
	}()
	return job, true, nil
}

func (s *Scheduler) settle(sch *schedule, period string, succeeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sch.inFlight == period {
		sch.inFlight = ""
	}
	if succeeded {
		sch.succeeded = period
	}
}

// Start begins firing registered schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.mu.Lock()
	for _, sch := range s.schedules {
		s.logger.Info(fmt.Sprintf("scheduler: %s on %q", sch.name, sch.spec))
	}
	s.mu.Unlock()
}

// Stop halts the cron and returns a context done once running triggers return.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
