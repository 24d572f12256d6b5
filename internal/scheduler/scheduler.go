// Package scheduler runs deferred one-shot tasks and recurring routines on
// top of a cron runner.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidTime = errors.New("invalid task time")
	ErrInvalidSpec = errors.New("invalid cron spec")
)

// TaskFunc is the work carried out by a task.
type TaskFunc func(ctx context.Context) error

// Task describes a deferred task waiting to run.
type Task struct {
	ID    string    `json:"id"`
	Name  string    `json:"name"`
	RunAt time.Time `json:"run_at"`
}

type pending struct {
	Task
	entry cron.EntryID
}

// once fires a single time at the given instant.
type once time.Time

func (o once) Next(t time.Time) time.Time {
	at := time.Time(o)
	if t.Before(at) {
		return at
	}
	return time.Time{}
}

type Scheduler struct {
	cron   *cron.Cron
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	base  context.Context //nolint:containedctx
	tasks map[string]*pending
	done  chan struct{}
}

func New(loc *time.Location, logger zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		logger: logger,
		now:    time.Now,
		base:   logger.WithContext(context.Background()),
		tasks:  make(map[string]*pending),
		done:   make(chan struct{}),
	}
}

// At runs fn once at when and returns the task id. A time that is already
// past runs fn immediately in the background.
func (s *Scheduler) At(when time.Time, name string, fn TaskFunc) (string, error) {
	if when.IsZero() {
		return "", fmt.Errorf("%w: zero time for task %s", ErrInvalidTime, name)
	}

	id := uuid.New().String()
	if !when.After(s.now()) {
		s.logger.Info().Str("task", name).Str("id", id).Msg("task time already passed, running now")
		go s.run(id, name, fn)
		return id, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.cron.Schedule(once(when), cron.FuncJob(func() {
		s.forget(id)
		s.run(id, name, fn)
	}))
	s.tasks[id] = &pending{Task: Task{ID: id, Name: name, RunAt: when}, entry: entry}

	s.logger.Info().Str("task", name).Str("id", id).Time("run_at", when).Msg("task scheduled")
	return id, nil
}

// Every runs fn on a standard five-field cron spec (descriptors such as
// @daily are accepted).
func (s *Scheduler) Every(spec, name string, fn TaskFunc) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("%w '%s' for routine %s: %w", ErrInvalidSpec, spec, name, err)
	}
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		s.run("", name, fn)
	}))
	s.logger.Info().Str("routine", name).Str("spec", spec).Msg("routine registered")
	return nil
}

// Pending lists waiting tasks, soonest first.
func (s *Scheduler) Pending() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Task, 0, len(s.tasks))
	for _, p := range s.tasks {
		out = append(out, p.Task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out
}

// Cancel removes a waiting task. It reports false when the task already ran
// or never existed.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	p, ok := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.cron.Remove(p.entry)
	s.logger.Info().Str("task", p.Name).Str("id", id).Msg("task cancelled")
	return true
}

func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	p, ok := s.tasks[id]
	delete(s.tasks, id)
	s.mu.Unlock()

	if ok {
		s.cron.Remove(p.entry)
	}
}

func (s *Scheduler) run(id, name string, fn TaskFunc) {
	s.mu.Lock()
	ctx := s.base
	s.mu.Unlock()

	logger := s.logger.With().Str("task", name).Logger()
	if id != "" {
		logger = logger.With().Str("id", id).Logger()
	}

	start := time.Now()
	if err := fn(logger.WithContext(ctx)); err != nil {
		logger.Error().Err(err).Dur("took", time.Since(start)).Msg("task failed")
		return
	}
	logger.Info().Dur("took", time.Since(start)).Msg("task done")
}

// Run starts the cron runner and blocks until Stop.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info().Str("stage", "startup").Str("component", "scheduler").Msg("starting up")

	s.mu.Lock()
	s.base = s.logger.WithContext(context.WithoutCancel(ctx))
	s.mu.Unlock()

	s.cron.Start()
	<-s.done
	return nil
}

// Stop halts the runner and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info().Str("stage", "shut down").Str("component", "scheduler").Msg("stopping")
	defer s.logger.Info().Str("stage", "shut down").Str("component", "scheduler").Msg("stopped")

	select {
	case <-s.done:
	default:
		close(s.done)
	}

	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
