// Package scheduler runs periodic maintenance tasks in the worker:
// refreshing the aggregate quote count and, when enabled, unattended
// ingest and classification runs.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/animequotestudio/studio/internal/logging"
)

// Task is a named periodic job. A zero interval disables the task.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Locker serializes scheduled runs against manually triggered ones.
// Typically backed by redis; may be nil, in which case tasks run
// unguarded.
type Locker interface {
	AcquireLock(ctx context.Context, resource string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, resource string) error
}

// Scheduler drives a fixed set of tasks on their intervals.
type Scheduler struct {
	tasks  []Task
	locker Locker
	log    *logging.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(locker Locker, log *logging.Logger) *Scheduler {
	return &Scheduler{locker: locker, log: log}
}

// Add registers a task. Must be called before Start.
func (s *Scheduler) Add(task Task) {
	s.tasks = append(s.tasks, task)
}

// Start launches one goroutine per enabled task.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	for _, task := range s.tasks {
		if task.Interval <= 0 {
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, task)
	}
}

// Stop cancels all task loops and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, task)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	if s.locker != nil {
		acquired, err := s.locker.AcquireLock(ctx, task.Name, task.Interval)
		if err != nil || !acquired {
			// Another instance or a manual admin run holds the lock.
			return
		}
		defer s.locker.ReleaseLock(ctx, task.Name)
	}

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		s.log.WithField("task", task.Name).ErrorWithErr("Scheduled task failed", err)
		return
	}
	s.log.WithField("task", task.Name).Debugf("Scheduled task finished in %v", time.Since(start))
}
