package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bassista/go_backoffice/internal/logger"
)

// Job is a housekeeping task run on a fixed interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// PollingScheduler runs each job on its own ticker until the context ends.
//
// Semantics:
// - A tick never overlaps the previous run of the same job; slow runs skip ticks.
// - A panicking job is logged and keeps its schedule.
// - Jobs must be added before Start.
type PollingScheduler struct {
	mu      sync.Mutex
	jobs    []Job
	started bool
}

var ErrStarted = errors.New("scheduler already started")

func NewPollingScheduler(jobs ...Job) *PollingScheduler {
	s := &PollingScheduler{}
	for _, j := range jobs {
		if err := s.Add(j); err != nil {
			logger.WithComponent("sched").Errorf("skipping job %q: %v", j.Name, err)
		}
	}
	return s
}

// Add registers a job.
func (s *PollingScheduler) Add(job Job) error {
	if job.Run == nil {
		return errors.New("job has no run function")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job interval must be positive, got %v", job.Interval)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrStarted
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Jobs returns the names of the registered jobs.
func (s *PollingScheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.jobs))
	for i, j := range s.jobs {
		names[i] = j.Name
	}
	return names
}

// Start launches the jobs. The returned channel is closed once every job has stopped.
func (s *PollingScheduler) Start(ctx context.Context) <-chan struct{} {
	s.mu.Lock()
	s.started = true
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	done := make(chan struct{})
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (s *PollingScheduler) loop(ctx context.Context, job Job) {
	log := logger.WithComponent("sched").WithField("job", job.Name)
	log.Debugf("starting job with interval: %v", job.Interval)
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("job stopped")
			return
		case <-ticker.C:
			s.tick(ctx, job)
		}
	}
}

// RunOnce runs every job once, in registration order.
func (s *PollingScheduler) RunOnce(ctx context.Context) {
	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()
	for _, job := range jobs {
		s.tick(ctx, job)
	}
}

func (s *PollingScheduler) tick(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithComponent("sched").WithField("job", job.Name).Errorf("job panicked: %v", r)
		}
	}()
	logger.WithComponent("sched").WithField("job", job.Name).Trace("tick")
	job.Run(ctx)
}
