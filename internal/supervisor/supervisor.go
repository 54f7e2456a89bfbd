// File: internal/supervisor/supervisor.go
package supervisor

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/marketpulse/orchestrator/pkg/utils"
)

// JobFunc is one periodic job body. The context is cancelled when the
// supervisor stops.
type JobFunc func(ctx context.Context) error

// JobStatus describes a registered job for the ops endpoints.
type JobStatus struct {
	Name     string     `json:"name"`
	Spec     string     `json:"spec"`
	Next     time.Time  `json:"next_run"`
	Prev     *time.Time `json:"last_run,omitempty"`
	Runs     int64      `json:"runs"`
	Failures int64      `json:"failures"`
}

type job struct {
	name     string
	spec     string
	fn       JobFunc
	entryID  cron.EntryID
	runs     int64
	failures int64
}

// Supervisor owns the periodic jobs: the executor tick, the monitoring
// check and the cache sweep. Jobs never overlap with themselves because the
// underlying cron runner skips a tick while the previous one is running.
type Supervisor struct {
	cron   *cron.Cron
	logger *logrus.Logger

	mu      sync.RWMutex
	jobs    map[string]*job
	baseCtx context.Context
	cancel  context.CancelFunc
	running bool
}

// New creates a supervisor with second-less cron specs (@every and the
// standard five-field syntax).
func New() *Supervisor {
	return &Supervisor{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger: utils.GetLogger(),
		jobs:   make(map[string]*job),
	}
}

// Register adds a named periodic job. Must be called before Start.
func (s *Supervisor) Register(name, spec string, fn JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return utils.NewAppError(utils.ErrCodeConfiguration, "Cannot register jobs while running", name)
	}
	if _, exists := s.jobs[name]; exists {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("Job already registered: %s", name), "")
	}

	j := &job{name: name, spec: spec, fn: fn}
	entryID, err := s.cron.AddFunc(spec, func() { s.invoke(j) })
	if err != nil {
		return utils.NewAppError(utils.ErrCodeConfiguration,
			fmt.Sprintf("Invalid cron spec for job %s: %s", name, spec), err.Error())
	}
	j.entryID = entryID
	s.jobs[name] = j
	return nil
}

// Start begins running registered jobs.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return utils.NewAppError(utils.ErrCodeInternal, "Supervisor already running", "")
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.running = true

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	s.logger.WithField("jobs", names).Info("Supervisor started")
	return nil
}

// Stop cancels running jobs and waits for in-flight invocations to finish.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()

	s.logger.Info("Supervisor stopped")
	return nil
}

// RunJob invokes one job immediately, outside its schedule.
func (s *Supervisor) RunJob(ctx context.Context, name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return utils.NewAppError(utils.ErrCodeNotFound,
			fmt.Sprintf("Job not found: %s", name), "")
	}
	return s.run(ctx, j)
}

// Jobs returns the status of every registered job in name order.
func (s *Supervisor) Jobs() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		entry := s.cron.Entry(j.entryID)
		status := JobStatus{
			Name:     j.name,
			Spec:     j.spec,
			Next:     entry.Next,
			Runs:     j.runs,
			Failures: j.failures,
		}
		if !entry.Prev.IsZero() {
			prev := entry.Prev
			status.Prev = &prev
		}
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, k int) bool { return statuses[i].Name < statuses[k].Name })
	return statuses
}

func (s *Supervisor) invoke(j *job) {
	s.mu.RLock()
	ctx := s.baseCtx
	running := s.running
	s.mu.RUnlock()
	if !running || ctx == nil {
		return
	}
	if err := s.run(ctx, j); err != nil {
		s.logger.WithError(err).WithField("job", j.name).Error("Scheduled job failed")
	}
}

func (s *Supervisor) run(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = utils.NewAppError(utils.ErrCodeInternal,
				fmt.Sprintf("Job %s panicked: %v", j.name, r), "")
		}
		s.mu.Lock()
		j.runs++
		if err != nil {
			j.failures++
		}
		s.mu.Unlock()
	}()

	started := time.Now()
	err = j.fn(ctx)
	if err == nil {
		s.logger.WithFields(logrus.Fields{
			"job":      j.name,
			"duration": time.Since(started),
		}).Debug("Job completed")
	}
	return err
}
