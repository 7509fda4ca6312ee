// internal/app/system/tasks/runner.go
package tasks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/stratacms/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// ErrUnknownJob is returned by RunOnce for a name that was never registered.
var ErrUnknownJob = errors.New("tasks: unknown job")

// Job is a periodic integrity report. Each run gets its own deadline of
// Timeout, or timeouts.Batch() when zero.
type Job struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

func (j Job) timeout() time.Duration {
	if j.Timeout > 0 {
		return j.Timeout
	}
	return timeouts.Batch()
}

// JobStatus is the last known state of a registered job.
type JobStatus struct {
	Name         string        `json:"name"`
	Running      bool          `json:"running"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastRun      time.Time     `json:"lastRun,omitempty"`
	LastDuration time.Duration `json:"lastDurationNs,omitempty"`
	LastError    string        `json:"lastError,omitempty"`
}

// Runner runs each registered job on its own ticker, starting with an
// immediate run.
type Runner struct {
	logger *zap.Logger
	jobs   []Job

	mu     sync.Mutex
	status map[string]*JobStatus

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(logger *zap.Logger) *Runner {
	return &Runner{
		logger: logger,
		status: make(map[string]*JobStatus),
	}
}

// Register adds a job. Jobs registered after Start are not scheduled.
func (r *Runner) Register(job Job) {
	r.jobs = append(r.jobs, job)
	r.mu.Lock()
	r.status[job.Name] = &JobStatus{Name: job.Name}
	r.mu.Unlock()
}

// Start schedules every registered job. Call Stop to end them.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.logger.Info("task runner started", zap.Int("job_count", len(r.jobs)))
}

// Stop cancels all jobs and waits for them until ctx is done. On timeout it
// logs the jobs still running and returns ctx.Err().
func (r *Runner) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("task runner stopped")
		return nil
	case <-ctx.Done():
		var busy []string
		for _, s := range r.Status() {
			if s.Running {
				busy = append(busy, s.Name)
			}
		}
		r.logger.Warn("task runner stop timed out", zap.Strings("jobs_still_running", busy))
		return ctx.Err()
	}
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	r.execute(ctx, job)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.execute(ctx, job)
		}
	}
}

func (r *Runner) execute(ctx context.Context, job Job) {
	r.update(job.Name, func(s *JobStatus) { s.Running = true })

	start := time.Now()
	err := r.invoke(ctx, job)
	elapsed := time.Since(start)

	// A run cut short by Stop is not a failure.
	if err != nil && ctx.Err() != nil {
		r.update(job.Name, func(s *JobStatus) { s.Running = false })
		r.logger.Debug("job cancelled", zap.String("job", job.Name))
		return
	}

	r.update(job.Name, func(s *JobStatus) {
		s.Running = false
		s.Runs++
		s.LastRun = start
		s.LastDuration = elapsed
		s.LastError = ""
		if err != nil {
			s.Failures++
			s.LastError = err.Error()
		}
	})

	if err != nil {
		r.logger.Error("job failed", zap.String("job", job.Name), zap.Duration("duration", elapsed), zap.Error(err))
		return
	}
	r.logger.Debug("job completed", zap.String("job", job.Name), zap.Duration("duration", elapsed))
}

func (r *Runner) invoke(ctx context.Context, job Job) error {
	runCtx, cancel := context.WithTimeout(ctx, job.timeout())
	defer cancel()
	return job.Run(runCtx)
}

func (r *Runner) update(name string, fn func(*JobStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.status[name]; ok {
		fn(s)
	}
}

// RunOnce runs the named job now, outside its schedule. The result is
// returned, not recorded in Status.
func (r *Runner) RunOnce(ctx context.Context, name string) error {
	for _, job := range r.jobs {
		if job.Name == name {
			return r.invoke(ctx, job)
		}
	}
	return ErrUnknownJob
}

// Names lists the registered jobs in registration order.
func (r *Runner) Names() []string {
	names := make([]string, len(r.jobs))
	for i, j := range r.jobs {
		names[i] = j.Name
	}
	return names
}

// Status returns a copy of every job's state, sorted by name. A nil Runner
// has no jobs.
func (r *Runner) Status() []JobStatus {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]JobStatus, 0, len(r.status))
	for _, s := range r.status {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
