// Package cleanup runs the daily retention jobs.
package cleanup

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// DefaultSchedule runs the jobs once a day at midnight.
const DefaultSchedule = "@daily"

// Job is one named cleanup. Run returns how many items it removed.
type Job struct {
	Name string
	Run  func(ctx context.Context) int
}

// Result is the outcome of one run of every job.
type Result struct {
	Removed  map[string]int `json:"removed"`
	Duration time.Duration  `json:"duration"`
}

// Runner schedules the cleanup jobs on a cron expression.
type Runner struct {
	schedule string
	jobs     []Job

	mu      sync.Mutex
	cron    *rcron.Cron
	lastRun *Result
}

// NewRunner creates a runner. An empty schedule uses DefaultSchedule.
func NewRunner(schedule string, jobs ...Job) *Runner {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Runner{schedule: schedule, jobs: jobs}
}

// Start registers the jobs and starts the scheduler. It stops when ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cron != nil {
		return nil
	}

	c := rcron.New()
	if _, err := c.AddFunc(r.schedule, func() { r.RunOnce(ctx) }); err != nil {
		return err
	}
	c.Start()
	r.cron = c
	slog.Info("cleanup runner started", "schedule", r.schedule, "jobs", len(r.jobs))

	go func() {
		<-ctx.Done()
		r.Stop()
	}()
	return nil
}

// Stop stops the scheduler and waits for a running cleanup to finish.
func (r *Runner) Stop() {
	r.mu.Lock()
	c := r.cron
	r.cron = nil
	r.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	slog.Info("cleanup runner stopped")
}

// RunOnce runs every job now.
func (r *Runner) RunOnce(ctx context.Context) Result {
	start := time.Now()
	res := Result{Removed: make(map[string]int, len(r.jobs))}
	for _, job := range r.jobs {
		if ctx.Err() != nil {
			slog.Info("cleanup cancelled", "job", job.Name)
			break
		}
		n := job.Run(ctx)
		res.Removed[job.Name] = n
		slog.Info("cleanup job finished", "job", job.Name, "removed", n)
	}
	res.Duration = time.Since(start)

	r.mu.Lock()
	r.lastRun = &res
	r.mu.Unlock()
	return res
}

// LastRun returns the most recent result, or nil before the first run.
func (r *Runner) LastRun() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

// JobNames returns the registered job names, sorted.
func (r *Runner) JobNames() []string {
	names := make([]string, len(r.jobs))
	for i, j := range r.jobs {
		names[i] = j.Name
	}
	sort.Strings(names)
	return names
}
