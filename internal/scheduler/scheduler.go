package scheduler

import (
	"context"
	"slices"
	"time"

	"atomicgo.dev/schedule"
	"github.com/farxc/licitacoes_analytics/internal/config"
	"github.com/farxc/licitacoes_analytics/internal/logger"
)

const component = "Scheduler"

// Job is one step of the scheduled pipeline.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs its jobs in order at fixed times of day.
type Scheduler struct {
	times []config.ClockTime
	loc   *time.Location
	jobs  []Job
	log   *logger.Logger
	now   func() time.Time
}

func New(times []config.ClockTime, loc *time.Location, log *logger.Logger, jobs ...Job) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{times: times, loc: loc, jobs: jobs, log: log, now: time.Now}
}

// NextRun returns the first configured time of day strictly after now, in loc.
// The zero time is returned when times is empty.
func NextRun(now time.Time, times []config.ClockTime, loc *time.Location) time.Time {
	if len(times) == 0 {
		return time.Time{}
	}
	local := now.In(loc)
	y, m, d := local.Date()

	var candidates []time.Time
	for _, offset := range []int{0, 1} {
		for _, ct := range times {
			t := time.Date(y, m, d+offset, ct.Hour, ct.Minute, 0, 0, loc)
			if t.After(local) {
				candidates = append(candidates, t)
			}
		}
	}
	return slices.MinFunc(candidates, func(a, b time.Time) int { return a.Compare(b) })
}

// Run blocks until ctx is cancelled, running the pipeline at every
// configured time. A run that is still going when the next time arrives
// delays it; runs never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.times) == 0 {
		s.log.Warn(component, "No collection times configured, scheduler idle")
		<-ctx.Done()
		return nil
	}

	for {
		next := NextRun(s.now(), s.times, s.loc)
		s.log.Info(component, "Next run scheduled: at=%s", next.Format(time.RFC3339))

		fired := make(chan struct{})
		task := schedule.At(next, func() { close(fired) })

		select {
		case <-ctx.Done():
			task.Stop()
			s.log.Info(component, "Scheduler stopped")
			return nil
		case <-fired:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes every job in order. A failing job is logged and does not
// stop the ones after it.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	failed := 0
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return failed
		}
		start := time.Now()
		s.log.Info(component, "Job started: name=%s", job.Name)
		if err := job.Run(ctx); err != nil {
			failed++
			s.log.Error(component, "Job failed: name=%s duration=%s err=%v", job.Name, time.Since(start).Round(time.Millisecond), err)
			continue
		}
		s.log.Info(component, "Job finished: name=%s duration=%s", job.Name, time.Since(start).Round(time.Millisecond))
	}
	return failed
}
