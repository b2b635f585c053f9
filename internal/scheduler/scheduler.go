package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/climatempo-relay/internal/logger"
)

// Scheduler fires the job on a cron schedule evaluated in a fixed timezone.
type Scheduler struct {
	scheduler *gocron.Scheduler
	job       *Job
	cronExpr  string
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Scheduler. cronExpr may carry an optional leading seconds field.
func New(cronExpr string, loc *time.Location, job *Job, log *logger.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(loc),
		job:       job,
		cronExpr:  cronExpr,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	s.log.Log("Scheduling {} ({})", s.cronExpr, s.scheduler.Location().String())

	var sched *gocron.Scheduler
	if hasSecondsField(s.cronExpr) {
		sched = s.scheduler.CronWithSeconds(s.cronExpr)
	} else {
		sched = s.scheduler.Cron(s.cronExpr)
	}

	_, err := sched.Do(func() {
		s.job.Run(s.ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop cancels the active run's context and stops future ticks.
func (s *Scheduler) Stop() {
	s.cancel()
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// hasSecondsField reports whether expr is a six-field expression.
func hasSecondsField(expr string) bool {
	return !strings.HasPrefix(expr, "@") && len(strings.Fields(expr)) == 6
}
