package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job is a named unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Cron wraps the cron engine with logged, context-aware job execution.
type Cron struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  zerolog.Logger
}

// NewCron builds a cron registry in the given location. Each job run gets
// its own context bounded by timeout.
func NewCron(loc *time.Location, timeout time.Duration, logger zerolog.Logger) *Cron {
	if loc == nil {
		loc = time.Local
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &Cron{
		cron:    cron.New(cron.WithLocation(loc)),
		timeout: timeout,
		logger:  logger.With().Str("component", "cron").Logger(),
	}
}

// AddJob registers a job against a cron expression.
func (c *Cron) AddJob(schedule string, job Job) error {
	_, err := c.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		c.logger.Info().Str("job", job.Name()).Msg("running job")
		if err := job.Run(ctx); err != nil {
			c.logger.Error().Err(err).Str("job", job.Name()).Msg("job failed")
			return
		}
		c.logger.Debug().Str("job", job.Name()).Msg("job completed")
	})
	if err != nil {
		return err
	}

	c.logger.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("job registered")
	return nil
}

// Start begins dispatching jobs.
func (c *Cron) Start() {
	c.cron.Start()
	c.logger.Info().Msg("cron started")
}

// Stop halts dispatch and waits for running jobs to finish.
func (c *Cron) Stop() {
	<-c.cron.Stop().Done()
	c.logger.Info().Msg("cron stopped")
}

// RunNow executes a job immediately, outside its schedule.
func (c *Cron) RunNow(ctx context.Context, job Job) error {
	c.logger.Info().Str("job", job.Name()).Msg("running job immediately")
	return job.Run(ctx)
}
