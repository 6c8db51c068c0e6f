package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/etnz/immotax"
	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Scheduler runs the reminders every day.
type Scheduler struct {
	scheduler gocron.Scheduler
	reminders *Reminders
	log       *zap.Logger
}

// New returns a Scheduler running the reminders daily at 'at', "15:04" formatted.
func New(r *Reminders, at string) (*Scheduler, error) {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return nil, fmt.Errorf("invalid reminder time %q: %w", at, err)
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	sc := &Scheduler{scheduler: s, reminders: r, log: r.log()}

	daily := gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(t.Hour()), uint(t.Minute()), 0)))
	jobs := []struct {
		name string
		run  func(context.Context, immotax.Date) (int, error)
	}{
		{"rent-reminders", r.RunRent},
		{"filing-reminders", r.RunFiling},
	}
	for _, j := range jobs {
		_, err := s.NewJob(daily,
			gocron.NewTask(sc.execute, j.name, j.run),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s job: %w", j.name, err)
		}
	}
	return sc, nil
}

// execute is called by gocron to run a reminder job.
func (s *Scheduler) execute(name string, run func(context.Context, immotax.Date) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	start := time.Now()
	sent, err := run(ctx, immotax.DateOf(s.reminders.now()))
	fields := []zap.Field{zap.String("job", name), zap.Int("sent", sent), zap.Duration("duration", time.Since(start))}
	if err != nil {
		s.log.Warn("reminder job completed with errors", append(fields, zap.Error(err))...)
		return
	}
	s.log.Info("reminder job completed", fields...)
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.log.Info("starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.log.Info("stopping scheduler")
	return s.scheduler.Shutdown()
}
