package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/robfig/cron/v3"
)

// DigestSchedule is the daily journal digest time.
const DigestSchedule = "0 21 * * *"

// Scheduler runs the store maintenance jobs.
type Scheduler struct {
	cron           *cron.Cron
	ctx            context.Context
	cancel         context.CancelFunc
	backupSchedule string
	backupFunc     func(ctx context.Context) error
	digestFunc     func(ctx context.Context) error
}

func New(backupSchedule string) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:           cron.New(cron.WithLocation(time.UTC)),
		ctx:            ctx,
		cancel:         cancel,
		backupSchedule: backupSchedule,
	}
}

// SetBackupFunction sets the job run on the backup schedule.
func (s *Scheduler) SetBackupFunction(f func(ctx context.Context) error) {
	s.backupFunc = f
}

// SetDigestFunction sets the daily digest job.
func (s *Scheduler) SetDigestFunction(f func(ctx context.Context) error) {
	s.digestFunc = f
}

func (s *Scheduler) Start() error {
	if s.backupFunc != nil && s.backupSchedule != "" {
		if _, err := s.cron.AddFunc(s.backupSchedule, s.wrap("backup", s.backupFunc)); err != nil {
			return fmt.Errorf("invalid backup schedule %q: %w", s.backupSchedule, err)
		}
		log.Info("store backups scheduled", "schedule", s.backupSchedule)
	}
	if s.digestFunc != nil {
		if _, err := s.cron.AddFunc(DigestSchedule, s.wrap("digest", s.digestFunc)); err != nil {
			return err
		}
		log.Info("daily digest scheduled", "schedule", DigestSchedule)
	}
	if len(s.cron.Entries()) == 0 {
		log.Warn("no jobs configured, scheduler not started")
		return nil
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) wrap(name string, f func(ctx context.Context) error) func() {
	return func() {
		log.Info("scheduled job triggered", "job", name)
		if err := f(s.ctx); err != nil {
			log.Error("scheduled job failed", "job", name, "err", err)
		}
	}
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	if s.cancel != nil {
		s.cancel()
	}
	log.Info("scheduler stopped")
}

func (s *Scheduler) IsRunning() bool {
	return s.cron != nil && len(s.cron.Entries()) > 0
}
