package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/applytrack-api/internal/model"
	"github.com/yourusername/applytrack-api/internal/service"
)

const (
	sweepTimeout    = 2 * time.Hour
	reminderTimeout = 5 * time.Minute
)

type scanner interface {
	ScanAll(ctx context.Context, trigger string) (service.ScanTotals, error)
	Reminders(ctx context.Context) (int, error)
}

// Scheduler runs the periodic scan sweep and reminder pass in-process
type Scheduler struct {
	cron    *cron.Cron
	scanner scanner
	ctx     context.Context
	cancel  context.CancelFunc
}

// New registers both jobs. A sweep still running when its next tick fires is
// skipped rather than stacked.
func New(scanner scanner, scanSpec, reminderSpec string) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{}))),
		scanner: scanner,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := s.cron.AddFunc(scanSpec, s.runSweep); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduling scan %q: %w", scanSpec, err)
	}
	if _, err := s.cron.AddFunc(reminderSpec, s.runReminders); err != nil {
		cancel()
		return nil, fmt.Errorf("scheduling reminders %q: %w", reminderSpec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Scheduler started")
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	log.Info().Msg("Scheduler stopped")
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
	defer cancel()

	if _, err := s.scanner.ScanAll(ctx, model.TriggerCron); err != nil {
		log.Error().Err(err).Msg("Scheduled scan sweep failed")
	}
}

func (s *Scheduler) runReminders() {
	ctx, cancel := context.WithTimeout(s.ctx, reminderTimeout)
	defer cancel()

	if _, err := s.scanner.Reminders(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduled reminders failed")
	}
}

// cronLogger adapts zerolog to cron.Logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
