package services

import (
	"context"

	"appointment-notifier/utils"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule runs the reminders every day at 9 AM.
const DefaultSchedule = "0 9 * * *"

// Scheduler triggers ReminderService.Run on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	service *ReminderService
	logger  Logger
}

func NewScheduler(service *ReminderService, logger Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		service: service,
		logger:  logger,
	}
}

// Start registers the daily run on a standard five-field cron spec and starts the scheduler.
func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return &utils.AppError{Code: utils.CodeConfigInvalid, Message: "invalid SCHEDULE " + spec, Cause: err}
	}
	s.cron.Start()
	s.logger.Infof("Reminder scheduler started (%s)", spec)
	return nil
}

func (s *Scheduler) runOnce() {
	summary, err := s.service.Run(context.Background())
	if err != nil {
		s.logger.Errorf("Scheduled run failed: %v", err)
		return
	}
	s.logger.Infof("Scheduled run %s finished: %d selected, %d sent", summary.RunID, summary.Selected, summary.Result.Sent())
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Infof("Reminder scheduler stopped")
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
