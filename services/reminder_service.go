// services/reminder_service.go
package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"appointment-notifier/models"
	"appointment-notifier/utils"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ReminderServiceConfig holds file locations and send pacing.
type ReminderServiceConfig struct {
	AppointmentsPath string
	TemplatePath     string
	// SendInterval is the minimum gap between two sends on a channel. Zero disables pacing.
	SendInterval time.Duration
}

// ChannelResult counts what happened on one delivery channel.
type ChannelResult struct {
	Channel string `json:"channel"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
	// Aborted is set when a connection, authentication or send failure
	// stopped the channel before the end of the worklist.
	Aborted bool   `json:"aborted"`
	Error   string `json:"error,omitempty"`
}

type DispatchResult struct {
	Channels []ChannelResult `json:"channels"`
}

func (r DispatchResult) Sent() int {
	total := 0
	for _, c := range r.Channels {
		total += c.Sent
	}
	return total
}

// RunSummary describes one select-and-dispatch run.
type RunSummary struct {
	RunID     uuid.UUID      `json:"runId"`
	StartedAt time.Time      `json:"startedAt"`
	Selected  int            `json:"selected"`
	Result    DispatchResult `json:"result"`
}

type ReminderService struct {
	cfg      ReminderServiceConfig
	selector *AppointmentSelector
	senders  []Sender
	store    LogStore
	logger   Logger
	now      func() time.Time
	mu       sync.Mutex
}

func NewReminderService(cfg ReminderServiceConfig, selector *AppointmentSelector, senders []Sender, store LogStore, logger Logger) *ReminderService {
	if store == nil {
		store = NewMemoryLogStore()
	}
	return &ReminderService{
		cfg:      cfg,
		selector: selector,
		senders:  senders,
		store:    store,
		logger:   logger,
		now:      time.Now,
	}
}

// Pending returns the current worklist without sending anything.
func (s *ReminderService) Pending() ([]*models.Appointment, error) {
	return s.selector.Select(s.cfg.AppointmentsPath)
}

// Logs returns the most recent delivery attempts.
func (s *ReminderService) Logs(ctx context.Context, limit int) ([]models.ReminderLog, error) {
	return s.store.List(ctx, limit)
}

// Run selects today's and tomorrow's appointments and dispatches reminders.
// A selection failure is returned as an error; zero matches is a successful
// run with Selected == 0. Concurrent calls are serialized.
func (s *ReminderService) Run(ctx context.Context) (*RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	timer := time.Now()
	defer func() { runDuration.Observe(time.Since(timer).Seconds()) }()
	start := s.now()

	s.logger.Infof("Analyzing appointments database...")
	worklist, err := s.selector.Select(s.cfg.AppointmentsPath)
	if err != nil {
		runsTotal.WithLabelValues(strings.ToLower(utils.ErrorCode(err))).Inc()
		return nil, err
	}

	summary := &RunSummary{RunID: uuid.New(), StartedAt: start, Selected: len(worklist)}
	for _, apt := range worklist {
		rt, _ := apt.ReminderType()
		appointmentsSelectedTotal.WithLabelValues(string(rt)).Inc()
	}

	if len(worklist) == 0 {
		runsTotal.WithLabelValues("empty").Inc()
		s.logger.Infof("No appointments found that require notification today.")
		return summary, nil
	}

	s.logger.Infof("%d appointment(s) pending notification.", len(worklist))
	summary.Result = s.Dispatch(ctx, summary.RunID, worklist)
	runsTotal.WithLabelValues("success").Inc()
	s.logger.Infof("--- Process completed: run %s, %d reminder(s) sent ---", summary.RunID, summary.Result.Sent())
	return summary, nil
}

// Dispatch renders and sends one message per worklist entry on every
// configured channel. Delivery problems are logged and reported in the
// result, never returned.
func (s *ReminderService) Dispatch(ctx context.Context, runID uuid.UUID, worklist []*models.Appointment) DispatchResult {
	tpl := LoadTemplate(s.cfg.TemplatePath, s.logger)

	result := DispatchResult{Channels: make([]ChannelResult, 0, len(s.senders))}
	for _, sender := range s.senders {
		result.Channels = append(result.Channels, s.dispatchChannel(ctx, runID, sender, tpl, worklist))
	}
	return result
}

func (s *ReminderService) dispatchChannel(ctx context.Context, runID uuid.UUID, sender Sender, tpl Template, worklist []*models.Appointment) ChannelResult {
	channel := sender.Channel()
	res := ChannelResult{Channel: channel}

	if err := sender.Connect(ctx); err != nil {
		s.logger.Errorf("%s: connection failed, no reminders sent: %v", channel, err)
		res.Aborted = true
		res.Error = err.Error()
		return res
	}
	defer func() {
		if err := sender.Close(); err != nil {
			s.logger.Warnf("%s: closing connection: %v", channel, err)
		}
	}()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if s.cfg.SendInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.cfg.SendInterval), 1)
	}

	for i, apt := range worklist {
		entry := s.newLogEntry(runID, channel, apt)
		clientName := apt.GetOr(models.FieldClientName, "Unknown")

		to, err := sender.Recipient(apt)
		if err != nil || to == "" {
			reason := "missing recipient"
			if err != nil {
				reason = err.Error() + ": " + to
			}
			s.logger.Warnf("Skipping appointment for '%s' on %s: %s.", clientName, channel, reason)
			entry.Recipient = to
			s.record(ctx, entry, models.StatusSkipped, reason)
			res.Skipped++
			continue
		}
		entry.Recipient = to

		msg, err := tpl.Render(apt)
		if err != nil {
			s.logger.Errorf("Template error for '%s': %v", clientName, err)
			s.record(ctx, entry, models.StatusSkipped, err.Error())
			res.Skipped++
			continue
		}
		msg.To = to
		entry.Subject = msg.Subject
		entry.Message = msg.Body

		if err := limiter.Wait(ctx); err != nil {
			s.logger.Warnf("%s: dispatch interrupted: %v", channel, err)
			res.Aborted = true
			res.Error = err.Error()
			return res
		}

		if err := sender.Send(ctx, msg); err != nil {
			s.logger.Errorf("%s: delivery to %s failed, aborting remaining %d send(s): %v", channel, to, len(worklist)-i-1, err)
			s.record(ctx, entry, models.StatusFailed, err.Error())
			res.Failed++
			res.Aborted = true
			res.Error = err.Error()
			return res
		}

		s.logger.Infof("Reminder successfully sent to: %s", to)
		s.record(ctx, entry, models.StatusSent, "")
		res.Sent++
	}
	return res
}

func (s *ReminderService) newLogEntry(runID uuid.UUID, channel string, apt *models.Appointment) *models.ReminderLog {
	rt, _ := apt.ReminderType()
	return &models.ReminderLog{
		ID:              uuid.New(),
		RunID:           runID,
		Channel:         channel,
		ClientName:      apt.GetOr(models.FieldClientName, ""),
		AppointmentDate: apt.GetOr(models.FieldDate, ""),
		ReminderType:    string(rt),
	}
}

func (s *ReminderService) record(ctx context.Context, entry *models.ReminderLog, status, errMsg string) {
	entry.Status = status
	entry.ErrorMessage = errMsg
	entry.SentAt = s.now()
	remindersTotal.WithLabelValues(entry.Channel, status).Inc()

	// saved even when ctx is already cancelled
	if err := s.store.Save(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Warnf("Failed to log reminder for %s: %v", entry.Recipient, err)
	}
}

// IsSelectionFailure reports whether err came from reading the appointments table.
func IsSelectionFailure(err error) bool {
	return utils.IsCode(err, utils.CodeNotFound) || utils.IsCode(err, utils.CodeProcessingError)
}
