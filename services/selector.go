package services

import (
	"strings"
	"time"

	"appointment-notifier/models"
	"appointment-notifier/utils"
)

// Logger is the reporting capability the selector and dispatcher need.
// *zap.SugaredLogger satisfies it.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// AppointmentSelector turns an appointments table into the notification worklist.
type AppointmentSelector struct {
	logger Logger
	now    func() time.Time
}

// NewAppointmentSelector builds a selector. now defaults to time.Now.
func NewAppointmentSelector(logger Logger, now func() time.Time) *AppointmentSelector {
	if now == nil {
		now = time.Now
	}
	return &AppointmentSelector{logger: logger, now: now}
}

// Select reads the table at path and returns, in source order, every row
// dated today or tomorrow, stamped with its reminder type. Row problems are
// logged and skipped. File problems abort the whole selection with a
// CodeNotFound or CodeProcessingError error; an empty worklist is not an error.
func (s *AppointmentSelector) Select(path string) ([]*models.Appointment, error) {
	today := s.now()

	rows, err := ReadTable(path)
	if err != nil {
		if utils.IsCode(err, utils.CodeNotFound) {
			s.logger.Errorf("Appointments file not found: %s", path)
		} else {
			s.logger.Errorf("Unexpected error while processing %s: %v", path, err)
		}
		return nil, err
	}

	worklist := make([]*models.Appointment, 0)
	for _, row := range rows {
		apt := row.Record

		dateStr := strings.TrimSpace(apt.GetOr(models.FieldDate, ""))
		if dateStr == "" {
			s.logger.Infof("Line %d: no date, skipping", row.Line)
			continue
		}

		date, format, ok := utils.ParseDate(dateStr)
		if !ok {
			s.logger.Warnf("Line %d: invalid date %q. Expected YYYY-MM-DD, YYYY/MM/DD, DD-MM-YYYY or DD/MM/YYYY.", row.Line, dateStr)
			continue
		}
		s.logger.Debugf("Line %d: date parsed using %s format", row.Line, format.Name)

		switch utils.DaysBetween(today, date) {
		case 1:
			apt.Set(models.FieldReminderType, string(models.ReminderTomorrow))
		case 0:
			apt.Set(models.FieldReminderType, string(models.ReminderToday))
		default:
			continue
		}
		worklist = append(worklist, apt)
	}

	return worklist, nil
}
