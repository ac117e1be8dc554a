package services

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"appointment-notifier/models"
	"appointment-notifier/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

func fixedClock(year int, month time.Month, day int) func() time.Time {
	return func() time.Time {
		return time.Date(year, month, day, 18, 45, 0, 0, time.Local)
	}
}

func TestSelectTodayAndTomorrow(t *testing.T) {
	path := writeTable(t, "appointments.csv",
		"email,client_name,service,date,time,location\n"+
			"ana@example.com,Ana,Haircut,2024-01-15,10:00,Downtown\n"+
			"bob@example.com,Bob,Shave,2024-01-16,11:30,Uptown\n"+
			"cy@example.com,Cy,Massage,2024-01-20,09:00,Downtown\n"+
			"di@example.com,Di,Nails,not-a-date,12:00,Uptown\n")

	logger, logs := observedLogger()
	selector := NewAppointmentSelector(logger, fixedClock(2024, time.January, 15))

	worklist, err := selector.Select(path)
	require.NoError(t, err)
	require.Len(t, worklist, 2)

	assert.Equal(t, "Ana", worklist[0].GetOr(models.FieldClientName, ""))
	rt, ok := worklist[0].ReminderType()
	require.True(t, ok)
	assert.Equal(t, models.ReminderToday, rt)
	assert.Equal(t, "NOTICE: Appointment scheduled for today", worklist[0].GetOr(models.FieldReminderType, ""))

	assert.Equal(t, "Bob", worklist[1].GetOr(models.FieldClientName, ""))
	assert.Equal(t, "REMINDER: Appointment scheduled for tomorrow", worklist[1].GetOr(models.FieldReminderType, ""))

	warnings := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "Line 5")
	assert.Contains(t, warnings[0].Message, "not-a-date")
}

func TestSelectAllFormats(t *testing.T) {
	path := writeTable(t, "formats.csv",
		"date;email\n"+
			"2024/03/01;a@example.com\n"+
			"01-03-2024;b@example.com\n"+
			"29/02/2024;c@example.com\n"+
			"2024-2-29;d@example.com\n"+
			"2024-02-28;e@example.com\n")

	logger, _ := observedLogger()
	worklist, err := NewAppointmentSelector(logger, fixedClock(2024, time.February, 29)).Select(path)
	require.NoError(t, err)
	require.Len(t, worklist, 4)

	want := []models.ReminderType{models.ReminderTomorrow, models.ReminderTomorrow, models.ReminderToday, models.ReminderToday}
	for i, apt := range worklist {
		rt, _ := apt.ReminderType()
		assert.Equal(t, want[i], rt, "row %d", i)
	}
}

func TestSelectHeaderCaseInsensitive(t *testing.T) {
	path := writeTable(t, "header.csv",
		" Date ,Email\n"+
			"2024-01-16,ana@example.com\n")

	logger, _ := observedLogger()
	worklist, err := NewAppointmentSelector(logger, fixedClock(2024, time.January, 15)).Select(path)
	require.NoError(t, err)
	require.Len(t, worklist, 1)
	assert.Equal(t, []string{"date", "email", "reminder_type"}, worklist[0].Keys())
}

func TestSelectMissingDateSkipped(t *testing.T) {
	path := writeTable(t, "nodate.csv",
		"email,date\n"+
			"ana@example.com,   \n"+
			"bob@example.com\n"+
			"cy@example.com,2024-01-15\n"+
			strings.Repeat("later@example.com,2024-03-01\n", 7))

	logger, logs := observedLogger()
	worklist, err := NewAppointmentSelector(logger, fixedClock(2024, time.January, 15)).Select(path)
	require.NoError(t, err)
	require.Len(t, worklist, 1)
	assert.Equal(t, "cy@example.com", worklist[0].GetOr(models.FieldEmail, ""))

	assert.Equal(t, 2, logs.FilterMessageSnippet("no date").Len())
}

func TestSelectNoDateColumn(t *testing.T) {
	path := writeTable(t, "nocolumn.csv", "email,when\nana@example.com,2024-01-15\n")

	logger, _ := observedLogger()
	worklist, err := NewAppointmentSelector(logger, fixedClock(2024, time.January, 15)).Select(path)
	require.NoError(t, err)
	assert.Empty(t, worklist)
}

func TestSelectEmptyWorklistIsSuccess(t *testing.T) {
	path := writeTable(t, "past.csv",
		"date,email\n"+
			"2024-01-14,ana@example.com\n"+
			"2024-01-17,bob@example.com\n")

	logger, logs := observedLogger()
	worklist, err := NewAppointmentSelector(logger, fixedClock(2024, time.January, 15)).Select(path)
	require.NoError(t, err)
	assert.NotNil(t, worklist)
	assert.Empty(t, worklist)
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestSelectNotFound(t *testing.T) {
	logger, logs := observedLogger()
	worklist, err := NewAppointmentSelector(logger, nil).Select(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Nil(t, worklist)
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	assert.Equal(t, 1, logs.FilterMessageSnippet("not found").Len())
}

func TestSelectProcessingError(t *testing.T) {
	logger, _ := observedLogger()
	worklist, err := NewAppointmentSelector(logger, nil).Select(t.TempDir())
	require.Error(t, err)
	assert.Nil(t, worklist)
	assert.True(t, utils.IsCode(err, utils.CodeProcessingError))
}

func TestSelectRaggedTableFailsInsteadOfEmpty(t *testing.T) {
	path := writeTable(t, "ragged.csv",
		"date;email;client_name;service\n"+
			strings.Repeat("2024-01-15;ana@example.com;Ana;Haircut\n", 8)+
			"2024-01-15;bob@example.com;Bob\n"+
			"2024-01-15;cy@example.com\n")

	logger, _ := observedLogger()
	worklist, err := NewAppointmentSelector(logger, fixedClock(2024, time.January, 15)).Select(path)
	require.Error(t, err)
	assert.Nil(t, worklist)
	assert.True(t, utils.IsCode(err, utils.CodeProcessingError))
}

func TestSelectAcrossMonthEnd(t *testing.T) {
	path := writeTable(t, "monthend.csv",
		"date,email\n"+
			"01/02/2024,ana@example.com\n"+
			"31/01/2024,bob@example.com\n")

	logger, _ := observedLogger()
	worklist, err := NewAppointmentSelector(logger, fixedClock(2024, time.January, 31)).Select(path)
	require.NoError(t, err)
	require.Len(t, worklist, 2)

	first, _ := worklist[0].ReminderType()
	second, _ := worklist[1].ReminderType()
	assert.Equal(t, models.ReminderTomorrow, first)
	assert.Equal(t, models.ReminderToday, second)
}
