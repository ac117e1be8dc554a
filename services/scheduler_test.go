package services

import (
	"context"
	"testing"
	"time"

	"appointment-notifier/models"
	"appointment-notifier/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerStart(t *testing.T) {
	svc, _ := newTestService(t, reminderTable)
	logger, _ := observedLogger()

	s := NewScheduler(svc, logger)
	require.NoError(t, s.Start(""))
	defer s.Stop()
	assert.Equal(t, 1, s.Entries())
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	svc, _ := newTestService(t, reminderTable)
	logger, _ := observedLogger()

	err := NewScheduler(svc, logger).Start("every day at nine")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeConfigInvalid))
}

func TestSchedulerRunOnce(t *testing.T) {
	sender := &fakeSender{channel: ChannelEmail}
	svc, store := newTestService(t, reminderTable, sender)
	logger, logs := observedLogger()

	NewScheduler(svc, logger).runOnce()
	assert.Len(t, sender.sent, 2)
	assert.Equal(t, 1, logs.FilterMessageSnippet("finished").Len())

	entries, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestMemoryLogStoreNewestFirst(t *testing.T) {
	store := NewMemoryLogStore()
	base := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, store.Save(context.Background(), &models.ReminderLog{ClientName: name, SentAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	all, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].ClientName)
	assert.Equal(t, "first", all[2].ClientName)

	limited, err := store.List(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, "second", limited[1].ClientName)
}
