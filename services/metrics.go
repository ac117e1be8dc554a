package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_notifier_runs_total",
			Help: "Total selection runs by outcome.",
		},
		[]string{"outcome"},
	)
	appointmentsSelectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_notifier_appointments_selected_total",
			Help: "Appointments selected for notification by reminder type.",
		},
		[]string{"reminder_type"},
	)
	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_notifier_reminders_total",
			Help: "Reminder delivery attempts by channel and status.",
		},
		[]string{"channel", "status"},
	)
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "appointment_notifier_run_duration_seconds",
			Help:    "Duration of a full select and dispatch run.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)
)
