// models/reminder_log.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Delivery statuses recorded in ReminderLog.Status.
const (
	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// ReminderLog is the audit record of one delivery attempt. It is history only;
// selection never reads it back.
type ReminderLog struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	RunID           uuid.UUID `gorm:"type:uuid;index;not null" json:"runId"`
	Channel         string    `gorm:"type:varchar(20)" json:"channel"` // email, sms, whatsapp
	Recipient       string    `json:"recipient"`
	ClientName      string    `json:"clientName"`
	AppointmentDate string    `gorm:"type:varchar(32)" json:"appointmentDate"`
	ReminderType    string    `gorm:"type:varchar(64)" json:"reminderType"`
	Subject         string    `json:"subject"`
	Message         string    `gorm:"type:text" json:"message"`
	Status          string    `gorm:"type:varchar(20);index" json:"status"` // sent, failed, skipped
	ErrorMessage    string    `gorm:"type:text" json:"errorMessage,omitempty"`
	SentAt          time.Time `gorm:"index" json:"sentAt"`
}

func (r *ReminderLog) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
