package models

import (
	"bytes"
	"encoding/json"
)

// ReminderType classifies a selected appointment.
type ReminderType string

const (
	ReminderTomorrow ReminderType = "REMINDER: Appointment scheduled for tomorrow"
	ReminderToday    ReminderType = "NOTICE: Appointment scheduled for today"
)

// Well-known appointment columns. Any other column is carried through untouched.
const (
	FieldDate         = "date"
	FieldEmail        = "email"
	FieldPhone        = "phone"
	FieldClientName   = "client_name"
	FieldService      = "service"
	FieldTime         = "time"
	FieldLocation     = "location"
	FieldReminderType = "reminder_type"
)

// Appointment is one normalized table row: column name to cell value, in
// column order. The schema is whatever the source table's header defines.
type Appointment struct {
	keys   []string
	values map[string]string
}

func NewAppointment() *Appointment {
	return &Appointment{values: make(map[string]string)}
}

// Set stores value under key. An existing key keeps its position.
func (a *Appointment) Set(key, value string) {
	if _, exists := a.values[key]; !exists {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

func (a *Appointment) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// GetOr returns the value for key, or fallback when the column is absent.
func (a *Appointment) GetOr(key, fallback string) string {
	if v, ok := a.values[key]; ok {
		return v
	}
	return fallback
}

func (a *Appointment) Keys() []string {
	return append([]string(nil), a.keys...)
}

func (a *Appointment) Len() int {
	return len(a.keys)
}

// Map returns a copy of the fields.
func (a *Appointment) Map() map[string]string {
	out := make(map[string]string, len(a.values))
	for k, v := range a.values {
		out[k] = v
	}
	return out
}

// ReminderType returns the classification stamped by the selector, if any.
func (a *Appointment) ReminderType() (ReminderType, bool) {
	v, ok := a.values[FieldReminderType]
	return ReminderType(v), ok
}

// MarshalJSON encodes the appointment as an object in column order.
func (a *Appointment) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(a.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
