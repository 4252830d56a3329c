package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

type NotificationKind string

const (
	NotificationKindReminder   NotificationKind = "reminder"
	NotificationKindEscalation NotificationKind = "escalation"
)

// Notification is one row in the dispatch log. The exactly-once guarantee
// lives on the schedule item flags, not here; this log exists so
// operators can see what was actually sent, to whom, and when.
type Notification struct {
	ID         uuid.UUID          `db:"id" json:"id"`
	ScheduleID string             `db:"schedule_id" json:"schedule_id"`
	PatientID  uuid.UUID          `db:"patient_id" json:"patient_id"`
	Kind       NotificationKind   `db:"kind" json:"kind"`
	Recipient  string             `db:"recipient" json:"recipient"`
	Subject    string             `db:"subject" json:"subject"`
	Content    string             `db:"content" json:"content"`
	Status     NotificationStatus `db:"status" json:"status"`
	LastError  string             `db:"last_error" json:"last_error,omitempty"`
	SentAt     *time.Time         `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}
