package model

import (
	"time"

	"github.com/google/uuid"
)

// TreatmentCompletedEvent is the inbound trigger for schedule expansion.
// ReferenceDate is nil while the treatment is not yet dated; expansion is
// deferred until the collaborator re-delivers the event with a date.
type TreatmentCompletedEvent struct {
	PatientID       uuid.UUID  `json:"patient_id" binding:"required"`
	EpisodeID       uuid.UUID  `json:"episode_id" binding:"required"`
	ConditionType   string     `json:"condition_type" binding:"required"`
	CancerType      string     `json:"cancer_type" binding:"required"`
	Stage           string     `json:"stage"`
	TreatmentIntent string     `json:"treatment_intent"`
	ReferenceDate   *time.Time `json:"reference_date"`
}

// InvestigationRecordedEvent is the inbound trigger for completion
// linkage.
type InvestigationRecordedEvent struct {
	PatientID        uuid.UUID `json:"patient_id" binding:"required"`
	SurveillanceType string    `json:"surveillance_type" binding:"required"`
	PerformedDate    time.Time `json:"performed_date" binding:"required"`
	InvestigationID  uuid.UUID `json:"investigation_id" binding:"required"`
}

// ReminderNotice is emitted to the notification sink ahead of a due date.
type ReminderNotice struct {
	PatientID         uuid.UUID  `json:"patient_id"`
	ScheduleID        string     `json:"schedule_id"`
	SurveillanceType  string     `json:"surveillance_type"`
	DueDate           time.Time  `json:"due_date"`
	AssignedClinician *uuid.UUID `json:"assigned_clinician,omitempty"`
}

// EscalationNotice is emitted when an overdue item remains unresolved
// past the escalation grace period.
type EscalationNotice struct {
	PatientID         uuid.UUID  `json:"patient_id"`
	ScheduleID        string     `json:"schedule_id"`
	SurveillanceType  string     `json:"surveillance_type"`
	DaysOverdue       int        `json:"days_overdue"`
	AssignedClinician *uuid.UUID `json:"assigned_clinician,omitempty"`
}
