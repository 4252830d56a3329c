package model

import (
	"time"

	"github.com/google/uuid"
)

type ScheduleStatus string

const (
	ScheduleStatusPending     ScheduleStatus = "pending"
	ScheduleStatusCompleted   ScheduleStatus = "completed"
	ScheduleStatusOverdue     ScheduleStatus = "overdue"
	ScheduleStatusCancelled   ScheduleStatus = "cancelled"
	ScheduleStatusRescheduled ScheduleStatus = "rescheduled"
)

// Active reports whether the status still expects an investigation.
func (s ScheduleStatus) Active() bool {
	return s == ScheduleStatusPending || s == ScheduleStatusOverdue
}

// Terminal reports whether no further automatic transition applies.
// Rescheduled is soft-terminal: the item was superseded by a successor.
func (s ScheduleStatus) Terminal() bool {
	return s == ScheduleStatusCompleted || s == ScheduleStatusCancelled || s == ScheduleStatusRescheduled
}

// Default due window offsets applied when no override is given.
const (
	WindowDaysBefore = 14
	WindowDaysAfter  = 28
)

// SurveillanceSchedule is one concrete instance of an investigation due
// for one patient at one point in time. ScheduleID is deterministic
// (SURV-{patient}-{type}-{ruleSeq}-{recurrence}) so re-running expansion
// never duplicates items; LineageID identifies the chain of occurrences
// of one recurring rule.
type SurveillanceSchedule struct {
	ScheduleID          string         `db:"schedule_id" json:"schedule_id"`
	LineageID           string         `db:"lineage_id" json:"lineage_id"`
	PatientID           uuid.UUID      `db:"patient_id" json:"patient_id"`
	EpisodeID           uuid.UUID      `db:"episode_id" json:"episode_id"`
	SurveillanceType    string         `db:"surveillance_type" json:"surveillance_type"`
	Protocol            string         `db:"protocol" json:"protocol"`
	Description         string         `db:"description" json:"description,omitempty"`
	DueDate             time.Time      `db:"due_date" json:"due_date"`
	DueWindowStart      time.Time      `db:"due_window_start" json:"due_window_start"`
	DueWindowEnd        time.Time      `db:"due_window_end" json:"due_window_end"`
	Status              ScheduleStatus `db:"status" json:"status"`
	FrequencyMonths     *int           `db:"frequency_months" json:"frequency_months,omitempty"`
	EndSurveillanceDate time.Time      `db:"end_surveillance_date" json:"end_surveillance_date"`
	RecurrenceCount     int            `db:"recurrence_count" json:"recurrence_count"`
	InvestigationID     *uuid.UUID     `db:"investigation_id" json:"investigation_id,omitempty"`
	CompletedDate       *time.Time     `db:"completed_date" json:"completed_date,omitempty"`
	AssignedClinician   *uuid.UUID     `db:"assigned_clinician" json:"assigned_clinician,omitempty"`
	Notes               string         `db:"notes" json:"notes,omitempty"`
	ReminderSent        bool           `db:"reminder_sent" json:"reminder_sent"`
	ReminderSentDate    *time.Time     `db:"reminder_sent_date" json:"reminder_sent_date,omitempty"`
	EscalationSent      bool           `db:"escalation_sent" json:"escalation_sent"`
	EscalationSentDate  *time.Time     `db:"escalation_sent_date" json:"escalation_sent_date,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
	CreatedBy           string         `db:"created_by" json:"created_by"`
	UpdatedAt           time.Time      `db:"updated_at" json:"updated_at"`
	UpdatedBy           string         `db:"updated_by" json:"updated_by"`
}

// Recurring reports whether the item belongs to a recurring rule and may
// produce successors.
func (s *SurveillanceSchedule) Recurring() bool {
	return s.FrequencyMonths != nil
}

// SurveillanceScheduleUpdate is the manual override contract. Status may
// only be set to cancelled; completion happens exclusively through the
// completion linker. ResetReminder re-arms the reminder flag after a due
// date edit, a policy decision left to the caller.
type SurveillanceScheduleUpdate struct {
	DueDate           *time.Time      `json:"due_date,omitempty"`
	DueWindowStart    *time.Time      `json:"due_window_start,omitempty"`
	DueWindowEnd      *time.Time      `json:"due_window_end,omitempty"`
	Status            *ScheduleStatus `json:"status,omitempty"`
	Notes             *string         `json:"notes,omitempty"`
	AssignedClinician *uuid.UUID      `json:"assigned_clinician,omitempty"`
	ResetReminder     bool            `json:"reset_reminder,omitempty"`
}

type ScheduleFilters struct {
	PatientID        uuid.UUID
	EpisodeID        uuid.UUID
	SurveillanceType string
	Status           ScheduleStatus
	DueBefore        time.Time
	DueAfter         time.Time
	Limit            int
}

// SurveillanceSummary is a read-only aggregation over the schedule store.
type SurveillanceSummary struct {
	Total              int                      `json:"total"`
	Pending            int                      `json:"pending"`
	Overdue            int                      `json:"overdue"`
	DueThisWeek        int                      `json:"due_this_week"`
	DueThisMonth       int                      `json:"due_this_month"`
	CompletedThisMonth int                      `json:"completed_this_month"`
	ByType             map[string]TypeBreakdown `json:"by_type"`
	OverdueDetails     []OverdueDetail          `json:"overdue_details"`
}

type TypeBreakdown struct {
	Total   int `json:"total" db:"total"`
	Pending int `json:"pending" db:"pending"`
	Overdue int `json:"overdue" db:"overdue"`
}

type OverdueDetail struct {
	ScheduleID        string     `json:"schedule_id" db:"schedule_id"`
	PatientID         uuid.UUID  `json:"patient_id" db:"patient_id"`
	SurveillanceType  string     `json:"surveillance_type" db:"surveillance_type"`
	DueDate           time.Time  `json:"due_date" db:"due_date"`
	DaysOverdue       int        `json:"days_overdue" db:"days_overdue"`
	EscalationSent    bool       `json:"escalation_sent" db:"escalation_sent"`
	AssignedClinician *uuid.UUID `json:"assigned_clinician,omitempty" db:"assigned_clinician"`
}
