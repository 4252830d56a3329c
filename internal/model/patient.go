package model

import (
	"time"

	"github.com/google/uuid"
)

// PatientContact is the read model the engine needs from the clinical
// store: where to send reminders and whether the patient opted in.
// Patient demographics live outside this engine.
type PatientContact struct {
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	Name              string     `db:"name" json:"name"`
	Email             string     `db:"email" json:"email"`
	SendEmailReminder bool       `db:"send_email_reminder" json:"send_email_reminder"`
	AssignedClinician *uuid.UUID `db:"assigned_clinician" json:"assigned_clinician,omitempty"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}
