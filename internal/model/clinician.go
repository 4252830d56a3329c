package model

import (
	"github.com/google/uuid"
)

// Clinician is the read model for escalation routing: an escalation for
// an item assigned to a clinician goes to that clinician's supervising
// lead.
type Clinician struct {
	ClinicianID     uuid.UUID  `db:"clinician_id" json:"clinician_id"`
	Name            string     `db:"name" json:"name"`
	Email           string     `db:"email" json:"email"`
	SupervisingLead *uuid.UUID `db:"supervising_lead" json:"supervising_lead,omitempty"`
	Status          string     `db:"status" json:"status"`
}
