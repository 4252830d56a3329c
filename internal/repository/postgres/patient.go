package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/repository"
	apperrors "github.com/jwalitptl/surveillance-engine/pkg/errors"
)

type patientDirectory struct {
	BaseRepository
}

func NewPatientDirectory(db *sqlx.DB) repository.PatientDirectory {
	return &patientDirectory{BaseRepository: NewBaseRepository(db)}
}

func (r *patientDirectory) GetContact(ctx context.Context, patientID uuid.UUID) (*model.PatientContact, error) {
	query := `
		SELECT patient_id, name, email, send_email_reminder,
			   assigned_clinician, updated_at
		FROM patient_contacts
		WHERE patient_id = $1
	`
	var contact model.PatientContact
	err := r.db.GetContext(ctx, &contact, query, patientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("patient contact", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient contact: %w", err)
	}
	return &contact, nil
}
