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

type clinicianDirectory struct {
	BaseRepository
}

func NewClinicianDirectory(db *sqlx.DB) repository.ClinicianDirectory {
	return &clinicianDirectory{BaseRepository: NewBaseRepository(db)}
}

func (r *clinicianDirectory) Get(ctx context.Context, clinicianID uuid.UUID) (*model.Clinician, error) {
	query := `
		SELECT clinician_id, name, email, supervising_lead, status
		FROM clinicians
		WHERE clinician_id = $1
	`
	var clinician model.Clinician
	err := r.db.GetContext(ctx, &clinician, query, clinicianID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("clinician", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clinician: %w", err)
	}
	return &clinician, nil
}

// SupervisingLead resolves the escalation recipient for a clinician's
// items. A clinician with no configured lead escalates to themselves.
func (r *clinicianDirectory) SupervisingLead(ctx context.Context, clinicianID uuid.UUID) (*model.Clinician, error) {
	clinician, err := r.Get(ctx, clinicianID)
	if err != nil {
		return nil, err
	}
	if clinician.SupervisingLead == nil {
		return clinician, nil
	}
	lead, err := r.Get(ctx, *clinician.SupervisingLead)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve supervising lead: %w", err)
	}
	return lead, nil
}
