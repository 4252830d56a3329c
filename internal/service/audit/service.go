package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/surveillance-engine/internal/model"
	"github.com/jwalitptl/surveillance-engine/internal/repository"
)

type Service struct {
	repo repository.AuditRepository
}

func NewService(repo repository.AuditRepository) *Service {
	return &Service{repo: repo}
}

type LogOptions struct {
	Changes  interface{}
	Metadata interface{}
}

// Log creates an audit log entry. Marshal failures and repository errors
// surface to the caller; engine callers log and continue, an audit miss
// never blocks a clinical write.
func (s *Service) Log(ctx context.Context, meta model.RecordMeta, action, entityType, entityID string, opts *LogOptions) error {
	var changes, metadata json.RawMessage
	var err error

	if opts != nil {
		if opts.Changes != nil {
			changes, err = json.Marshal(opts.Changes)
			if err != nil {
				return err
			}
		}
		if opts.Metadata != nil {
			metadata, err = json.Marshal(opts.Metadata)
			if err != nil {
				return err
			}
		}
	}

	at := meta.At
	if at.IsZero() {
		at = time.Now()
	}

	entry := &model.AuditLog{
		ID:         uuid.New(),
		Actor:      meta.Actor,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		Metadata:   metadata,
		CreatedAt:  at,
	}

	return s.repo.Create(ctx, entry)
}

func (s *Service) List(ctx context.Context, filters *model.AuditFilters) ([]*model.AuditLog, error) {
	return s.repo.List(ctx, filters)
}
