package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditLog records one engine write: who asked for it, what changed.
type AuditLog struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	Actor      string          `db:"actor" json:"actor"`
	Action     string          `db:"action" json:"action"`
	EntityType string          `db:"entity_type" json:"entity_type"`
	EntityID   string          `db:"entity_id" json:"entity_id"`
	Changes    json.RawMessage `db:"changes" json:"changes,omitempty"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

type AuditFilters struct {
	Actor      string
	EntityType string
	EntityID   string
	From       time.Time
	To         time.Time
	Limit      int
}
