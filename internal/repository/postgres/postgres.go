package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/surveillance-engine/internal/config"
)

// NewDB opens a postgres connection pool from config.
func NewDB(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}
