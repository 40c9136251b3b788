package postgres

import (
	"context"
	"database/sql"

	"medvault/internal/model"
	"medvault/internal/repository"
)

// PrincipalPostgres is a PostgreSQL implementation of
// repository.PrincipalRepository backed by the principals directory table.
type PrincipalPostgres struct {
	db *sql.DB
}

// NewPrincipalPostgres creates a new PrincipalPostgres repository.
func NewPrincipalPostgres(db *sql.DB) *PrincipalPostgres {
	return &PrincipalPostgres{db: db}
}

var _ repository.PrincipalRepository = (*PrincipalPostgres)(nil)

// FindByID fetches a directory entry by principal id.
func (r *PrincipalPostgres) FindByID(ctx context.Context, id string) (*model.Principal, error) {
	const q = `SELECT id, kind, name FROM principals WHERE id = $1`
	row := r.db.QueryRowContext(ctx, q, id)
	var p model.Principal
	if err := row.Scan(&p.ID, &p.Kind, &p.Name); err != nil {
		return nil, err
	}
	return &p, nil
}
