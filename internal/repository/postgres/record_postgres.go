package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"medvault/internal/model"
	"medvault/internal/repository"
)

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const pgUniqueViolation = "23505"

// RecordPostgres is a PostgreSQL implementation of repository.RecordRepository.
// Records and grants live in separate tables; the UNIQUE constraint on
// access_grants (record_id, principal_id, principal_kind) enforces the
// no-duplicate-grant invariant at the storage layer.
type RecordPostgres struct {
	db *sql.DB
}

// NewRecordPostgres creates a new RecordPostgres repository.
func NewRecordPostgres(db *sql.DB) *RecordPostgres {
	return &RecordPostgres{db: db}
}

var _ repository.RecordRepository = (*RecordPostgres)(nil)

// selectWithGrants is the shared projection for record queries. Grants are
// LEFT JOINed so records without grants still produce one row.
const selectWithGrants = `
	SELECT r.id, r.owner_id, r.record_type, r.name, r.description,
	       r.content_handle, r.integrity_hash, r.uploaded_at,
	       g.principal_id, g.principal_kind, g.granted_at, g.expires_at
	FROM medical_records r
	LEFT JOIN access_grants g ON g.record_id = r.id
`

// Create inserts a new record row and returns the stored record.
func (r *RecordPostgres) Create(ctx context.Context, rec *model.MedicalRecord) (*model.MedicalRecord, error) {
	const q = `
		INSERT INTO medical_records (id, owner_id, record_type, name, description, content_handle, integrity_hash, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, owner_id, record_type, name, description, content_handle, integrity_hash, uploaded_at
	`
	row := r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.OwnerID,
		rec.RecordType,
		rec.Name,
		rec.Description,
		rec.ContentHandle,
		rec.IntegrityHash,
		rec.UploadedAt,
	)
	var out model.MedicalRecord
	if err := row.Scan(
		&out.ID,
		&out.OwnerID,
		&out.RecordType,
		&out.Name,
		&out.Description,
		&out.ContentHandle,
		&out.IntegrityHash,
		&out.UploadedAt,
	); err != nil {
		return nil, err
	}
	out.Grants = []model.AccessGrant{}
	return &out, nil
}

// FindByID fetches a single record with its grants.
func (r *RecordPostgres) FindByID(ctx context.Context, id string) (*model.MedicalRecord, error) {
	q := selectWithGrants + `
	WHERE r.id = $1
	ORDER BY g.granted_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, sql.ErrNoRows
	}
	return &recs[0], nil
}

// ListForPrincipal returns records owned by or granted to the principal,
// most recently uploaded first. Expired grants are included on purpose;
// expiry is the access engine's concern.
func (r *RecordPostgres) ListForPrincipal(ctx context.Context, principalID string) ([]model.MedicalRecord, error) {
	q := selectWithGrants + `
	WHERE r.owner_id = $1
	   OR EXISTS (SELECT 1 FROM access_grants a WHERE a.record_id = r.id AND a.principal_id = $1)
	ORDER BY r.uploaded_at DESC, r.id DESC, g.granted_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

// ListByOwner returns the records owned by ownerID, most recent first.
func (r *RecordPostgres) ListByOwner(ctx context.Context, ownerID string) ([]model.MedicalRecord, error) {
	q := selectWithGrants + `
	WHERE r.owner_id = $1
	ORDER BY r.uploaded_at DESC, r.id DESC, g.granted_at ASC
	`
	rows, err := r.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

// CountByContentHandle returns the number of records referencing the blob key.
func (r *RecordPostgres) CountByContentHandle(ctx context.Context, handle string) (int64, error) {
	const q = `SELECT COUNT(*) FROM medical_records WHERE content_handle = $1`
	var n int64
	if err := r.db.QueryRowContext(ctx, q, handle).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// InsertGrant appends a grant row. A unique violation on the
// (record_id, principal_id, principal_kind) constraint is translated to
// repository.ErrDuplicateGrant.
func (r *RecordPostgres) InsertGrant(ctx context.Context, recordID string, g model.AccessGrant) error {
	const q = `
		INSERT INTO access_grants (record_id, principal_id, principal_kind, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, q, recordID, g.PrincipalID, g.PrincipalKind, g.GrantedAt, g.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return repository.ErrDuplicateGrant
		}
		return err
	}
	return nil
}

// DeleteGrants removes all grants for the principal on the record. Zero rows
// affected is a successful no-op.
func (r *RecordPostgres) DeleteGrants(ctx context.Context, recordID, principalID string) (int64, error) {
	const q = `DELETE FROM access_grants WHERE record_id = $1 AND principal_id = $2`
	res, err := r.db.ExecContext(ctx, q, recordID, principalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// collectRecords groups joined record/grant rows into records, preserving row
// order for the records and granted_at order for each grants list.
func collectRecords(rows *sql.Rows) ([]model.MedicalRecord, error) {
	recs := make([]model.MedicalRecord, 0)
	index := make(map[string]int)

	for rows.Next() {
		var (
			rec      model.MedicalRecord
			gID      sql.NullString
			gKind    sql.NullString
			gGranted sql.NullTime
			gExpires sql.NullTime
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.OwnerID,
			&rec.RecordType,
			&rec.Name,
			&rec.Description,
			&rec.ContentHandle,
			&rec.IntegrityHash,
			&rec.UploadedAt,
			&gID,
			&gKind,
			&gGranted,
			&gExpires,
		); err != nil {
			return nil, err
		}

		i, seen := index[rec.ID]
		if !seen {
			rec.Grants = []model.AccessGrant{}
			recs = append(recs, rec)
			i = len(recs) - 1
			index[rec.ID] = i
		}

		if gID.Valid {
			g := model.AccessGrant{
				PrincipalID:   gID.String,
				PrincipalKind: model.PrincipalKind(gKind.String),
				GrantedAt:     gGranted.Time,
			}
			if gExpires.Valid {
				exp := gExpires.Time
				g.ExpiresAt = &exp
			}
			recs[i].Grants = append(recs[i].Grants, g)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}
