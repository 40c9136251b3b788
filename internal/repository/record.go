package repository

import (
	"context"
	"errors"

	"medvault/internal/model"
)

// ErrDuplicateGrant is returned by InsertGrant when a grant for the same
// (principal id, principal kind) pair already exists on the record. The
// uniqueness is enforced by a storage-level constraint, so a racing duplicate
// loses here rather than silently overwriting.
var ErrDuplicateGrant = errors.New("grant already exists for principal")

// RecordRepository defines data access for medical records and their grants
// using SQL queries only. No authorization logic here: expiry filtering is
// time-relative and belongs to the access engine, which applies a single
// asOf snapshot per call.
type RecordRepository interface {
	// Create inserts a new record row. Grants start empty; the owner is not
	// materialized as a grant. Returns the stored record.
	Create(ctx context.Context, rec *model.MedicalRecord) (*model.MedicalRecord, error)

	// FindByID returns a record with its grants loaded, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.MedicalRecord, error)

	// ListForPrincipal returns the candidate visibility set for a principal:
	// records they own plus records carrying any grant for them, expired or
	// not, ordered by uploaded_at descending.
	ListForPrincipal(ctx context.Context, principalID string) ([]model.MedicalRecord, error)

	// ListByOwner returns the records owned by ownerID, ordered by
	// uploaded_at descending.
	ListByOwner(ctx context.Context, ownerID string) ([]model.MedicalRecord, error)

	// CountByContentHandle returns how many records reference the blob key.
	// Content is addressed by digest, so identical uploads share a key.
	CountByContentHandle(ctx context.Context, handle string) (int64, error)

	// InsertGrant appends a grant to a record. Returns ErrDuplicateGrant when
	// the (principal id, kind) pair is already granted on the record.
	InsertGrant(ctx context.Context, recordID string, g model.AccessGrant) error

	// DeleteGrants removes every grant for principalID on the record,
	// regardless of kind, and returns the number removed. Removing zero
	// grants is not an error.
	DeleteGrants(ctx context.Context, recordID, principalID string) (int64, error)
}

// PrincipalRepository resolves principal ids against the identity directory.
type PrincipalRepository interface {
	// FindByID returns the directory entry for id, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.Principal, error)
}
