package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"medvault/internal/access"
	"medvault/internal/model"
	"medvault/internal/repository"
	"medvault/internal/storage"
)

var (
	ErrNotFound             = errors.New("record not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrAlreadyGranted       = errors.New("access already granted")
	ErrEmptyContent         = errors.New("record content is empty")
	ErrNameRequired         = errors.New("record name is required")
	ErrInvalidRecordType    = errors.New("invalid record type")
	ErrInvalidPrincipalKind = errors.New("invalid principal kind")
	ErrPrincipalNotFound    = errors.New("principal not found")
	ErrKindMismatch         = errors.New("principal kind does not match directory")
	ErrOwnerGrant           = errors.New("owner access is implicit")
	ErrIntegrityViolation   = errors.New("content integrity check failed")
)

// nameSuffixLayout is appended to uploaded names so re-uploads of the same
// file name stay distinguishable.
const nameSuffixLayout = "2006-01-02_15-04-05"

var tracer = otel.Tracer("medvault/internal/service")

// RecordService defines the use cases for medical records: ingestion, the
// owner-controlled grant/revoke mutations, and visibility-filtered reads.
// Every read goes through the access engine; there is no other path to a
// record.
type RecordService interface {
	// Ingest validates the upload, hashes and stores the bytes, then persists
	// the owning record. The blob write happens first; if the record insert
	// fails the blob is deleted again so no partial record is ever visible.
	Ingest(ctx context.Context, ownerID string, recordType model.RecordType, name, description, contentType string, raw []byte) (*model.MedicalRecord, error)

	// Grant delegates read access on a record to another principal. Only the
	// owner may grant; a duplicate (principal, kind) pair is rejected.
	Grant(ctx context.Context, recordID, grantorID, principalID string, kind model.PrincipalKind, expiresAt *time.Time) (*model.MedicalRecord, error)

	// Revoke removes every grant for the principal on the record and reports
	// how many were removed. Only the owner may revoke. Revoking an absent
	// grant is a successful no-op with a zero count.
	Revoke(ctx context.Context, recordID, revokerID, principalID string) (*model.MedicalRecord, int64, error)

	// ListVisible returns the records the principal may read right now:
	// owned records plus records with a live grant, most recent first.
	ListVisible(ctx context.Context, principalID string) ([]model.MedicalRecord, error)

	// ListOwned returns the principal's own records, most recent first.
	ListOwned(ctx context.Context, ownerID string) ([]model.MedicalRecord, error)

	// Get returns a record the requester is authorized to read. An
	// unauthorized requester gets ErrNotFound so record existence is not
	// leaked.
	Get(ctx context.Context, recordID, requesterID string) (*model.MedicalRecord, error)

	// Download returns the record plus its raw content, verified against the
	// stored integrity hash.
	Download(ctx context.Context, recordID, requesterID string) (*model.MedicalRecord, []byte, error)

	// ContentURL returns a time-limited URL for fetching the record content
	// directly from the blob store. The URL bypasses the integrity check, so
	// callers wanting verification use Download instead.
	ContentURL(ctx context.Context, recordID, requesterID string, expiry time.Duration) (string, error)
}

// recordService is a concrete implementation of RecordService.
type recordService struct {
	store      storage.Storage
	records    repository.RecordRepository
	principals repository.PrincipalRepository
	now        func() time.Time
}

// NewRecordService constructs a new RecordService.
func NewRecordService(store storage.Storage, records repository.RecordRepository, principals repository.PrincipalRepository) RecordService {
	return &recordService{
		store:      store,
		records:    records,
		principals: principals,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *recordService) Ingest(ctx context.Context, ownerID string, recordType model.RecordType, name, description, contentType string, raw []byte) (*model.MedicalRecord, error) {
	ctx, span := tracer.Start(ctx, "RecordService.Ingest", trace.WithAttributes(
		attribute.String("record.owner_id", ownerID),
		attribute.String("record.type", string(recordType)),
		attribute.Int("record.size_bytes", len(raw)),
	))
	defer span.End()

	if len(raw) == 0 {
		return nil, ErrEmptyContent
	}
	if name == "" {
		return nil, ErrNameRequired
	}
	if !recordType.Valid() {
		return nil, ErrInvalidRecordType
	}

	// Only patients own records; uploads arrive on the patient-facing route.
	owner, err := s.resolvePrincipal(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if owner.Kind != model.KindPatient {
		return nil, ErrKindMismatch
	}

	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])
	key := "records/" + digest

	// Blob first, record second. A failed blob write leaves no trace; a
	// failed record insert rolls the blob back.
	objInfo, err := s.store.Put(ctx, key, bytes.NewReader(raw), storage.PutObjectOptions{
		Size:        int64(len(raw)),
		ContentType: contentType,
		Metadata: map[string]string{
			"owner-id":    ownerID,
			"record-type": string(recordType),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}

	now := s.now()
	rec := &model.MedicalRecord{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		RecordType:    recordType,
		Name:          fmt.Sprintf("%s-%s", name, now.Format(nameSuffixLayout)),
		Description:   description,
		ContentHandle: objInfo.Key,
		IntegrityHash: digest,
		UploadedAt:    now,
		Grants:        []model.AccessGrant{},
	}
	stored, err := s.records.Create(ctx, rec)
	if err != nil {
		if delErr := s.rollbackContent(ctx, key); delErr != nil {
			return nil, fmt.Errorf("persist record: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("persist record: %w", err)
	}
	return stored, nil
}

// rollbackContent removes the blob written for a failed insert. Keys are
// content-addressed, so an earlier record with the same bytes holds the same
// key; the blob must stay whenever any persisted record still references it.
// When the reference count cannot be determined the blob is kept; an orphaned
// blob is harmless, a deleted shared one is not.
func (s *recordService) rollbackContent(ctx context.Context, key string) error {
	refs, err := s.records.CountByContentHandle(ctx, key)
	if err != nil || refs > 0 {
		return nil
	}
	return s.store.Delete(ctx, key)
}

func (s *recordService) Grant(ctx context.Context, recordID, grantorID, principalID string, kind model.PrincipalKind, expiresAt *time.Time) (*model.MedicalRecord, error) {
	if !kind.Valid() {
		return nil, ErrInvalidPrincipalKind
	}

	rec, err := s.findRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != grantorID {
		return nil, ErrNotAuthorized
	}
	if principalID == rec.OwnerID {
		return nil, ErrOwnerGrant
	}
	if access.HasGrant(rec, principalID, kind) {
		return nil, ErrAlreadyGranted
	}

	// Cross-check the target against the directory so a grant cannot point
	// at a nonexistent principal or the wrong kind.
	target, err := s.resolvePrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if target.Kind != kind {
		return nil, ErrKindMismatch
	}

	g := model.AccessGrant{
		PrincipalID:   principalID,
		PrincipalKind: kind,
		GrantedAt:     s.now(),
		ExpiresAt:     expiresAt,
	}
	if err := s.records.InsertGrant(ctx, rec.ID, g); err != nil {
		// The unique constraint backstops the in-memory check under races.
		if errors.Is(err, repository.ErrDuplicateGrant) {
			return nil, ErrAlreadyGranted
		}
		return nil, fmt.Errorf("persist grant: %w", err)
	}

	rec.Grants = append(rec.Grants, g)
	return rec, nil
}

func (s *recordService) Revoke(ctx context.Context, recordID, revokerID, principalID string) (*model.MedicalRecord, int64, error) {
	rec, err := s.findRecord(ctx, recordID)
	if err != nil {
		return nil, 0, err
	}
	if rec.OwnerID != revokerID {
		return nil, 0, ErrNotAuthorized
	}

	removed, err := s.records.DeleteGrants(ctx, rec.ID, principalID)
	if err != nil {
		return nil, 0, fmt.Errorf("delete grants: %w", err)
	}

	kept := rec.Grants[:0]
	for _, g := range rec.Grants {
		if g.PrincipalID != principalID {
			kept = append(kept, g)
		}
	}
	rec.Grants = kept
	return rec, removed, nil
}

func (s *recordService) ListVisible(ctx context.Context, principalID string) ([]model.MedicalRecord, error) {
	recs, err := s.records.ListForPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	// One asOf snapshot for the whole projection.
	return access.FilterVisible(recs, principalID, s.now()), nil
}

func (s *recordService) ListOwned(ctx context.Context, ownerID string) ([]model.MedicalRecord, error) {
	return s.records.ListByOwner(ctx, ownerID)
}

func (s *recordService) Get(ctx context.Context, recordID, requesterID string) (*model.MedicalRecord, error) {
	rec, err := s.findRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if !access.IsAuthorized(rec, requesterID, s.now()) {
		// Deliberately indistinguishable from a missing record.
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *recordService) Download(ctx context.Context, recordID, requesterID string) (*model.MedicalRecord, []byte, error) {
	ctx, span := tracer.Start(ctx, "RecordService.Download", trace.WithAttributes(
		attribute.String("record.id", recordID),
	))
	defer span.End()

	rec, err := s.Get(ctx, recordID, requesterID)
	if err != nil {
		return nil, nil, err
	}

	rc, _, err := s.store.Get(ctx, rec.ContentHandle)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch content: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("read content: %w", err)
	}

	sum := sha256.Sum256(raw)
	if hex.EncodeToString(sum[:]) != rec.IntegrityHash {
		return nil, nil, ErrIntegrityViolation
	}
	return rec, raw, nil
}

func (s *recordService) ContentURL(ctx context.Context, recordID, requesterID string, expiry time.Duration) (string, error) {
	rec, err := s.Get(ctx, recordID, requesterID)
	if err != nil {
		return "", err
	}
	u, err := s.store.PresignGet(ctx, rec.ContentHandle, expiry)
	if err != nil {
		return "", fmt.Errorf("presign content: %w", err)
	}
	return u, nil
}

func (s *recordService) findRecord(ctx context.Context, id string) (*model.MedicalRecord, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	rec, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *recordService) resolvePrincipal(ctx context.Context, id string) (*model.Principal, error) {
	if id == "" {
		return nil, ErrPrincipalNotFound
	}
	p, err := s.principals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	return p, nil
}
