package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medvault/internal/model"
	"medvault/internal/repository"
)

var recordCols = []string{
	"id", "owner_id", "record_type", "name", "description",
	"content_handle", "integrity_hash", "uploaded_at",
	"principal_id", "principal_kind", "granted_at", "expires_at",
}

func TestRecordPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	rec := &model.MedicalRecord{
		ID:            "rec-1",
		OwnerID:       "patient-1",
		RecordType:    model.RecordTypeReport,
		Name:          "blood-test-2026-08-30_10-00-00",
		Description:   "cbc panel",
		ContentHandle: "records/abc123",
		IntegrityHash: "abc123",
		UploadedAt:    now,
	}

	rows := sqlmock.NewRows([]string{"id", "owner_id", "record_type", "name", "description", "content_handle", "integrity_hash", "uploaded_at"}).
		AddRow(rec.ID, rec.OwnerID, rec.RecordType, rec.Name, rec.Description, rec.ContentHandle, rec.IntegrityHash, rec.UploadedAt)

	mock.ExpectQuery("INSERT INTO medical_records").
		WithArgs(rec.ID, rec.OwnerID, rec.RecordType, rec.Name, rec.Description, rec.ContentHandle, rec.IntegrityHash, rec.UploadedAt).
		WillReturnRows(rows)

	got, err := repo.Create(ctx, rec)

	assert.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.NotNil(t, got.Grants)
	assert.Empty(t, got.Grants)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()

	t.Run("found with grants", func(t *testing.T) {
		now := time.Now().UTC()
		expiry := now.Add(24 * time.Hour)
		rows := sqlmock.NewRows(recordCols).
			AddRow("rec-1", "patient-1", "report", "blood-test", "", "records/abc", "abc", now,
				"doctor-1", "Doctor", now, expiry).
			AddRow("rec-1", "patient-1", "report", "blood-test", "", "records/abc", "abc", now,
				"patient-2", "Patient", now, nil)

		mock.ExpectQuery("SELECT (.+) FROM medical_records r").
			WithArgs("rec-1").
			WillReturnRows(rows)

		rec, err := repo.FindByID(ctx, "rec-1")

		require.NoError(t, err)
		assert.Equal(t, "rec-1", rec.ID)
		require.Len(t, rec.Grants, 2)
		assert.Equal(t, "doctor-1", rec.Grants[0].PrincipalID)
		require.NotNil(t, rec.Grants[0].ExpiresAt)
		assert.Nil(t, rec.Grants[1].ExpiresAt)
	})

	t.Run("found without grants", func(t *testing.T) {
		now := time.Now().UTC()
		rows := sqlmock.NewRows(recordCols).
			AddRow("rec-2", "patient-1", "bill", "invoice", "", "records/def", "def", now,
				nil, nil, nil, nil)

		mock.ExpectQuery("SELECT (.+) FROM medical_records r").
			WithArgs("rec-2").
			WillReturnRows(rows)

		rec, err := repo.FindByID(ctx, "rec-2")

		require.NoError(t, err)
		assert.Empty(t, rec.Grants)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM medical_records r").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(recordCols))

		rec, err := repo.FindByID(ctx, "missing")

		assert.Nil(t, rec)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestRecordPostgres_ListForPrincipal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()

	newer := time.Now().UTC()
	older := newer.Add(-time.Hour)
	expired := newer.Add(-time.Minute)

	// Expired grants come back too; expiry filtering happens in the access
	// engine, not here.
	rows := sqlmock.NewRows(recordCols).
		AddRow("rec-new", "doctor-1", "report", "own-report", "", "records/a", "a", newer,
			nil, nil, nil, nil).
		AddRow("rec-old", "patient-1", "report", "shared", "", "records/b", "b", older,
			"doctor-1", "Doctor", older, expired)

	mock.ExpectQuery("SELECT (.+) FROM medical_records r").
		WithArgs("doctor-1").
		WillReturnRows(rows)

	recs, err := repo.ListForPrincipal(ctx, "doctor-1")

	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "rec-new", recs[0].ID)
	assert.Empty(t, recs[0].Grants)
	require.Len(t, recs[1].Grants, 1)
	assert.Equal(t, "doctor-1", recs[1].Grants[0].PrincipalID)
}

func TestRecordPostgres_CountByContentHandle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()

	t.Run("counts records sharing a handle", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM medical_records").
			WithArgs("records/abc").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		n, err := repo.CountByContentHandle(ctx, "records/abc")

		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("unreferenced handle counts zero", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM medical_records").
			WithArgs("records/def").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		n, err := repo.CountByContentHandle(ctx, "records/def")

		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestRecordPostgres_InsertGrant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	g := model.AccessGrant{
		PrincipalID:   "doctor-1",
		PrincipalKind: model.KindDoctor,
		GrantedAt:     now,
	}

	t.Run("inserts a grant row", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO access_grants").
			WithArgs("rec-1", g.PrincipalID, g.PrincipalKind, g.GrantedAt, nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.InsertGrant(ctx, "rec-1", g)

		assert.NoError(t, err)
	})

	t.Run("unique violation maps to ErrDuplicateGrant", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO access_grants").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "access_grants_unique"})

		err := repo.InsertGrant(ctx, "rec-1", g)

		assert.ErrorIs(t, err, repository.ErrDuplicateGrant)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPostgres_DeleteGrants(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRecordPostgres(db)
	ctx := context.Background()

	t.Run("deletes matching grants", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM access_grants").
			WithArgs("rec-1", "doctor-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		n, err := repo.DeleteGrants(ctx, "rec-1", "doctor-1")

		assert.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("no matching grants is not an error", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM access_grants").
			WithArgs("rec-1", "doctor-9").
			WillReturnResult(sqlmock.NewResult(0, 0))

		n, err := repo.DeleteGrants(ctx, "rec-1", "doctor-9")

		assert.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestPrincipalPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPrincipalPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id", "kind", "name"}).
			AddRow("doctor-1", "Doctor", "Dr. Acula")

		mock.ExpectQuery("SELECT (.+) FROM principals WHERE id = ?").
			WithArgs("doctor-1").
			WillReturnRows(rows)

		p, err := repo.FindByID(ctx, "doctor-1")

		require.NoError(t, err)
		assert.Equal(t, model.KindDoctor, p.Kind)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM principals WHERE id = ?").
			WithArgs("ghost").
			WillReturnError(sql.ErrNoRows)

		p, err := repo.FindByID(ctx, "ghost")

		assert.Nil(t, p)
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}
