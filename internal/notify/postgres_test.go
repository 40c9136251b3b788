package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresDispatcher_Dispatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d := NewPostgresDispatcher(db)
	ctx := context.Background()

	t.Run("inserts a notification row", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs(sqlmock.AnyArg(), "doctor-1", "Access granted", CategoryGeneral, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		d.Dispatch(ctx, "doctor-1", "Access granted", CategoryGeneral)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insert failure is swallowed", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO notifications").
			WillReturnError(errors.New("db down"))

		// Must not panic or propagate anything.
		d.Dispatch(ctx, "doctor-1", "Access granted", CategoryGeneral)

		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
