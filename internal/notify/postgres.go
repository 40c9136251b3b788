package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// PostgresDispatcher persists notifications to the notifications table, where
// the client polls for them. Insert failures are logged and swallowed.
type PostgresDispatcher struct {
	db *sql.DB
}

// NewPostgresDispatcher creates a dispatcher writing to db.
func NewPostgresDispatcher(db *sql.DB) *PostgresDispatcher {
	return &PostgresDispatcher{db: db}
}

var _ Dispatcher = (*PostgresDispatcher)(nil)

func (d *PostgresDispatcher) Dispatch(ctx context.Context, principalID, message, category string) {
	const q = `
		INSERT INTO notifications (id, principal_id, message, category, is_read, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
	`
	_, err := d.db.ExecContext(ctx, q, uuid.New().String(), principalID, message, category, time.Now().UTC())
	if err != nil {
		logEntry(map[string]any{
			"level":        "error",
			"component":    "notify",
			"event":        "notification_insert_failed",
			"principal_id": principalID,
			"category":     category,
			"error":        err.Error(),
		})
		return
	}
	logEntry(map[string]any{
		"component":    "notify",
		"event":        "notification_dispatched",
		"principal_id": principalID,
		"category":     category,
	})
}
