package migration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_principals",
		SQL: `CREATE TABLE IF NOT EXISTS principals (
  id   TEXT PRIMARY KEY,
  kind TEXT NOT NULL CHECK (kind IN ('Patient', 'Doctor')),
  name TEXT NOT NULL
);`,
	},
	{
		Name: "create_table_medical_records",
		SQL: `CREATE TABLE IF NOT EXISTS medical_records (
  id             UUID        PRIMARY KEY,
  owner_id       TEXT        NOT NULL REFERENCES principals (id),
  record_type    TEXT        NOT NULL CHECK (record_type IN ('prescription', 'report', 'bill')),
  name           TEXT        NOT NULL,
  description    TEXT        NOT NULL DEFAULT '',
  content_handle TEXT        NOT NULL,
  integrity_hash TEXT        NOT NULL,
  uploaded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		// The unique constraint carries the no-duplicate-grant invariant;
		// a violation surfaces as a conflict, never a silent merge.
		Name: "create_table_access_grants",
		SQL: `CREATE TABLE IF NOT EXISTS access_grants (
  record_id      UUID        NOT NULL REFERENCES medical_records (id),
  principal_id   TEXT        NOT NULL,
  principal_kind TEXT        NOT NULL CHECK (principal_kind IN ('Patient', 'Doctor')),
  granted_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  expires_at     TIMESTAMPTZ,
  CONSTRAINT access_grants_unique UNIQUE (record_id, principal_id, principal_kind)
);`,
	},
	{
		Name: "create_table_notifications",
		SQL: `CREATE TABLE IF NOT EXISTS notifications (
  id           UUID        PRIMARY KEY,
  principal_id TEXT        NOT NULL,
  message      TEXT        NOT NULL,
  category     TEXT        NOT NULL CHECK (category IN ('appointment', 'report', 'general')),
  is_read      BOOLEAN     NOT NULL DEFAULT false,
  created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_medical_records_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_medical_records_owner ON medical_records (owner_id);`,
	},
	{
		Name: "create_index_medical_records_uploaded_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_medical_records_uploaded_at ON medical_records (uploaded_at DESC);`,
	},
	{
		Name: "create_index_access_grants_principal",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_access_grants_principal ON access_grants (principal_id);`,
	},
	{
		Name: "create_index_notifications_principal",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_notifications_principal ON notifications (principal_id, is_read);`,
	},
}

// EnsureMigrated checks if the 'medical_records' table exists and runs the
// migration steps if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, loc *time.Location, dbHost string) error {
	start := time.Now()

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   dbHost,
	})

	var exists bool
	query := "SELECT to_regclass('public.medical_records') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		logJSON(loc, map[string]any{
			"component":     "database",
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       dbHost,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		logJSON(loc, map[string]any{
			"component":   "database",
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     dbHost,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	logJSON(loc, map[string]any{
		"component": "database",
		"event":     "db_migration_start",
		"status":    "in_progress",
		"db_host":   dbHost,
	})

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			logJSON(loc, map[string]any{
				"component":        "database",
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          dbHost,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		logJSON(loc, map[string]any{
			"component":        "database",
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          dbHost,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	logJSON(loc, map[string]any{
		"component":   "database",
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     dbHost,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}

func logJSON(loc *time.Location, data map[string]any) {
	data["ts"] = time.Now().In(loc).Format(time.RFC3339Nano)
	if _, ok := data["level"]; !ok {
		if data["status"] == "error" {
			data["level"] = "error"
		} else {
			data["level"] = "info"
		}
	}

	b, err := json.Marshal(data)
	if err != nil {
		log.Printf("failed to marshal migration log: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
