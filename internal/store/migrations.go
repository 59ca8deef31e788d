package store

import (
	"database/sql"
	"fmt"

	"gopad/internal/logging"
)

// Schema versions:
// v1: kv table only
// v2: session_history for archived transcripts
// v3: session_history.result_kind and has_order
const CurrentSchemaVersion = 3

// Migration adds a column that older databases lack.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations handles tables that exist but predate newer columns.
var pendingMigrations = []Migration{
	{"session_history", "has_order", "INTEGER NOT NULL DEFAULT 0"},
	{"session_history", "result_kind", "TEXT"},
}

// RunMigrations brings an existing database up to CurrentSchemaVersion.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	from := GetSchemaVersion(db)
	if from >= CurrentSchemaVersion {
		logging.StoreDebug("schema at v%d, nothing to migrate", from)
		return nil
	}

	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) || columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("migration %s.%s: %w", m.Table, m.Column, err)
		}
		logging.Store("Migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}

	if err := SetSchemaVersion(db, CurrentSchemaVersion); err != nil {
		return err
	}
	logging.Store("Schema migrated v%d -> v%d (%d columns added)", from, CurrentSchemaVersion, applied)
	return nil
}

// columnExists checks if a column exists in a table using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

// tableExists checks if a table exists in the database.
func tableExists(db *sql.DB, table string) bool {
	var count int
	query := "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?"
	if err := db.QueryRow(query, table).Scan(&count); err != nil {
		logging.StoreDebug("Table existence check failed for %s: %v", table, err)
		return false
	}
	return count > 0
}

// GetSchemaVersion returns the recorded schema version. Databases without a
// version table are inferred from their structure.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_version") {
		var v int
		if err := db.QueryRow("SELECT version FROM schema_version WHERE id = 1").Scan(&v); err == nil {
			return v
		}
	}
	switch {
	case !tableExists(db, "session_history"):
		return 1
	case !columnExists(db, "session_history", "result_kind"):
		return 2
	default:
		return CurrentSchemaVersion
	}
}

// SetSchemaVersion records the schema version.
func SetSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}
	_, err = db.Exec(`INSERT INTO schema_version (id, version) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET version = excluded.version, updated_at = CURRENT_TIMESTAMP`, version)
	if err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return nil
}
