package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/RyanBlaney/ringdown/logging"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS analyses (
	       trace_id       TEXT NOT NULL,
	       config_key     TEXT NOT NULL,
	       source         TEXT NOT NULL,
	       created_at     INTEGER NOT NULL,
	       complete       INTEGER NOT NULL CHECK (complete IN (0, 1)),
	       frequency_khz  REAL,
	       damping_per_s  REAL,
	       log_decrement  REAL,
	       result_json    BLOB NOT NULL,
	       PRIMARY KEY (trace_id, config_key)
	   );`

	upsertAnalysisSQL = `
    INSERT INTO analyses (
        trace_id, config_key, source, created_at, complete,
        frequency_khz, damping_per_s, log_decrement, result_json
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT (trace_id, config_key) DO UPDATE SET
        source        = excluded.source,
        created_at    = excluded.created_at,
        complete      = excluded.complete,
        frequency_khz = excluded.frequency_khz,
        damping_per_s = excluded.damping_per_s,
        log_decrement = excluded.log_decrement,
        result_json   = excluded.result_json`

	selectAnalysisSQL = `
    SELECT result_json FROM analyses
    WHERE trace_id = ? AND config_key = ?`
)

// initSchema creates the tables and records the schema version.
func initSchema(db *sql.DB, log logging.Logger) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInit, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug("Failed to rollback transaction", logging.Fields{"error": err.Error()})
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return fmt.Errorf("%w: create tables: %v", ErrSchemaInit, err)
	}
	if _, err := tx.Exec(`
        INSERT OR IGNORE INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return fmt.Errorf("%w: record version: %v", ErrSchemaInit, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInit, err)
	}
	committed = true

	log.Debug("Schema initialized", logging.Fields{"version": SchemaVersion})
	return nil
}

// schemaVersion returns the highest recorded version, or 0 for a fresh database.
func schemaVersion(db *sql.DB) (int, error) {
	exists, err := tableExists(db, "schema_versions")
	if err != nil || !exists {
		return 0, err
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: get version: %v", ErrSchemaValidation, err)
	}
	return version, nil
}

func tableExists(db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check table %s: %v", ErrSchemaValidation, name, err)
	}
	return exists, nil
}

// ensureSchema initializes a fresh database and rejects one written by a
// newer version. Cached results are disposable, so an older schema is
// dropped and recreated.
func ensureSchema(db *sql.DB, log logging.Logger) error {
	version, err := schemaVersion(db)
	if err != nil {
		return err
	}

	switch {
	case version == SchemaVersion:
		return nil
	case version > SchemaVersion:
		return fmt.Errorf("%w: database version %d is newer than supported %d",
			ErrSchemaValidation, version, SchemaVersion)
	case version > 0:
		log.Info("Discarding outdated result cache", logging.Fields{
			"from_version": version,
			"to_version":   SchemaVersion,
		})
		if _, err := db.Exec(`DROP TABLE IF EXISTS analyses; DROP TABLE IF EXISTS schema_versions;`); err != nil {
			return fmt.Errorf("%w: drop tables: %v", ErrSchemaInit, err)
		}
	}

	return initSchema(db, log)
}
