// Package store caches analysis results in SQLite, keyed on the trace
// content hash and the exact analysis parameters.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/RyanBlaney/ringdown/analysis"
	"github.com/RyanBlaney/ringdown/logging"
)

const defaultDirPerm = 0o755

var (
	ErrInvalidDBPath    = errors.New("store: invalid database path")
	ErrStorageInit      = errors.New("store: initialization failed")
	ErrSchemaInit       = errors.New("store: schema initialization failed")
	ErrSchemaValidation = errors.New("store: schema validation failed")
	ErrStorageAccess    = errors.New("store: storage access failed")
)

// Repository is a result cache.
type Repository interface {
	Get(ctx context.Context, traceID string, cfg *analysis.Config) (*analysis.Result, bool, error)
	Put(ctx context.Context, result *analysis.Result) error
	Close() error
}

type repository struct {
	db     *sql.DB
	path   string
	logger logging.Logger
}

// NewRepository opens (creating if needed) the cache database at path.
func NewRepository(path string) (Repository, error) {
	if path == "" {
		return nil, ErrInvalidDBPath
	}

	logger := logging.WithFields(logging.Fields{
		"component": "result_store",
		"path":      path,
	})

	if err := os.MkdirAll(filepath.Dir(path), defaultDirPerm); err != nil {
		return nil, fmt.Errorf("%w: create directory: %v", ErrStorageInit, err)
	}

	dsn := path + "?_journal=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", ErrStorageInit, err)
	}

	if err := ensureSchema(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorageInit, err)
	}

	logger.Debug("Result store opened", logging.Fields{"schema_version": SchemaVersion})

	return &repository{db: db, path: path, logger: logger}, nil
}

// Get returns the cached result for the trace under cfg, if any.
func (r *repository) Get(ctx context.Context, traceID string, cfg *analysis.Config) (*analysis.Result, bool, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, selectAnalysisSQL, traceID, cfg.Key()).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: select: %v", ErrStorageAccess, err)
	}

	result := &analysis.Result{}
	if err := json.Unmarshal(blob, result); err != nil {
		return nil, false, fmt.Errorf("%w: decode cached result: %v", ErrStorageAccess, err)
	}
	return result, true, nil
}

// Put stores result, replacing any previous entry for the same key.
func (r *repository) Put(ctx context.Context, result *analysis.Result) error {
	if result == nil || result.TraceID == "" {
		return fmt.Errorf("%w: result without trace id", ErrStorageAccess)
	}

	blob, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("%w: encode result: %v", ErrStorageAccess, err)
	}

	var freq, damping, decrement sql.NullFloat64
	if m := result.Metrics; m != nil {
		freq = sql.NullFloat64{Float64: m.FrequencyKhz, Valid: true}
		damping = sql.NullFloat64{Float64: m.DampingCoefficientPerSecond, Valid: true}
		decrement = sql.NullFloat64{Float64: m.LogDecrement, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, upsertAnalysisSQL,
		result.TraceID,
		result.Config.Key(),
		result.Source,
		time.Now().Unix(),
		boolToInt(result.Complete()),
		freq, damping, decrement,
		blob,
	)
	if err != nil {
		return fmt.Errorf("%w: insert: %v", ErrStorageAccess, err)
	}
	return nil
}

func (r *repository) Close() error {
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		r.logger.Warn("WAL checkpoint failed", logging.Fields{"error": err.Error()})
	}
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("store: close database: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
