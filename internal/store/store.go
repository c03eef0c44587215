// Package store persists the prediction audit trail.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// PredictionStatus is the outcome of a prediction request.
type PredictionStatus string

const (
	PredictionSucceeded PredictionStatus = "success"
	PredictionFailed    PredictionStatus = "error"
)

// Prediction is one audited call to the prediction endpoint.
type Prediction struct {
	ID           string           `json:"id"`
	RequestID    string           `json:"requestId,omitempty"`
	ModelVersion string           `json:"modelVersion"`
	Status       PredictionStatus `json:"status"`
	Prediction   float64          `json:"prediction"`
	Confidence   float64          `json:"confidence"`
	FeatureCount int              `json:"featureCount"`
	Features     []float64        `json:"features,omitempty"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Store wraps the SQL database holding prediction records.
type Store struct {
	db     *sql.DB
	driver string
}

// Open initializes the datastore using the supplied DSN/file path and driver.
func Open(dsn string, driver string) (*Store, error) {
	if driver == "" {
		driver = DriverSQLite
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("datastore DSN is required")
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create datastore directory: %w", err)
		}
		conn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn)
		db, err = sql.Open("sqlite", conn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite datastore: %w", err)
		}
		// A single writer avoids SQLITE_BUSY from concurrent audit flushes.
		db.SetMaxOpenConns(1)
	case DriverPostgres:
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres datastore: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported datastore driver: %s", driver)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS predictions (
			id TEXT PRIMARY KEY,
			request_id TEXT,
			model_version TEXT NOT NULL,
			status TEXT NOT NULL,
			prediction DOUBLE PRECISION,
			confidence DOUBLE PRECISION,
			feature_count INTEGER NOT NULL,
			features TEXT,
			error TEXT,
			created_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_status ON predictions(status);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema apply failed: %w", err)
		}
	}
	return nil
}

// Driver reports the SQL driver in use.
func (s *Store) Driver() string {
	return s.driver
}

// Close shuts down the datastore.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordPrediction inserts an audit record. CreatedAt defaults to now.
func (s *Store) RecordPrediction(ctx context.Context, p *Prediction) error {
	if p.ID == "" {
		return errors.New("prediction id required")
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	features, err := json.Marshal(p.Features)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO predictions
		(id, request_id, model_version, status, prediction, confidence, feature_count, features, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.RequestID, p.ModelVersion, string(p.Status), p.Prediction, p.Confidence, p.FeatureCount,
		string(features), p.Error, p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert prediction %s: %w", p.ID, err)
	}
	return nil
}

// ListPredictions returns recent records sorted from newest to oldest.
func (s *Store) ListPredictions(ctx context.Context, limit int) ([]Prediction, error) {
	query := `SELECT id, request_id, model_version, status, prediction, confidence, feature_count, features, error, created_at
		FROM predictions ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Prediction
	for rows.Next() {
		var (
			p         Prediction
			requestID sql.NullString
			features  sql.NullString
			errMsg    sql.NullString
			status    string
			createdAt int64
		)
		if err := rows.Scan(&p.ID, &requestID, &p.ModelVersion, &status, &p.Prediction, &p.Confidence,
			&p.FeatureCount, &features, &errMsg, &createdAt); err != nil {
			return nil, err
		}
		p.RequestID = requestID.String
		p.Status = PredictionStatus(status)
		p.Error = errMsg.String
		p.CreatedAt = time.UnixMilli(createdAt).UTC()
		if features.Valid {
			_ = json.Unmarshal([]byte(features.String), &p.Features)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PruneBefore deletes records created before cutoff and returns how many
// were removed.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM predictions WHERE created_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune predictions: %w", err)
	}
	return res.RowsAffected()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
