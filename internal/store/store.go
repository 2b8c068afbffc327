// Package store handles SQLite persistence of accepted estimates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/preconsol/internal/casagrande"
	"github.com/verte-zerg/preconsol/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ErrNotFound is returned when no estimate has the requested id.
var ErrNotFound = errors.New("estimate not found")

// timeLayout has a fixed-width fraction so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const (
	pointKindSample = "sample"
	pointKindVirgin = "virgin"
)

// Store wraps SQLite access for estimate records.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS estimates (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			sample TEXT NOT NULL,
			source TEXT NOT NULL,
			degree INTEGER NOT NULL,
			knee_scale TEXT NOT NULL,
			knee_load REAL NOT NULL,
			knee_void_ratio REAL NOT NULL,
			virgin_slope REAL NOT NULL,
			virgin_intercept REAL NOT NULL,
			pressure REAL NOT NULL,
			void_ratio REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS estimate_points (
			estimate_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			seq INTEGER NOT NULL,
			load REAL NOT NULL,
			void_ratio REAL NOT NULL,
			PRIMARY KEY (estimate_id, kind, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_estimates_created_at ON estimates(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_estimates_sample ON estimates(sample);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveEstimate stores an estimate with its sample and virgin-line points. An
// empty ID is filled with a new UUID and a zero CreatedAt with the current
// time. The stored ID is returned.
func (s *Store) SaveEstimate(ctx context.Context, rec model.EstimateRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO estimates (id, created_at, sample, source, degree, knee_scale, knee_load, knee_void_ratio, virgin_slope, virgin_intercept, pressure, void_ratio)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.Sample,
		rec.Source,
		rec.Degree,
		rec.KneeScale,
		rec.KneeLoad,
		rec.KneeVoidRatio,
		rec.VirginSlope,
		rec.VirginIntercept,
		rec.Pressure,
		rec.VoidRatio,
	)
	if err != nil {
		return "", err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO estimate_points (estimate_id, kind, seq, load, void_ratio) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			// Best-effort statement close.
			_ = cerr
		}
	}()
	for kind, pts := range map[string][]casagrande.SamplePoint{pointKindSample: rec.Points, pointKindVirgin: rec.VirginPoints} {
		for i, p := range pts {
			if _, err = stmt.ExecContext(ctx, rec.ID, kind, i, p.AxialLoad, p.VoidRatio); err != nil {
				return "", err
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return rec.ID, nil
}

const estimateColumns = `id, created_at, sample, source, degree, knee_scale, knee_load, knee_void_ratio, virgin_slope, virgin_intercept, pressure, void_ratio`

type scanner interface {
	Scan(dest ...any) error
}

func scanEstimate(row scanner) (model.EstimateRecord, error) {
	var rec model.EstimateRecord
	var createdAt string
	if err := row.Scan(&rec.ID, &createdAt, &rec.Sample, &rec.Source, &rec.Degree, &rec.KneeScale,
		&rec.KneeLoad, &rec.KneeVoidRatio, &rec.VirginSlope, &rec.VirginIntercept, &rec.Pressure, &rec.VoidRatio); err != nil {
		return model.EstimateRecord{}, err
	}
	parsed, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return model.EstimateRecord{}, err
	}
	rec.CreatedAt = parsed
	return rec, nil
}

// ListEstimates returns estimates newest first, without their points.
func (s *Store) ListEstimates(ctx context.Context, cfg model.HistoryConfig) ([]model.EstimateRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if cfg.Sample != "" {
		clauses = append(clauses, "sample = ?")
		args = append(args, cfg.Sample)
	}
	if cfg.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, cfg.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`SELECT %s FROM estimates WHERE %s ORDER BY created_at DESC, id`,
		estimateColumns, strings.Join(clauses, " AND "))
	if cfg.Last > 0 {
		query += " LIMIT ?"
		args = append(args, cfg.Last)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.EstimateRecord
	for rows.Next() {
		rec, err := scanEstimate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// GetEstimate loads one estimate with its points.
func (s *Store) GetEstimate(ctx context.Context, id string) (model.EstimateRecord, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM estimates WHERE id = ?`, estimateColumns), id)
	rec, err := scanEstimate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.EstimateRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.EstimateRecord{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, load, void_ratio FROM estimate_points WHERE estimate_id = ? ORDER BY kind, seq`, id)
	if err != nil {
		return model.EstimateRecord{}, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()
	for rows.Next() {
		var kind string
		var p casagrande.SamplePoint
		if err := rows.Scan(&kind, &p.AxialLoad, &p.VoidRatio); err != nil {
			return model.EstimateRecord{}, err
		}
		switch kind {
		case pointKindSample:
			rec.Points = append(rec.Points, p)
		case pointKindVirgin:
			rec.VirginPoints = append(rec.VirginPoints, p)
		}
	}
	if err := rows.Err(); err != nil {
		return model.EstimateRecord{}, err
	}
	return rec, nil
}
