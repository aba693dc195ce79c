package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/custseg/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT,
		k INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		inertia REAL NOT NULL,
		iterations INTEGER NOT NULL,
		converged INTEGER NOT NULL,
		customer_count INTEGER NOT NULL,
		diagnostics TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);

	CREATE TABLE IF NOT EXISTS run_customers (
		run_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		customer_id TEXT NOT NULL,
		cluster INTEGER NOT NULL,
		segment TEXT NOT NULL,
		features TEXT NOT NULL,
		PRIMARY KEY (run_id, position),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_run_customers_segment ON run_customers(run_id, segment);

	CREATE TABLE IF NOT EXISTS run_segments (
		run_id TEXT NOT NULL,
		cluster INTEGER NOT NULL,
		segment TEXT NOT NULL,
		customers INTEGER NOT NULL,
		means TEXT NOT NULL,
		PRIMARY KEY (run_id, cluster),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS run_inertia (
		run_id TEXT NOT NULL,
		k INTEGER NOT NULL,
		inertia REAL NOT NULL,
		iterations INTEGER NOT NULL,
		PRIMARY KEY (run_id, k),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	`
	_, err := db.Exec(schema)
	return err
}

// SaveRun inserts a run and all of its rows in a transaction.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *models.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	run.CreatedAt = time.Now()
	if run.Customers != nil {
		run.CustomerCount = len(run.Customers)
	}
	diagnosticsJSON, err := json.Marshal(run.Diagnostics)
	if err != nil {
		return fmt.Errorf("failed to marshal diagnostics: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, source, k, seed, inertia, iterations, converged, customer_count, diagnostics, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.K, run.Seed, run.Inertia, run.Iterations, run.Converged,
		run.CustomerCount, string(diagnosticsJSON), run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	customerStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_customers (run_id, position, customer_id, cluster, segment, features)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer customerStmt.Close()
	for i, c := range run.Customers {
		featuresJSON, err := json.Marshal(c.Features)
		if err != nil {
			return fmt.Errorf("failed to marshal features: %w", err)
		}
		if _, err := customerStmt.ExecContext(ctx, run.ID, i, c.CustomerID, c.Cluster, c.Segment, string(featuresJSON)); err != nil {
			return err
		}
	}

	segmentStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_segments (run_id, cluster, segment, customers, means) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer segmentStmt.Close()
	for _, seg := range run.Segments {
		meansJSON, err := json.Marshal(seg.Means)
		if err != nil {
			return fmt.Errorf("failed to marshal means: %w", err)
		}
		if _, err := segmentStmt.ExecContext(ctx, run.ID, seg.Cluster, seg.Segment, seg.Customers, string(meansJSON)); err != nil {
			return err
		}
	}

	inertiaStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_inertia (run_id, k, inertia, iterations) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer inertiaStmt.Close()
	for _, p := range run.Elbow {
		if _, err := inertiaStmt.ExecContext(ctx, run.ID, p.K, p.Inertia, p.Iterations); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const runColumns = `id, source, k, seed, inertia, iterations, converged, customer_count, diagnostics, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.Run, error) {
	var run models.Run
	var source sql.NullString
	var diagnosticsJSON sql.NullString
	if err := row.Scan(&run.ID, &source, &run.K, &run.Seed, &run.Inertia, &run.Iterations,
		&run.Converged, &run.CustomerCount, &diagnosticsJSON, &run.CreatedAt); err != nil {
		return nil, err
	}
	run.Source = source.String
	if diagnosticsJSON.String != "" {
		if err := json.Unmarshal([]byte(diagnosticsJSON.String), &run.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to unmarshal diagnostics: %w", err)
		}
	}
	return &run, nil
}

// GetRun returns a run with its customers, segments, and elbow series.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if run.Customers, err = s.runCustomers(ctx, id); err != nil {
		return nil, err
	}
	if run.Segments, err = s.runSegments(ctx, id); err != nil {
		return nil, err
	}
	if run.Elbow, err = s.runInertia(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

func (s *SQLiteStorage) runCustomers(ctx context.Context, id string) ([]models.LabeledCustomer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id, cluster, segment, features FROM run_customers WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LabeledCustomer
	for rows.Next() {
		var c models.LabeledCustomer
		var featuresJSON string
		if err := rows.Scan(&c.CustomerID, &c.Cluster, &c.Segment, &featuresJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(featuresJSON), &c.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) runSegments(ctx context.Context, id string) ([]models.SegmentSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT cluster, segment, customers, means FROM run_segments WHERE run_id = ? ORDER BY cluster`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.SegmentSummary
	for rows.Next() {
		var seg models.SegmentSummary
		var meansJSON string
		if err := rows.Scan(&seg.Cluster, &seg.Segment, &seg.Customers, &meansJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(meansJSON), &seg.Means); err != nil {
			return nil, fmt.Errorf("failed to unmarshal means: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) runInertia(ctx context.Context, id string) ([]models.InertiaPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT k, inertia, iterations FROM run_inertia WHERE run_id = ? ORDER BY k`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.InertiaPoint
	for rows.Next() {
		var p models.InertiaPoint
		if err := rows.Scan(&p.K, &p.Inertia, &p.Iterations); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListRuns returns run headers with offset and limit.
func (s *SQLiteStorage) ListRuns(ctx context.Context, offset, limit int) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its rows.
func (s *SQLiteStorage) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// foreign keys are off by default in SQLite, so child rows are removed explicitly
	for _, table := range []string{"run_customers", "run_segments", "run_inertia"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			return err
		}
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return tx.Commit()
}

// CountRuns returns the total number of stored runs.
func (s *SQLiteStorage) CountRuns(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&count)
	return count, err
}

// SizeBytes returns the on-disk size of the database including its WAL files.
func (s *SQLiteStorage) SizeBytes() (int64, error) {
	return DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm")
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
