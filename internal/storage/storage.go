// Package storage provides a SQLite-backed catalog of scan measurements.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rewired-gh/ratescan/internal/models"
	_ "modernc.org/sqlite"
)

// Storage wraps a SQLite database holding measurement points grouped by dataset.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/ratescan/catalog.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "ratescan", "catalog.db")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS measurements (
			seq            INTEGER PRIMARY KEY AUTOINCREMENT,
			id             TEXT NOT NULL UNIQUE,
			dataset        TEXT NOT NULL,
			control_value  REAL NOT NULL,
			event_count    INTEGER NOT NULL,
			live_time_us   REAL NOT NULL,
			source         TEXT,
			created_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_dataset ON measurements(dataset, seq)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddMeasurement validates and appends a point to its dataset. ID and CreatedAt are
// filled in when empty.
func (s *Storage) AddMeasurement(p *models.MeasurementPoint) error {
	if p.Dataset == "" {
		return fmt.Errorf("invalid measurement: %w: dataset must not be empty", models.ErrConfiguration)
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid measurement: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO measurements
			(id, dataset, control_value, event_count, live_time_us, source, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		p.ID, p.Dataset, p.ControlValue, p.EventCount, p.LiveTimeMicros, p.Source,
		p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert measurement: %w", err)
	}
	return nil
}

// Measurements returns a dataset's points in insertion order.
func (s *Storage) Measurements(dataset string) ([]models.MeasurementPoint, error) {
	rows, err := s.db.Query(`
		SELECT id, dataset, control_value, event_count, live_time_us, source, created_at
		FROM measurements WHERE dataset = ? ORDER BY seq`, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to query measurements: %w", err)
	}
	defer rows.Close()

	points := []models.MeasurementPoint{}
	for rows.Next() {
		var p models.MeasurementPoint
		var source sql.NullString
		var createdAtNano int64
		if err := rows.Scan(&p.ID, &p.Dataset, &p.ControlValue, &p.EventCount, &p.LiveTimeMicros,
			&source, &createdAtNano); err != nil {
			return nil, fmt.Errorf("failed to scan measurement: %w", err)
		}
		p.Source = source.String
		p.CreatedAt = time.Unix(0, createdAtNano)
		points = append(points, p)
	}
	return points, rows.Err()
}

// DatasetInfo summarises one dataset in the catalog.
type DatasetInfo struct {
	Name   string `json:"name" yaml:"name"`
	Points int    `json:"points" yaml:"points"`
}

// Datasets lists every dataset with its point count, ordered by name.
func (s *Storage) Datasets() ([]DatasetInfo, error) {
	rows, err := s.db.Query(`SELECT dataset, COUNT(*) FROM measurements GROUP BY dataset ORDER BY dataset`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	var out []DatasetInfo
	for rows.Next() {
		var d DatasetInfo
		if err := rows.Scan(&d.Name, &d.Points); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDataset removes every point of a dataset and reports how many were removed.
func (s *Storage) DeleteDataset(dataset string) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM measurements WHERE dataset = ?`, dataset)
	if err != nil {
		return 0, fmt.Errorf("failed to delete dataset: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// DeleteMeasurement removes a single point by ID.
func (s *Storage) DeleteMeasurement(id string) error {
	res, err := s.db.Exec(`DELETE FROM measurements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete measurement: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("measurement not found: %s", id)
	}
	return nil
}
