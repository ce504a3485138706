// Package store caches the cleaned grid dataset and records generated
// report runs in a local sqlite database.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the database at path and applies any pending
// schema migrations.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{sqldb}
	if err := db.MigrateUp(); err != nil {
		sqldb.Close()
		return nil, err
	}
	return db, nil
}

// GridCell is one cleaned 250m grid cell.
type GridCell struct {
	GridID     string
	Population float64
	Easting    float64 // NZTM2000 metres
	Northing   float64 // NZTM2000 metres
	DensityKm2 float64
}

// ReplaceCells replaces the cached dataset with the given cells in one
// transaction, so readers never observe a half-written cache.
func (db *DB) ReplaceCells(cells []GridCell) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM grid_cells`); err != nil {
		return fmt.Errorf("clear grid cells: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO grid_cells (grid_id, population, easting, northing, density_km2)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range cells {
		if _, err := stmt.Exec(c.GridID, c.Population, c.Easting, c.Northing, c.DensityKm2); err != nil {
			return fmt.Errorf("insert cell %s: %w", c.GridID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Cells returns all cached cells ordered by grid id.
func (db *DB) Cells() ([]GridCell, error) {
	rows, err := db.Query(`
		SELECT grid_id, population, easting, northing, density_km2
		FROM grid_cells
		ORDER BY grid_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query grid cells: %w", err)
	}
	defer rows.Close()

	var cells []GridCell
	for rows.Next() {
		var c GridCell
		if err := rows.Scan(&c.GridID, &c.Population, &c.Easting, &c.Northing, &c.DensityKm2); err != nil {
			return nil, fmt.Errorf("scan grid cell: %w", err)
		}
		cells = append(cells, c)
	}
	return cells, rows.Err()
}

// CellCount returns the number of cached cells.
func (db *DB) CellCount() (int, error) {
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM grid_cells`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count grid cells: %w", err)
	}
	return n, nil
}

// PopulationTotals returns the sum, mean, max and min population over the
// cached cells.
func (db *DB) PopulationTotals() (sum, mean, max, min float64, err error) {
	row := db.QueryRow(`
		SELECT COALESCE(SUM(population), 0),
		       COALESCE(AVG(population), 0),
		       COALESCE(MAX(population), 0),
		       COALESCE(MIN(population), 0)
		FROM grid_cells
	`)
	if err := row.Scan(&sum, &mean, &max, &min); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("population totals: %w", err)
	}
	return sum, mean, max, min, nil
}

// ReportRun records one generated PDF report.
type ReportRun struct {
	ID           int
	RunID        string // timestamp-and-uuid based run id
	PDFPath      string
	ChartDir     string
	FeatureCount int
	ChunkCount   int
	ModelName    string // LLM model used for narrative text, or "disabled"
	CreatedAt    time.Time
}

// InsertReportRun records a generated report and fills in its row id.
func (db *DB) InsertReportRun(run *ReportRun) error {
	res, err := db.Exec(`
		INSERT INTO report_runs (run_id, pdf_path, chart_dir, feature_count, chunk_count, model_name)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.RunID, run.PDFPath, run.ChartDir, run.FeatureCount, run.ChunkCount, run.ModelName)
	if err != nil {
		return fmt.Errorf("insert report run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get report run id: %w", err)
	}
	run.ID = int(id)
	return nil
}

// RecentReportRuns returns the most recent runs, newest first.
func (db *DB) RecentReportRuns(limit int) ([]ReportRun, error) {
	rows, err := db.Query(`
		SELECT id, run_id, pdf_path, chart_dir, feature_count, chunk_count, model_name, created_at
		FROM report_runs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query report runs: %w", err)
	}
	defer rows.Close()

	var runs []ReportRun
	for rows.Next() {
		var r ReportRun
		if err := rows.Scan(&r.ID, &r.RunID, &r.PDFPath, &r.ChartDir, &r.FeatureCount, &r.ChunkCount, &r.ModelName, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan report run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
