// Package store persists validation outcomes in a SQLite metadata database:
// an append-only run history plus a derived latest-status view per
// (node, test).
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Allowed result values.
const (
	ResultPass       = "pass"
	ResultFail       = "fail"
	ResultIncomplete = "incomplete"
)

// Run is one recorded validation outcome for one node.
type Run struct {
	ID        uint   `gorm:"primaryKey"`
	Node      string `gorm:"index:idx_runs_node_test_ts,priority:1;not null"`
	Test      string `gorm:"index:idx_runs_node_test_ts,priority:2;not null"`
	Timestamp int64  `gorm:"index:idx_runs_node_test_ts,priority:3;not null"` // epoch seconds, UTC
	Result    string `gorm:"not null"`
	RunID     string
}

// StatusRow is the latest outcome per (node, test).
type StatusRow struct {
	Node      string
	Test      string
	Timestamp int64
	Result    string
}

// Store wraps the metadata database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the SQLite database at path and migrates
// the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("cannot create store directory %s: %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open store %s: %w", path, err)
	}
	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("store migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

// Add appends one run row. Result must be pass, fail, or incomplete.
func (s *Store) Add(node, test, result, runID string, ts time.Time) error {
	switch result {
	case ResultPass, ResultFail, ResultIncomplete:
	default:
		return fmt.Errorf("result must be %s, %s, or %s; got %q", ResultPass, ResultFail, ResultIncomplete, result)
	}

	row := Run{
		Node:      node,
		Test:      test,
		Timestamp: ts.UTC().Unix(),
		Result:    result,
		RunID:     runID,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("cannot insert run row: %w", err)
	}
	return nil
}

// LatestStatus returns the most recent outcome per (node, test), ordered by
// node then test. nodeFilter narrows to a single node when non-empty.
func (s *Store) LatestStatus(nodeFilter string) ([]StatusRow, error) {
	query := `
		SELECT r.node, r.test, r.timestamp, r.result
		FROM runs r
		JOIN (
			SELECT node, test, MAX(timestamp) AS max_ts
			FROM runs
			GROUP BY node, test
		) x ON r.node = x.node AND r.test = x.test AND r.timestamp = x.max_ts`
	args := []interface{}{}
	if nodeFilter != "" {
		query += " WHERE r.node = ?"
		args = append(args, nodeFilter)
	}
	query += " ORDER BY r.node, r.test"

	var rows []StatusRow
	if err := s.db.Raw(query, args...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("latest-status query failed: %w", err)
	}
	return rows, nil
}

// History returns the most recent limit run rows, newest first.
func (s *Store) History(limit int) ([]Run, error) {
	var rows []Run
	if err := s.db.Order("timestamp DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history query failed: %w", err)
	}
	return rows, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
