package reportstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketReports = []byte("reports")
	bucketIndex   = []byte("report_index") // maps report id -> time-ordered key
)

// BboltStore implements ReportStore using bbolt.
type BboltStore struct {
	db *bolt.DB
}

// NewBboltStore opens or creates a bbolt database at the given path.
func NewBboltStore(dbPath string) (*BboltStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create report directory: %w", err)
		}
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open report database: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketReports, bucketIndex} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &BboltStore{db: db}, nil
}

// Close releases the bbolt database.
func (s *BboltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// reportKey orders reports by finish time; the id suffix keeps keys unique.
func reportKey(r *models.BatchReport) []byte {
	return []byte(r.FinishedAt.UTC().Format("20060102T150405.000000000") + ":" + r.ID)
}

// SaveReport stores a report, replacing any previous report with the same id.
func (s *BboltStore) SaveReport(_ context.Context, r *models.BatchReport) error {
	if r.ID == "" {
		return fmt.Errorf("report id is required")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		reports := tx.Bucket(bucketReports)
		index := tx.Bucket(bucketIndex)

		if old := index.Get([]byte(r.ID)); old != nil {
			if err := reports.Delete(old); err != nil {
				return fmt.Errorf("replace report: %w", err)
			}
		}

		key := reportKey(r)
		if err := reports.Put(key, data); err != nil {
			return fmt.Errorf("store report: %w", err)
		}
		return index.Put([]byte(r.ID), key)
	})
}

// GetReport retrieves a report by id. Returns ErrNotFound if missing.
func (s *BboltStore) GetReport(_ context.Context, id string) (*models.BatchReport, error) {
	var report *models.BatchReport
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(bucketIndex).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		data := tx.Bucket(bucketReports).Get(key)
		if data == nil {
			return ErrNotFound
		}
		report = &models.BatchReport{}
		return json.Unmarshal(data, report)
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ListReports walks the reports bucket backwards from the newest key.
func (s *BboltStore) ListReports(_ context.Context, limit int) ([]*models.BatchReport, error) {
	reports := []*models.BatchReport{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketReports).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(reports) >= limit {
				break
			}
			var r models.BatchReport
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal report: %w", err)
			}
			reports = append(reports, &r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reports, nil
}

var _ ReportStore = (*BboltStore)(nil)
