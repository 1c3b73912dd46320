// Package reportstore keeps the reports of finished restore batches so that
// per-job failures stay visible after the consumed log entry is deleted.
package reportstore

import (
	"context"
	"errors"

	"github.com/kilupskalvis/shoprestore/internal/models"
)

// ErrNotFound is returned when a report does not exist.
var ErrNotFound = errors.New("report not found")

// ReportStore defines the contract for batch report persistence.
type ReportStore interface {
	SaveReport(ctx context.Context, r *models.BatchReport) error
	GetReport(ctx context.Context, id string) (*models.BatchReport, error)

	// ListReports returns up to limit reports, newest first. limit <= 0 means all.
	ListReports(ctx context.Context, limit int) ([]*models.BatchReport, error)

	Close() error
}
