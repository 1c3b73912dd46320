package remote

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/restore"
	"github.com/kilupskalvis/shoprestore/internal/view"
)

// RetryConfig configures retry behavior for transient errors.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		JitterFraction: 0.25,
	}
}

// RetryClient wraps a ServiceClient with automatic retry on transient errors.
// Only reads are retried; calls that change state run once.
type RetryClient struct {
	inner  ServiceClient
	config *RetryConfig
}

// NewRetryClient creates a RetryClient that wraps the given ServiceClient.
func NewRetryClient(inner ServiceClient, cfg *RetryConfig) *RetryClient {
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	return &RetryClient{inner: inner, config: cfg}
}

// isTransient returns true for errors that are worth retrying.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Status >= 500 || re.Status == http.StatusTooManyRequests
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true // network errors are transient
}

// backoff computes the delay for the given attempt with jitter.
func (rc *RetryClient) backoff(attempt int) time.Duration {
	base := float64(rc.config.InitialBackoff) * math.Pow(2, float64(attempt))
	if base > float64(rc.config.MaxBackoff) {
		base = float64(rc.config.MaxBackoff)
	}
	jitter := base * rc.config.JitterFraction * (rand.Float64()*2 - 1) // +/- jitter
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// sleep waits for the given duration or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retry executes fn with retry logic. Only retries transient errors.
func (rc *RetryClient) retry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= rc.config.MaxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < rc.config.MaxRetries {
			d := rc.backoff(attempt)
			if err := sleep(ctx, d); err != nil {
				return fmt.Errorf("%s: %w (retry cancelled)", operation, lastErr)
			}
		}
	}
	return fmt.Errorf("%s: %w (after %d retries)", operation, lastErr, rc.config.MaxRetries)
}

// --- Reads go through retry; writes are delegated once ---

func (rc *RetryClient) ListLogs(ctx context.Context) (logs []models.LogEntry, err error) {
	err = rc.retry(ctx, "list logs", func() error {
		logs, err = rc.inner.ListLogs(ctx)
		return err
	})
	return
}

func (rc *RetryClient) DeleteLog(ctx context.Context, id int64) error {
	return rc.inner.DeleteLog(ctx, id)
}

func (rc *RetryClient) RestoreRow(ctx context.Context, row restore.Row) (*RestoreResult, error) {
	// Restores are never retried.
	return rc.inner.RestoreRow(ctx, row)
}

func (rc *RetryClient) Count(ctx context.Context, resource string, tags []string) (resp *CountResult, err error) {
	err = rc.retry(ctx, "count", func() error {
		resp, err = rc.inner.Count(ctx, resource, tags)
		return err
	})
	return
}

func (rc *RetryClient) ViewSnapshot(ctx context.Context) (s *view.Snapshot, err error) {
	err = rc.retry(ctx, "view snapshot", func() error {
		s, err = rc.inner.ViewSnapshot(ctx)
		return err
	})
	return
}

func (rc *RetryClient) LoadView(ctx context.Context) (s *view.Snapshot, err error) {
	err = rc.retry(ctx, "load view", func() error {
		s, err = rc.inner.LoadView(ctx)
		return err
	})
	return
}

func (rc *RetryClient) RequestRestore(ctx context.Context, entryID int64) (*view.Snapshot, error) {
	return rc.inner.RequestRestore(ctx, entryID)
}

func (rc *RetryClient) ConfirmRestore(ctx context.Context) (*view.Snapshot, error) {
	return rc.inner.ConfirmRestore(ctx)
}

func (rc *RetryClient) CancelRestore(ctx context.Context) (*view.Snapshot, error) {
	return rc.inner.CancelRestore(ctx)
}

func (rc *RetryClient) DismissRestore(ctx context.Context) (*view.Snapshot, error) {
	return rc.inner.DismissRestore(ctx)
}

func (rc *RetryClient) ListReports(ctx context.Context, limit int) (reports []*models.BatchReport, err error) {
	err = rc.retry(ctx, "list reports", func() error {
		reports, err = rc.inner.ListReports(ctx, limit)
		return err
	})
	return
}

func (rc *RetryClient) GetReport(ctx context.Context, id string) (r *models.BatchReport, err error) {
	err = rc.retry(ctx, "get report", func() error {
		r, err = rc.inner.GetReport(ctx, id)
		return err
	})
	return
}

var _ ServiceClient = (*RetryClient)(nil)
