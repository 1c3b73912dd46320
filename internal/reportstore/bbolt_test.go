package reportstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BboltStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "reports.db")
	s, err := NewBboltStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id string, finished time.Time) *models.BatchReport {
	return &models.BatchReport{
		ID:         id,
		EntryID:    7,
		Operation:  models.OperationTagsRemoved,
		StartedAt:  finished.Add(-time.Second),
		FinishedAt: finished,
		Total:      2,
		Succeeded:  1,
		Failed:     1,
		Outcomes: []models.JobOutcome{
			{Index: 0, ItemID: "1", Kind: models.JobKindTag, Success: true},
			{Index: 1, ItemID: "2", Kind: models.JobKindTag, Errors: []models.UserError{{Field: []string{"tags"}, Message: "invalid tag"}}},
		},
	}
}

func TestBboltStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetReport(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	r := report("r1", time.Now())
	require.NoError(t, s.SaveReport(ctx, r))

	got, err := s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.EntryID)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Failures(), 1)
	assert.Equal(t, "invalid tag", got.Failures()[0].Errors[0].Message)
}

func TestBboltStore_SaveRequiresID(t *testing.T) {
	s := newTestStore(t)
	err := s.SaveReport(context.Background(), &models.BatchReport{})
	assert.Error(t, err)
}

func TestBboltStore_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := report("r1", time.Now())
	require.NoError(t, s.SaveReport(ctx, r))

	r.DeleteErr = "delete failed"
	r.FinishedAt = r.FinishedAt.Add(time.Minute)
	require.NoError(t, s.SaveReport(ctx, r))

	all, err := s.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "delete failed", all[0].DeleteErr)
}

func TestBboltStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveReport(ctx, report(fmt.Sprintf("r%d", i), base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := s.ListReports(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "r4", all[0].ID)
	assert.Equal(t, "r0", all[4].ID)

	limited, err := s.ListReports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "r4", limited[0].ID)
	assert.Equal(t, "r3", limited[1].ID)
}
