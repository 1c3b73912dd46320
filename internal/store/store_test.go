package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore creates a new SQLite store in a temp directory for testing.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Initialize())
	t.Cleanup(func() { st.Close() })
	return st
}

func tagEntry(user string, ts time.Time) *models.LogEntry {
	return &models.LogEntry{
		UserName:   user,
		Operation:  models.OperationTagsRemoved,
		ObjectType: "Product",
		Time:       ts,
		Value: []models.LogItem{
			{ID: "gid://shopify/Product/1", RemovedTags: []string{"sale", "vip"}, Success: true},
			{ID: "2", RemovedTags: nil, Success: false},
		},
	}
}

func TestStore_Initialize(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.Initialize())

	logs, err := st.ListLogs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, logs)

	version, err := st.getSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestStore_InsertAndGetLog(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := tagEntry("alice", ts)
	id, err := st.InsertLog(ctx, entry)
	require.NoError(t, err)
	assert.Equal(t, id, entry.ID)

	got, err := st.GetLog(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserName)
	assert.Equal(t, models.OperationTagsRemoved, got.Operation)
	assert.Equal(t, "Product", got.ObjectType)
	assert.True(t, ts.Equal(got.Time))
	require.Len(t, got.Value, 2)
	assert.Equal(t, []string{"sale", "vip"}, got.Value[0].RemovedTags)
	assert.True(t, got.Value[0].Success)
	assert.False(t, got.Value[1].Success)
}

func TestStore_MetafieldValueRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	entry := &models.LogEntry{
		UserName:   "bob",
		Operation:  models.OperationMetafieldCleared,
		ObjectType: "Order",
		Value: []models.LogItem{{
			ID:      "450789469",
			Data:    &models.MetafieldData{Namespace: "custom", Key: "note", Type: "single_line_text_field", Value: "hi"},
			Success: true,
		}},
	}
	id, err := st.InsertLog(ctx, entry)
	require.NoError(t, err)

	got, err := st.GetLog(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Value[0].Data)
	assert.Equal(t, "custom", got.Value[0].Data.Namespace)
	assert.Equal(t, "hi", got.Value[0].Data.Value)
	assert.False(t, got.Time.IsZero())
}

func TestStore_ListLogsNewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, user := range []string{"a", "b", "c"} {
		_, err := st.InsertLog(ctx, tagEntry(user, base.Add(time.Duration(i)*time.Hour)))
		require.NoError(t, err)
	}

	logs, err := st.ListLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, "c", logs[0].UserName)
	assert.Equal(t, "b", logs[1].UserName)
	assert.Equal(t, "a", logs[2].UserName)
}

func TestStore_DeleteLog(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.InsertLog(ctx, tagEntry("alice", time.Now()))
	require.NoError(t, err)

	require.NoError(t, st.DeleteLog(ctx, id))

	_, err = st.GetLog(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	err = st.DeleteLog(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListLogsNumericItemIDs(t *testing.T) {
	st := newTestStore(t)
	_, err := st.db.Exec(`INSERT INTO logs (user_name, operation, object_type, time, value) VALUES (?, ?, ?, ?, ?)`,
		"legacy", models.OperationTagsRemoved, "Product", time.Now().UTC().Format(time.RFC3339Nano),
		`[{"id":123,"removedTags":["sale"],"success":true},{"id":"gid://shopify/Product/9","removedTags":["vip"]}]`)
	require.NoError(t, err)

	logs, err := st.ListLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Value, 2)
	assert.Equal(t, "123", logs[0].Value[0].ID)
	assert.Equal(t, "gid://shopify/Product/9", logs[0].Value[1].ID)

	got, err := st.GetLog(context.Background(), logs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "123", got.Value[0].ID)
}

func TestStore_MigrateFromV1(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "v1.db")
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_name TEXT NOT NULL,
		operation TEXT NOT NULL,
		time DATETIME DEFAULT CURRENT_TIMESTAMP,
		value JSON NOT NULL
	)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO logs (user_name, operation, value) VALUES ('old', 'Tags-removed', '[{"id":"1","removedTags":["x"],"success":true}]')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	st, err := New(dbPath)
	require.NoError(t, err)
	defer st.Close()

	version, err := st.getSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	require.NoError(t, st.RunMigrations())

	version, err = st.getSchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	logs, err := st.ListLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Product", logs[0].ObjectType)
	assert.Equal(t, []string{"x"}, logs[0].Value[0].RemovedTags)
}

func TestStore_PrepareFreshAndExisting(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "logs.db")
	st, err := New(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Prepare())
	_, err = st.InsertLog(context.Background(), tagEntry("a", time.Now()))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = New(dbPath)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Prepare())

	logs, err := st.ListLogs(context.Background())
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
