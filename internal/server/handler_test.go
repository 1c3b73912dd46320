package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/reportstore"
	"github.com/kilupskalvis/shoprestore/internal/restore"
	"github.com/kilupskalvis/shoprestore/internal/shopify"
	"github.com/kilupskalvis/shoprestore/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "test-api-token"

// memLogStore implements LogStore for tests.
type memLogStore struct {
	mu        sync.Mutex
	entries   []models.LogEntry
	deleted   []int64
	deleteErr error
	pingErr   error
}

func (m *memLogStore) ListLogs(_ context.Context) ([]models.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.LogEntry(nil), m.entries...), nil
}

func (m *memLogStore) DeleteLog(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for i, e := range m.entries {
		if e.ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return errors.New("record to delete does not exist")
}

func (m *memLogStore) Ping(_ context.Context) error { return m.pingErr }

func (m *memLogStore) deletedIDs() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.deleted...)
}

type testEnv struct {
	server  *httptest.Server
	logs    *memLogStore
	mock    *shopify.MockClient
	view    *view.Controller
	reports *reportstore.BboltStore
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reports, err := reportstore.NewBboltStore(filepath.Join(t.TempDir(), "reports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { reports.Close() })

	logs := &memLogStore{entries: []models.LogEntry{
		{ID: 1, Operation: models.OperationTagsRemoved, ObjectType: "Product", Time: time.Now(),
			Value: []models.LogItem{{ID: "gid://shopify/Product/1", RemovedTags: []string{"sale"}}}},
		{ID: 2, Operation: models.OperationMetafieldCleared, ObjectType: "PRODUCT", Time: time.Now(),
			Value: []models.LogItem{{ID: "9"}}},
	}}
	mock := shopify.NewMockClient()
	orch := restore.NewOrchestrator(restore.Options{
		Lookup: mock, Mutator: mock, Deleter: logs, Reports: reports, Logger: logger,
	})
	ctrl := view.NewController(logs, orch, time.Millisecond, logger)

	cfg := DefaultServerConfig()
	cfg.APIToken = testToken
	handler, cleanup := Handler(&Deps{
		Logs: logs, Restorer: orch, Counter: mock, View: ctrl, Reports: reports,
	}, cfg, logger)
	t.Cleanup(cleanup)

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, logs: logs, mock: mock, view: ctrl, reports: reports}
}

func (e *testEnv) do(t *testing.T, method, path string, form url.Values) (*http.Response, map[string]any) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, e.server.URL+path, body)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), string(data))
	}
	return resp, out
}

func firstErrorMessage(t *testing.T, out map[string]any) string {
	t.Helper()
	errs, ok := out["errors"].([]any)
	require.True(t, ok, "errors missing: %v", out)
	require.NotEmpty(t, errs)
	return errs[0].(map[string]any)["message"].(string)
}

func TestHealthz(t *testing.T) {
	env := setupTestServer(t)
	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyz_StoreDown(t *testing.T) {
	env := setupTestServer(t)
	env.logs.pingErr = errors.New("closed")
	resp, err := http.Get(env.server.URL + "/readyz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupTestServer(t)
	resp, err := http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuth_MissingAndInvalidToken(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Get(env.server.URL + "/api/logs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/logs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestListLogs(t *testing.T) {
	env := setupTestServer(t)
	resp, out := env.do(t, http.MethodGet, "/api/logs", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Len(t, out["logs"], 2)
}

func TestDeleteLog_InvalidRowID(t *testing.T) {
	env := setupTestServer(t)
	for _, v := range []string{"abc", "", "0", "-3", "1.5"} {
		resp, out := env.do(t, http.MethodPost, "/api/logs/delete", url.Values{"rowId": {v}})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, v)
		assert.Equal(t, false, out["success"])
		assert.Equal(t, "Invalid or missing rowId", out["message"])
	}
	assert.Empty(t, env.logs.deletedIDs())
}

func TestDeleteLog(t *testing.T) {
	env := setupTestServer(t)

	resp, out := env.do(t, http.MethodPost, "/api/logs/delete", url.Values{"rowId": {"1"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])

	resp, out = env.do(t, http.MethodPost, "/api/logs/delete", url.Values{"rowId": {"1"}})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Delete failed", out["message"])
	assert.NotEmpty(t, out["error"])
}

func restoreForm(rows string) url.Values {
	return url.Values{"rows": {rows}}
}

func TestRestoreRow_TagSuccess(t *testing.T) {
	env := setupTestServer(t)
	env.mock.TagObjects["Product/123"] = "gid://shopify/Product/123"

	resp, out := env.do(t, http.MethodPost, "/api/restore",
		restoreForm(`[{"id":"123","objectType":"Product","tags":["sale","vip"]}]`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	require.Len(t, env.mock.TagsAdded, 1)
	assert.Equal(t, []string{"sale", "vip"}, env.mock.TagsAdded[0].Tags)
	assert.Empty(t, env.logs.deletedIDs())
}

func TestRestoreRow_Messages(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name string
		rows string
		want string
	}{
		{"no rows", `[]`, "No row data provided"},
		{"missing field", ``, "No row data provided"},
		{"null row", `[null]`, "No row data provided"},
		{"neither shape", `[{"id":"gid://shopify/Product/1","objectType":"Product"}]`, "Invalid restore request. No tags or metafields present."},
		{"unresolved", `[{"id":"55","objectType":"ORDER","namespace":"n","key":"k"}]`, "Unable to resolve Shopify ID"},
		{"empty id", `[{"id":"","tags":["a"]}]`, "Unable to resolve Shopify ID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, out := env.do(t, http.MethodPost, "/api/restore", restoreForm(tt.rows))
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tt.want, firstErrorMessage(t, out))
		})
	}
}

func TestRestoreRow_NumericID(t *testing.T) {
	env := setupTestServer(t)
	env.mock.TagObjects["Product/123"] = "gid://shopify/Product/123"

	resp, out := env.do(t, http.MethodPost, "/api/restore",
		restoreForm(`[{"id":123,"objectType":"Product","tags":["sale"]}]`))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Contains(t, env.mock.CallLog(), "lookupTag Product/123")
	require.Len(t, env.mock.TagsAdded, 1)
	assert.Equal(t, "gid://shopify/Product/123", env.mock.TagsAdded[0].ID)
}

func TestRestoreRow_ResolutionFailure(t *testing.T) {
	env := setupTestServer(t)
	env.mock.LookupErr = errors.New("lookup exploded")

	_, out := env.do(t, http.MethodPost, "/api/restore",
		restoreForm(`[{"id":"5","objectType":"Product","tags":["a"]}]`))
	assert.Equal(t, "ID resolution failed: lookup exploded", firstErrorMessage(t, out))
}

func TestRestoreRow_UserErrorsPassedThrough(t *testing.T) {
	env := setupTestServer(t)
	env.mock.MetafieldUserErrors["gid://shopify/Product/1"] = []models.UserError{
		{Field: []string{"metafields", "0", "value"}, Message: "is invalid", Code: "INVALID_VALUE"},
	}

	_, out := env.do(t, http.MethodPost, "/api/restore",
		restoreForm(`[{"id":"gid://shopify/Product/1","namespace":"custom","key":"note","type":"single_line_text_field","value":"x"}]`))
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "is invalid", firstErrorMessage(t, out))
}

func TestRestoreRow_InvalidJSON(t *testing.T) {
	env := setupTestServer(t)
	resp, out := env.do(t, http.MethodPost, "/api/restore", restoreForm(`[{`))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, out["success"])
}

func TestCount_ShopMakesNoCall(t *testing.T) {
	env := setupTestServer(t)
	resp, out := env.do(t, http.MethodPost, "/api/count", url.Values{"resource": {"shop"}, "tags": {"a,b"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "shop", out["resource"])
	assert.Equal(t, float64(0), out["tagCount"])
	assert.Empty(t, env.mock.CallLog())
}

func TestCount_TagFormats(t *testing.T) {
	env := setupTestServer(t)
	env.mock.Counts["products"] = map[string]int{"sale": 2, "vip": 5}

	_, out := env.do(t, http.MethodPost, "/api/count", url.Values{"resource": {"products"}, "tags": {`["sale","vip"]`}})
	assert.Equal(t, float64(7), out["tagCount"])

	_, out = env.do(t, http.MethodPost, "/api/count", url.Values{"resource": {"products"}, "tags": {"sale, vip"}})
	assert.Equal(t, float64(7), out["tagCount"])

	_, out = env.do(t, http.MethodPost, "/api/count", url.Values{"resource": {"products"}, "tags": {`["sale"`}})
	assert.Equal(t, float64(0), out["tagCount"])
}

func TestCount_ManyTags(t *testing.T) {
	env := setupTestServer(t)
	counts := map[string]int{}
	tags := make([]string, 300)
	for i := range tags {
		tags[i] = "tag" + strconv.Itoa(i)
		counts[tags[i]] = 1
	}
	env.mock.Counts["customers"] = counts

	resp, out := env.do(t, http.MethodPost, "/api/count", url.Values{"resource": {"customers"}, "tags": {strings.Join(tags, ",")}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, float64(300), out["tagCount"])

	resp, _ = env.do(t, http.MethodPost, "/api/count", url.Values{"resource": {"customers"}, "tags": {strings.Repeat("x", 256)}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestViewFlow(t *testing.T) {
	env := setupTestServer(t)

	resp, out := env.do(t, http.MethodPost, "/api/view/load", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, out["logs"], 2)

	resp, out = env.do(t, http.MethodPost, "/api/view/rows/0/toggle", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), out["selectedRow"])

	resp, _ = env.do(t, http.MethodPost, "/api/view/rows/x/toggle", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/view/confirm", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, out = env.do(t, http.MethodPost, "/api/view/logs/1/restore", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	modal := out["modal"].(map[string]any)
	assert.Equal(t, true, modal["isOpen"])
	assert.Equal(t, "Confirm Restore", modal["title"])

	resp, _ = env.do(t, http.MethodPost, "/api/view/confirm", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	select {
	case <-env.view.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not complete")
	}

	_, out = env.do(t, http.MethodGet, "/api/view", nil)
	assert.Equal(t, "Restore Completed", out["banner"])
	assert.Len(t, out["logs"], 1)
	assert.Equal(t, []int64{1}, env.logs.deletedIDs())

	resp, out = env.do(t, http.MethodPost, "/api/view/dismiss", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, out["popup"])

	resp, out = env.do(t, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reports := out["reports"].([]any)
	require.Len(t, reports, 1)
	id := reports[0].(map[string]any)["id"].(string)

	resp, out = env.do(t, http.MethodGet, "/api/reports/"+id, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), out["succeeded"])

	resp, _ = env.do(t, http.MethodGet, "/api/reports/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestViewCancelAndUnknownEntry(t *testing.T) {
	env := setupTestServer(t)
	env.do(t, http.MethodPost, "/api/view/load", nil)

	resp, _ := env.do(t, http.MethodPost, "/api/view/logs/77/restore", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	env.do(t, http.MethodPost, "/api/view/logs/2/restore", nil)
	_, out := env.do(t, http.MethodPost, "/api/view/cancel", nil)
	assert.Equal(t, false, out["modal"].(map[string]any)["isOpen"])
	assert.Empty(t, env.mock.CallLog())
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	logs := &memLogStore{}
	cfg := &ServerConfig{RequestsPerMinute: 2}
	handler, cleanup := Handler(&Deps{Logs: logs}, cfg, logger)
	defer cleanup()
	ts := httptest.NewServer(handler)
	defer ts.Close()

	var last int
	for i := 0; i < 3; i++ {
		resp, err := http.Get(ts.URL + "/api/logs")
		require.NoError(t, err)
		resp.Body.Close()
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
