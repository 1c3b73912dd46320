package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/restore"
	"github.com/kilupskalvis/shoprestore/internal/view"
)

// ServiceClient defines the contract for communicating with a shoprestore server.
type ServiceClient interface {
	ListLogs(ctx context.Context) ([]models.LogEntry, error)
	DeleteLog(ctx context.Context, id int64) error
	RestoreRow(ctx context.Context, row restore.Row) (*RestoreResult, error)
	Count(ctx context.Context, resource string, tags []string) (*CountResult, error)

	ViewSnapshot(ctx context.Context) (*view.Snapshot, error)
	LoadView(ctx context.Context) (*view.Snapshot, error)
	RequestRestore(ctx context.Context, entryID int64) (*view.Snapshot, error)
	ConfirmRestore(ctx context.Context) (*view.Snapshot, error)
	CancelRestore(ctx context.Context) (*view.Snapshot, error)
	DismissRestore(ctx context.Context) (*view.Snapshot, error)

	ListReports(ctx context.Context, limit int) ([]*models.BatchReport, error)
	GetReport(ctx context.Context, id string) (*models.BatchReport, error)
}

// HTTPClient implements ServiceClient over HTTP.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTP-based service client.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

func (c *HTTPClient) apiURL(path string) string {
	return c.baseURL + "/api" + path
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	return resp, nil
}

// doForm sends form fields (or no body when form is nil) and decodes the JSON reply.
func (c *HTTPClient) doForm(ctx context.Context, method, url string, form url.Values, respBody interface{}) error {
	var body io.Reader
	headers := map[string]string{}
	if form != nil {
		body = strings.NewReader(form.Encode())
		headers["Content-Type"] = "application/x-www-form-urlencoded"
	}

	resp, err := c.do(ctx, method, url, body, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

// ListLogs returns every stored log entry, newest first.
func (c *HTTPClient) ListLogs(ctx context.Context) ([]models.LogEntry, error) {
	var resp LogsResponse
	if err := c.doForm(ctx, http.MethodGet, c.apiURL("/logs"), nil, &resp); err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return resp.Logs, nil
}

// DeleteLog removes a log entry without restoring it.
func (c *HTTPClient) DeleteLog(ctx context.Context, id int64) error {
	form := url.Values{"rowId": {strconv.FormatInt(id, 10)}}
	if err := c.doForm(ctx, http.MethodPost, c.apiURL("/logs/delete"), form, nil); err != nil {
		return fmt.Errorf("delete log %d: %w", id, err)
	}
	return nil
}

// RestoreRow restores a single row. A rejected restore is reported in the
// result, not as an error.
func (c *HTTPClient) RestoreRow(ctx context.Context, row restore.Row) (*RestoreResult, error) {
	data, err := json.Marshal([]restore.Row{row})
	if err != nil {
		return nil, fmt.Errorf("marshal row: %w", err)
	}
	var resp RestoreResult
	if err := c.doForm(ctx, http.MethodPost, c.apiURL("/restore"), url.Values{"rows": {string(data)}}, &resp); err != nil {
		return nil, fmt.Errorf("restore row %s: %w", row.ID, err)
	}
	return &resp, nil
}

// Count returns the number of resources carrying any of the tags, summed per tag.
func (c *HTTPClient) Count(ctx context.Context, resource string, tags []string) (*CountResult, error) {
	data, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	form := url.Values{"resource": {resource}, "tags": {string(data)}}
	var resp CountResult
	if err := c.doForm(ctx, http.MethodPost, c.apiURL("/count"), form, &resp); err != nil {
		return nil, fmt.Errorf("count %s: %w", resource, err)
	}
	return &resp, nil
}

func (c *HTTPClient) viewCall(ctx context.Context, method, path, op string) (*view.Snapshot, error) {
	var s view.Snapshot
	if err := c.doForm(ctx, method, c.apiURL("/view"+path), nil, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &s, nil
}

// ViewSnapshot returns the current log view state.
func (c *HTTPClient) ViewSnapshot(ctx context.Context) (*view.Snapshot, error) {
	return c.viewCall(ctx, http.MethodGet, "", "view snapshot")
}

// LoadView reloads the log list of the view.
func (c *HTTPClient) LoadView(ctx context.Context) (*view.Snapshot, error) {
	return c.viewCall(ctx, http.MethodPost, "/load", "load view")
}

// RequestRestore opens the confirm modal for an entry.
func (c *HTTPClient) RequestRestore(ctx context.Context, entryID int64) (*view.Snapshot, error) {
	return c.viewCall(ctx, http.MethodPost, "/logs/"+strconv.FormatInt(entryID, 10)+"/restore", "request restore")
}

// ConfirmRestore confirms the open modal and starts the batch.
func (c *HTTPClient) ConfirmRestore(ctx context.Context) (*view.Snapshot, error) {
	return c.viewCall(ctx, http.MethodPost, "/confirm", "confirm restore")
}

// CancelRestore closes the open modal.
func (c *HTTPClient) CancelRestore(ctx context.Context) (*view.Snapshot, error) {
	return c.viewCall(ctx, http.MethodPost, "/cancel", "cancel restore")
}

// DismissRestore hides the completed-restore popup.
func (c *HTTPClient) DismissRestore(ctx context.Context) (*view.Snapshot, error) {
	return c.viewCall(ctx, http.MethodPost, "/dismiss", "dismiss restore")
}

// ListReports returns up to limit batch reports, newest first.
func (c *HTTPClient) ListReports(ctx context.Context, limit int) ([]*models.BatchReport, error) {
	var resp ReportsResponse
	u := c.apiURL("/reports") + "?limit=" + strconv.Itoa(limit)
	if err := c.doForm(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return resp.Reports, nil
}

// GetReport returns a single batch report.
func (c *HTTPClient) GetReport(ctx context.Context, id string) (*models.BatchReport, error) {
	var r models.BatchReport
	if err := c.doForm(ctx, http.MethodGet, c.apiURL("/reports/"+url.PathEscape(id)), nil, &r); err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return &r, nil
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return &RemoteError{
			Code:    "unknown",
			Message: fmt.Sprintf("HTTP %d", resp.StatusCode),
			Status:  resp.StatusCode,
		}
	}

	if errResp.Success != nil {
		msg := errResp.Message
		if msg == "" && len(errResp.Errors) > 0 {
			msg = errResp.Errors[0].Message
		}
		if errResp.Error != "" {
			msg += ": " + errResp.Error
		}
		return &RemoteError{Message: msg, Status: resp.StatusCode}
	}
	return &RemoteError{
		Code:    errResp.Error,
		Message: errResp.Message,
		Status:  resp.StatusCode,
	}
}

// Verify that *HTTPClient implements ServiceClient at compile time
var _ ServiceClient = (*HTTPClient)(nil)
