// Package remote defines the response types and client for talking to a
// running shoprestore server.
package remote

import (
	"fmt"

	"github.com/kilupskalvis/shoprestore/internal/models"
)

// LogsResponse is the body of GET /api/logs.
type LogsResponse struct {
	Logs []models.LogEntry `json:"logs"`
}

// RestoreResult is the body of POST /api/restore.
type RestoreResult struct {
	Success bool               `json:"success"`
	Errors  []models.UserError `json:"errors,omitempty"`
}

// CountResult is the body of POST /api/count.
type CountResult struct {
	Success  bool   `json:"success"`
	Resource string `json:"resource"`
	TagCount int    `json:"tagCount"`
}

// ReportsResponse is the body of GET /api/reports.
type ReportsResponse struct {
	Reports []*models.BatchReport `json:"reports"`
}

// ErrorResponse is the structured error format returned by the server. The
// log endpoints report failures as {success:false, message, error}.
type ErrorResponse struct {
	Success *bool              `json:"success,omitempty"`
	Error   string             `json:"error"`
	Message string             `json:"message"`
	Errors  []models.UserError `json:"errors,omitempty"`
}

// RemoteError represents a structured error from the server.
type RemoteError struct {
	Code    string
	Message string
	Status  int
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server error (%d): %s: %s", e.Status, e.Code, e.Message)
}
