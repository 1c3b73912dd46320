// Package models defines the log records, restore jobs, and batch reports
// shared by the store, the restore engine, and the HTTP layer.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Operation names recorded by the removal tools.
const (
	OperationTagsRemoved      = "Tags-removed"
	OperationMetafieldCleared = "Metafield-cleared"
)

// CanonicalPrefix is the resource-URI scheme of durable Admin API identifiers.
const CanonicalPrefix = "gid://shopify/"

// LogEntry is one recorded destructive operation and the items it touched.
type LogEntry struct {
	ID         int64     `json:"id"`
	UserName   string    `json:"userName"`
	Operation  string    `json:"operation"`
	ObjectType string    `json:"objectType"`
	Time       time.Time `json:"time"`
	Value      []LogItem `json:"value"`
}

// LogItem is a single object affected by a LogEntry.
// Success records the outcome of the original removal, not of any restore.
type LogItem struct {
	ID          string         `json:"id"`
	RemovedTags []string       `json:"removedTags,omitempty"`
	Data        *MetafieldData `json:"data,omitempty"`
	Success     bool           `json:"success"`
}

// UnmarshalJSON accepts the item id as a string or a bare JSON number.
// Older removal tools wrote numeric ids.
func (it *LogItem) UnmarshalJSON(b []byte) error {
	type plain LogItem
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	id, err := DecodeID(aux.ID)
	if err != nil {
		return err
	}
	*it = LogItem(aux.plain)
	it.ID = id
	return nil
}

// DecodeID reads an object identifier that may be a JSON string, a JSON
// number, or null. Numbers keep their literal digits.
func DecodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("id must be a string or number, got %s", raw)
}

// MetafieldData describes a cleared metafield.
type MetafieldData struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type"`
	Value     string `json:"value"`
}

// IsCanonicalID reports whether id already carries the canonical prefix.
func IsCanonicalID(id string) bool {
	return len(id) >= len(CanonicalPrefix) && id[:len(CanonicalPrefix)] == CanonicalPrefix
}

// Restorable reports whether the item can contribute a restore job for the
// given operation.
func (it LogItem) Restorable(operation string) bool {
	if operation == OperationTagsRemoved {
		return len(it.RemovedTags) > 0
	}
	return it.Data != nil && it.Data.Namespace != "" && it.Data.Key != ""
}

// DisplayID strips the canonical prefix and resource type for table display.
func (it LogItem) DisplayID() string {
	if !IsCanonicalID(it.ID) {
		return it.ID
	}
	for i := len(it.ID) - 1; i >= 0; i-- {
		if it.ID[i] == '/' {
			return it.ID[i+1:]
		}
	}
	return it.ID
}
