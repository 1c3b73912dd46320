package restore

import (
	"encoding/json"

	"github.com/kilupskalvis/shoprestore/internal/models"
)

// Row is the wire form of a single restore request. Tags selects a tag
// restore; Namespace and Key together select a metafield restore.
type Row struct {
	ID         string   `json:"id" validate:"required"`
	ObjectType string   `json:"objectType"`
	Tags       []string `json:"tags,omitempty"`
	Namespace  string   `json:"namespace,omitempty"`
	Key        string   `json:"key,omitempty"`
	Type       string   `json:"type,omitempty"`
	Value      string   `json:"value,omitempty"`
}

// UnmarshalJSON accepts the id as a string or a bare JSON number.
func (r *Row) UnmarshalJSON(b []byte) error {
	type plain Row
	var aux struct {
		plain
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	id, err := models.DecodeID(aux.ID)
	if err != nil {
		return err
	}
	*r = Row(aux.plain)
	r.ID = id
	return nil
}

// Job converts the row into a job. A present tags list wins over metafield
// fields; a row with neither returns ErrInvalidRow.
func (r Row) Job() (models.RestoreJob, error) {
	job := models.RestoreJob{ObjectType: r.ObjectType}
	switch {
	case r.Tags != nil:
		job.Kind = models.JobKindTag
		job.Source = models.LogItem{ID: r.ID, RemovedTags: r.Tags}
	case r.Namespace != "" && r.Key != "":
		job.Kind = models.JobKindMetafield
		job.Source = models.LogItem{ID: r.ID, Data: &models.MetafieldData{
			Namespace: r.Namespace, Key: r.Key, Type: r.Type, Value: r.Value,
		}}
	default:
		return job, ErrInvalidRow
	}
	return job, nil
}
