package models

import "time"

// JobKind selects the inverse mutation replayed for a job.
type JobKind string

const (
	JobKindTag       JobKind = "tag"
	JobKindMetafield JobKind = "metafield"
)

// RestoreJob is the transient unit of work derived from one LogItem.
type RestoreJob struct {
	Index      int     `json:"index"`
	Source     LogItem `json:"source"`
	ObjectType string  `json:"objectType"`
	Kind       JobKind `json:"kind"`
	ResolvedID string  `json:"resolvedId,omitempty"`
}

// UserError is a field-level validation failure returned by a mutation.
type UserError struct {
	Field   []string `json:"field,omitempty"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// JobOutcome is the Done state of a RestoreJob.
type JobOutcome struct {
	Index      int         `json:"index"`
	ItemID     string      `json:"itemId"`
	ResolvedID string      `json:"resolvedId,omitempty"`
	Kind       JobKind     `json:"kind"`
	Success    bool        `json:"success"`
	Errors     []UserError `json:"errors,omitempty"`
	Err        string      `json:"err,omitempty"`
}

// BatchState is the progress of an in-flight restore batch.
type BatchState struct {
	Total     int  `json:"total"`
	Completed int  `json:"completed"`
	Active    bool `json:"active"`
}

// Done reports whether every job in the batch has been attempted.
func (s BatchState) Done() bool {
	return s.Completed >= s.Total
}

// BatchReport summarizes a finished batch, including every job failure.
type BatchReport struct {
	ID         string       `json:"id"`
	EntryID    int64        `json:"entryId"`
	Operation  string       `json:"operation"`
	ObjectType string       `json:"objectType"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Total      int          `json:"total"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Outcomes   []JobOutcome `json:"outcomes"`
	DeleteErr  string       `json:"deleteErr,omitempty"`
}

// Failures returns the outcomes of jobs that did not succeed.
func (r *BatchReport) Failures() []JobOutcome {
	var out []JobOutcome
	for _, o := range r.Outcomes {
		if !o.Success {
			out = append(out, o)
		}
	}
	return out
}
