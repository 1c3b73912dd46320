package server

import (
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
)

// requestValidate is the validator instance for request payloads.
var requestValidate = validator.New()

type deleteRequest struct {
	RowID string `validate:"required,number"`
}

func (r *deleteRequest) Validate() error {
	return requestValidate.Struct(r)
}

type countRequest struct {
	Resource string   `validate:"max=64"`
	Tags     []string `validate:"dive,max=255"`
}

func (r *countRequest) Validate() error {
	return requestValidate.Struct(r)
}

// parseTags accepts a JSON array or a comma separated list. Malformed JSON
// yields no tags.
func parseTags(raw string) []string {
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		var tags []string
		if err := json.Unmarshal([]byte(raw), &tags); err != nil {
			return nil
		}
		return tags
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
