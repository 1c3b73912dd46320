package restore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/shopify"
)

// Sentinel errors for expected conditions.
var (
	ErrResolution         = errors.New("identifier resolution failed")
	ErrIdentifierNotFound = errors.New("identifier not found")
	ErrUserError          = errors.New("mutation rejected")
	ErrInvalidRow         = errors.New("no tags or metafields present")
	ErrBatchInFlight      = errors.New("a restore batch is already in flight")
	ErrNothingToRestore   = errors.New("log entry has nothing to restore")

	// ErrTransport is the shopify transport sentinel, re-exported so callers
	// can classify job failures without importing the client package.
	ErrTransport = shopify.ErrTransport
)

// ResolutionError is returned when an identifier lookup fails.
type ResolutionError struct {
	ObjectType string
	Reference  string
	Err        error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s %q: %v", e.ObjectType, e.Reference, e.Err)
}

func (e *ResolutionError) Unwrap() []error {
	return []error{ErrResolution, e.Err}
}

// MutationUserError is returned when the API accepted a mutation but
// reported field-level errors.
type MutationUserError struct {
	Kind   models.JobKind
	Errors []models.UserError
}

func (e *MutationUserError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ue := range e.Errors {
		if len(ue.Field) > 0 {
			msgs[i] = strings.Join(ue.Field, ".") + ": " + ue.Message
		} else {
			msgs[i] = ue.Message
		}
	}
	return fmt.Sprintf("%s restore rejected: %s", e.Kind, strings.Join(msgs, "; "))
}

func (e *MutationUserError) Unwrap() error {
	return ErrUserError
}

// category labels a job error for logs and metrics.
func category(err error) string {
	switch {
	case err == nil:
		return "success"
	case throttled(err):
		return "throttled"
	case errors.Is(err, ErrUserError):
		return "user_error"
	case errors.Is(err, ErrIdentifierNotFound):
		return "not_found"
	case errors.Is(err, ErrResolution):
		return "resolution_error"
	default:
		return "transport_error"
	}
}

func throttled(err error) bool {
	var te *shopify.TransportError
	return errors.As(err, &te) && te.Throttled()
}
