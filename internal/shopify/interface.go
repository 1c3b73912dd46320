package shopify

import (
	"context"

	"github.com/kilupskalvis/shoprestore/internal/models"
)

// IDLookup resolves non-canonical references into canonical ids. An empty
// result with a nil error means the object was not found.
type IDLookup interface {
	// LookupTagObject resolves a legacy id of a taggable object.
	LookupTagObject(ctx context.Context, objectType, rawReference string) (string, error)
	// LookupMetafieldOwner resolves a reference keyed by metafield owner type.
	LookupMetafieldOwner(ctx context.Context, ownerType, rawReference string) (string, error)
}

// Mutator issues the inverse write mutations. A nil error with a non-empty
// user error list means the API accepted the call but rejected the input.
type Mutator interface {
	TagsAdd(ctx context.Context, id string, tags []string) ([]models.UserError, error)
	MetafieldsSet(ctx context.Context, input MetafieldInput) ([]models.UserError, error)
}

// Counter counts resources carrying tags.
type Counter interface {
	CountByTags(ctx context.Context, resource string, tags []string) (int, error)
}

// ClientInterface defines the contract for Admin API operations.
// This interface enables mocking for testing the restore package.
type ClientInterface interface {
	IDLookup
	Mutator
	Counter
}

// MetafieldInput is one entry of a metafieldsSet mutation.
type MetafieldInput struct {
	OwnerID   string `json:"ownerId"`
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
	Type      string `json:"type,omitempty"`
	Value     string `json:"value"`
}

// Verify that *Client implements ClientInterface at compile time
var _ ClientInterface = (*Client)(nil)
