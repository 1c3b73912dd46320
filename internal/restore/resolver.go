package restore

import (
	"context"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/shopify"
)

// Resolver turns a log item reference into a canonical id.
type Resolver struct {
	lookup shopify.IDLookup
}

// NewResolver creates a Resolver backed by the given lookups.
func NewResolver(lookup shopify.IDLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve returns raw unchanged when it is already canonical. Otherwise it
// picks the lookup strategy for the job kind: tag jobs use the taggable
// object lookup, metafield jobs the owner-type lookup.
func (r *Resolver) Resolve(ctx context.Context, kind models.JobKind, objectType, raw string) (string, error) {
	if models.IsCanonicalID(raw) {
		return raw, nil
	}

	var (
		id  string
		err error
	)
	switch kind {
	case models.JobKindTag:
		id, err = r.lookup.LookupTagObject(ctx, objectType, raw)
	case models.JobKindMetafield:
		id, err = r.lookup.LookupMetafieldOwner(ctx, objectType, raw)
	default:
		return "", ErrInvalidRow
	}

	if err != nil {
		return "", &ResolutionError{ObjectType: objectType, Reference: raw, Err: err}
	}
	if id == "" {
		return "", ErrIdentifierNotFound
	}
	return id, nil
}
