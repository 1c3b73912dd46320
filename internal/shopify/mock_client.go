package shopify

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilupskalvis/shoprestore/internal/models"
)

// MockClient is a mock implementation of ClientInterface for testing.
type MockClient struct {
	mu sync.Mutex

	// TagObjects maps "ObjectType/raw" to the id returned by LookupTagObject.
	TagObjects map[string]string
	// MetafieldOwners maps "OwnerType/raw" to the id returned by LookupMetafieldOwner.
	MetafieldOwners map[string]string
	// LookupErr makes both lookups fail.
	LookupErr error

	// TagUserErrors and MetafieldUserErrors map a canonical id to the user
	// errors its mutation returns.
	TagUserErrors       map[string][]models.UserError
	MetafieldUserErrors map[string][]models.UserError
	// MutationErr makes both mutations fail at the transport level.
	MutationErr error

	// Counts maps resource -> tag -> count.
	Counts map[string]map[string]int

	// Calls records every call in order, e.g. "lookupTag Product/123".
	Calls []string
	// TagsAdded and MetafieldsSetCalls record mutation arguments.
	TagsAdded          []TagsAddCall
	MetafieldsSetCalls []MetafieldInput
	// OnCall, when set, runs synchronously at the start of every call.
	OnCall func(call string)
}

// TagsAddCall records one TagsAdd invocation.
type TagsAddCall struct {
	ID   string
	Tags []string
}

// NewMockClient creates a new MockClient for testing.
func NewMockClient() *MockClient {
	return &MockClient{
		TagObjects:          make(map[string]string),
		MetafieldOwners:     make(map[string]string),
		TagUserErrors:       make(map[string][]models.UserError),
		MetafieldUserErrors: make(map[string][]models.UserError),
		Counts:              make(map[string]map[string]int),
	}
}

func (m *MockClient) record(call string) {
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	hook := m.OnCall
	m.mu.Unlock()
	if hook != nil {
		hook(call)
	}
}

// CallLog returns a copy of the recorded calls.
func (m *MockClient) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	copy(out, m.Calls)
	return out
}

// LookupTagObject returns the configured id for objectType/raw.
func (m *MockClient) LookupTagObject(_ context.Context, objectType, raw string) (string, error) {
	m.record(fmt.Sprintf("lookupTag %s/%s", objectType, raw))
	if m.LookupErr != nil {
		return "", m.LookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.TagObjects[objectType+"/"+raw], nil
}

// LookupMetafieldOwner returns the configured id for ownerType/raw.
func (m *MockClient) LookupMetafieldOwner(_ context.Context, ownerType, raw string) (string, error) {
	m.record(fmt.Sprintf("lookupOwner %s/%s", ownerType, raw))
	if m.LookupErr != nil {
		return "", m.LookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MetafieldOwners[ownerType+"/"+raw], nil
}

// TagsAdd records the call and returns the configured user errors.
func (m *MockClient) TagsAdd(_ context.Context, id string, tags []string) ([]models.UserError, error) {
	m.record("tagsAdd " + id)
	if m.MutationErr != nil {
		return nil, m.MutationErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TagsAdded = append(m.TagsAdded, TagsAddCall{ID: id, Tags: tags})
	return m.TagUserErrors[id], nil
}

// MetafieldsSet records the call and returns the configured user errors.
func (m *MockClient) MetafieldsSet(_ context.Context, input MetafieldInput) ([]models.UserError, error) {
	m.record("metafieldsSet " + input.OwnerID)
	if m.MutationErr != nil {
		return nil, m.MutationErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MetafieldsSetCalls = append(m.MetafieldsSetCalls, input)
	return m.MetafieldUserErrors[input.OwnerID], nil
}

// CountByTags sums the configured counts. Resources without a count field
// return 0 without recording a call.
func (m *MockClient) CountByTags(_ context.Context, resource string, tags []string) (int, error) {
	if CountField(resource) == "" {
		return 0, nil
	}
	m.record("count " + resource)
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, t := range tags {
		total += m.Counts[resource][t]
	}
	return total, nil
}

var _ ClientInterface = (*MockClient)(nil)
