package shopify

import (
	"context"
	"errors"
	"testing"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_RecordsMutations(t *testing.T) {
	var c ClientInterface = NewMockClient()
	mock := c.(*MockClient)
	mock.MetafieldUserErrors["gid://shopify/Order/5"] = []models.UserError{{Message: "bad value"}}

	ctx := context.Background()
	errs, err := c.TagsAdd(ctx, "gid://shopify/Product/1", []string{"sale"})
	require.NoError(t, err)
	assert.Empty(t, errs)

	in := MetafieldInput{OwnerID: "gid://shopify/Order/5", Namespace: "custom", Key: "note", Type: "single_line_text_field", Value: "x"}
	errs, err = c.MetafieldsSet(ctx, in)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, "bad value", errs[0].Message)

	assert.Equal(t, []TagsAddCall{{ID: "gid://shopify/Product/1", Tags: []string{"sale"}}}, mock.TagsAdded)
	assert.Equal(t, []MetafieldInput{in}, mock.MetafieldsSetCalls)
	assert.Equal(t, []string{"tagsAdd gid://shopify/Product/1", "metafieldsSet gid://shopify/Order/5"}, mock.CallLog())
}

func TestMockClient_MutationErrSkipsRecording(t *testing.T) {
	mock := NewMockClient()
	mock.MutationErr = errors.New("connection reset")

	_, err := mock.MetafieldsSet(context.Background(), MetafieldInput{OwnerID: "gid://shopify/Order/5"})
	require.Error(t, err)
	assert.Empty(t, mock.MetafieldsSetCalls)
	assert.Equal(t, []string{"metafieldsSet gid://shopify/Order/5"}, mock.CallLog())
}
