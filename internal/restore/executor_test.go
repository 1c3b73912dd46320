package restore

import (
	"context"
	"errors"
	"testing"

	"github.com/kilupskalvis/shoprestore/internal/models"
	"github.com/kilupskalvis/shoprestore/internal/shopify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tagJob(id string, tags ...string) models.RestoreJob {
	return models.RestoreJob{
		Source:     models.LogItem{ID: id, RemovedTags: tags},
		ObjectType: "Product",
		Kind:       models.JobKindTag,
	}
}

func metafieldJob(id, namespace, key string) models.RestoreJob {
	return models.RestoreJob{
		Source: models.LogItem{ID: id, Data: &models.MetafieldData{
			Namespace: namespace, Key: key, Type: "single_line_text_field", Value: "hi",
		}},
		ObjectType: "Order",
		Kind:       models.JobKindMetafield,
	}
}

func TestExecute_TagSuccess(t *testing.T) {
	mock := shopify.NewMockClient()
	e := NewExecutor(mock)

	out, err := e.Execute(context.Background(), "gid://shopify/Product/1", tagJob("1", "sale", "vip"))
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "gid://shopify/Product/1", out.ResolvedID)
	assert.Equal(t, "1", out.ItemID)

	require.Len(t, mock.TagsAdded, 1)
	assert.Equal(t, []string{"sale", "vip"}, mock.TagsAdded[0].Tags)
}

func TestExecute_TagUserErrors(t *testing.T) {
	mock := shopify.NewMockClient()
	mock.TagUserErrors["gid://shopify/Product/1"] = []models.UserError{{Field: []string{"tags"}, Message: "invalid tag"}}
	e := NewExecutor(mock)

	out, err := e.Execute(context.Background(), "gid://shopify/Product/1", tagJob("1", "x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUserError)
	assert.False(t, out.Success)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "invalid tag", out.Errors[0].Message)

	var mue *MutationUserError
	require.True(t, errors.As(err, &mue))
	assert.Equal(t, "tag restore rejected: tags: invalid tag", mue.Error())
}

func TestExecute_MetafieldInput(t *testing.T) {
	mock := shopify.NewMockClient()
	e := NewExecutor(mock)

	out, err := e.Execute(context.Background(), "gid://shopify/Order/5", metafieldJob("5", "custom", "note"))
	require.NoError(t, err)
	assert.True(t, out.Success)

	require.Len(t, mock.MetafieldsSetCalls, 1)
	assert.Equal(t, shopify.MetafieldInput{
		OwnerID: "gid://shopify/Order/5", Namespace: "custom", Key: "note",
		Type: "single_line_text_field", Value: "hi",
	}, mock.MetafieldsSetCalls[0])
}

func TestExecute_TransportError(t *testing.T) {
	mock := shopify.NewMockClient()
	mock.MutationErr = &shopify.TransportError{Op: "tagsAdd", Status: 503, Message: "unavailable"}
	e := NewExecutor(mock)

	out, err := e.Execute(context.Background(), "gid://shopify/Product/1", tagJob("1", "x"))
	assert.ErrorIs(t, err, ErrTransport)
	assert.False(t, out.Success)
	assert.NotEmpty(t, out.Err)
	assert.Equal(t, []string{"tagsAdd gid://shopify/Product/1"}, mock.CallLog())
}

func TestExecute_MetafieldWithoutData(t *testing.T) {
	mock := shopify.NewMockClient()
	e := NewExecutor(mock)

	job := models.RestoreJob{Source: models.LogItem{ID: "1"}, Kind: models.JobKindMetafield}
	_, err := e.Execute(context.Background(), "gid://shopify/Product/1", job)
	assert.ErrorIs(t, err, ErrInvalidRow)
	assert.Empty(t, mock.CallLog())
}
