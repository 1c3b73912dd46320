package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogItem_UnmarshalNumericID(t *testing.T) {
	var items []LogItem
	err := json.Unmarshal([]byte(`[
		{"id":123,"removedTags":["sale"],"success":true},
		{"id":"gid://shopify/Product/9","removedTags":["vip"]},
		{"id":null,"data":{"namespace":"custom","key":"note","type":"single_line_text_field","value":"x"}}
	]`), &items)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "123", items[0].ID)
	assert.Equal(t, []string{"sale"}, items[0].RemovedTags)
	assert.True(t, items[0].Success)
	assert.Equal(t, "gid://shopify/Product/9", items[1].ID)
	assert.Empty(t, items[2].ID)
	require.NotNil(t, items[2].Data)
	assert.Equal(t, "note", items[2].Data.Key)

	out, err := json.Marshal(items[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"123","removedTags":["sale"],"success":true}`, string(out))
}

func TestLogItem_UnmarshalRejectsObjectID(t *testing.T) {
	var it LogItem
	err := json.Unmarshal([]byte(`{"id":{"n":1}}`), &it)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "string or number")
}

func TestDecodeID(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{``, ""},
		{`null`, ""},
		{`"abc"`, "abc"},
		{` 42 `, "42"},
		{`12345678901234567890`, "12345678901234567890"},
		{`-7`, "-7"},
	}
	for _, tt := range tests {
		got, err := DecodeID(json.RawMessage(tt.raw))
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}

	_, err := DecodeID(json.RawMessage(`true`))
	assert.Error(t, err)
}

func TestDisplayID(t *testing.T) {
	assert.Equal(t, "42", LogItem{ID: "gid://shopify/Product/42"}.DisplayID())
	assert.Equal(t, "#1001", LogItem{ID: "#1001"}.DisplayID())
}
