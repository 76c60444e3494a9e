package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDocument_OmitsID(t *testing.T) {
	a := fullAction()
	a.ID = "act-1"

	id, doc, err := EncodeDocument(a)
	require.NoError(t, err)
	assert.Equal(t, "act-1", id)
	assert.NotContains(t, string(doc), `"id":"act-1"`)

	back, err := DecodeDocument(id, doc)
	require.NoError(t, err)
	assert.Equal(t, a, back)
}

func TestEncodeDocument_Deterministic(t *testing.T) {
	_, first, err := EncodeDocument(fullAction())
	require.NoError(t, err)
	for range 5 {
		_, again, err := EncodeDocument(fullAction())
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestDecodeDocument_IDFromStorage(t *testing.T) {
	a, err := DecodeDocument("stored", []byte(`{"id":"ignored","timestamp":"t","action":{"type":"x","verb":"y"}}`))
	require.NoError(t, err)
	assert.Equal(t, "stored", a.ID)
	assert.Equal(t, []Entity{}, a.Agents)
}
