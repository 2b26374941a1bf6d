package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"b": 1, "a": "x", "c": []any{true, nil}})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1,"c":[true,null]}`, string(data))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(map[string]any{"k": "<a&b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"k":"<a&b>"}`, string(data))
}

func TestMarshalCanonical_NFCNormalizesKeys(t *testing.T) {
	composed, err := MarshalCanonical(map[string]any{"café": 1})
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(map[string]any{"cafe\u0301": 1})
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestDigest_StableAcrossEqualSessions(t *testing.T) {
	a := sampleSession()
	b := sampleSession()

	da, err := a.Digest()
	require.NoError(t, err)
	db, err := b.Digest()
	require.NoError(t, err)
	assert.Equal(t, da, db)

	b.Inventory["rope"] = 2
	db, err = b.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, da, db)
}
