package crypt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	yaml "gopkg.in/yaml.v2"
)

func TestSealOpen(t *testing.T) {
	k1, err := GenerateKeyPair()
	require.NoError(t, err)
	k2, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("Hello World")

	sealed, err := k1.Seal(k2.Public, msg)
	require.NoError(t, err)
	opened, err := k2.Open(k1.Public, sealed)
	require.NoError(t, err)
	assert.Equal(t, msg, opened)

	k3, err := GenerateKeyPair()
	require.NoError(t, err)
	_, err = k3.Open(k1.Public, sealed)
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = k2.Open(k1.Public, sealed[:10])
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestKeyEncoding(t *testing.T) {
	pair, err := GenerateKeyPair()
	require.NoError(t, err)

	parsed, err := ParseKey(pair.Public.String())
	require.NoError(t, err)
	assert.Equal(t, pair.Public, parsed)

	_, err = ParseKey("0OIl")
	assert.Error(t, err)
	_, err = ParseKey("abc")
	assert.Error(t, err)

	assert.True(t, pair.Public.Valid())
	assert.False(t, Key{}.Valid())

	bs, err := json.Marshal(pair)
	require.NoError(t, err)
	var fromJSON KeyPair
	require.NoError(t, json.Unmarshal(bs, &fromJSON))
	assert.Equal(t, pair, fromJSON)

	bs, err = yaml.Marshal(pair)
	require.NoError(t, err)
	var fromYAML KeyPair
	require.NoError(t, yaml.Unmarshal(bs, &fromYAML))
	assert.Equal(t, pair, fromYAML)
}
