package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	for _, pw := range []string{"Abc123!", "P@ssw0rd", "x", "ünïcødé#1A"} {
		digest, err := h.Hash(pw)
		require.NoError(t, err)
		assert.NotEqual(t, pw, digest)

		ok, err := h.Verify(pw, digest)
		require.NoError(t, err)
		assert.True(t, ok, "password %q", pw)
	}
}

func TestHasher_WrongPassword(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	digest, err := h.Hash("Abc123!")
	require.NoError(t, err)

	ok, err := h.Verify("Abc123?", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasher_Salted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	d1, err := h.Hash("Abc123!")
	require.NoError(t, err)
	d2, err := h.Hash("Abc123!")
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestHasher_MalformedDigest(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost).Verify("Abc123!", "not-a-bcrypt-hash")
	assert.Error(t, err)
}

func TestNewHasher_CostOutOfRange(t *testing.T) {
	h := NewHasher(99)
	assert.Equal(t, bcrypt.DefaultCost, h.cost)

	digest, err := NewHasher(10).Hash("Abc123!")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, 10, cost)
}
