package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRoundTrip(t *testing.T) {
	vec := []float32{0, 1, -1, 0.5, 3.14159, -273.15}

	decoded, err := DecodeVector(EncodeVector(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, decoded)
}

func TestEncodeVectorEmpty(t *testing.T) {
	assert.Empty(t, EncodeVector(nil))

	decoded, err := DecodeVector([]byte{})
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeVectorBadLength(t *testing.T) {
	_, err := DecodeVector([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
