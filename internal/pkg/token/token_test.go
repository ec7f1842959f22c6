package token

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenShape(t *testing.T) {
	value, err := New(32)
	require.NoError(t, err)
	assert.Len(t, value, 32)
	for _, c := range value {
		assert.True(t, strings.ContainsRune(alphabet, c))
	}

	// Zero falls back to the default length.
	value, err = New(0)
	require.NoError(t, err)
	assert.Len(t, value, DefaultLength)
}

func TestNewNumericShape(t *testing.T) {
	code, err := NewNumeric(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9')
	}

	_, err = NewNumeric(0)
	assert.Error(t, err)
}
