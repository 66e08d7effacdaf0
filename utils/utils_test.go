package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomAlphaNumeric(t *testing.T) {
	id, err := GenerateRandomAlphaNumeric(20)
	require.NoError(t, err)
	assert.Len(t, id, 20)
	for _, r := range id {
		assert.Contains(t, charset, string(r))
	}

	_, err = GenerateRandomAlphaNumeric(0)
	assert.Error(t, err)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
	assert.Equal(t, "", NormalizeEmail(""))
}
