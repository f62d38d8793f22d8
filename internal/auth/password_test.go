package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$12$"), "hash should carry the configured bcrypt cost")
	assert.NotEqual(t, "hunter2hunter2", hash)
}

func TestComparePassword(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)

	t.Run("matching password", func(t *testing.T) {
		assert.NoError(t, ComparePassword(hash, "hunter2hunter2"))
	})

	t.Run("wrong password", func(t *testing.T) {
		assert.Error(t, ComparePassword(hash, "hunter3hunter3"))
	})

	t.Run("malformed hash", func(t *testing.T) {
		assert.Error(t, ComparePassword("not-a-bcrypt-hash", "hunter2hunter2"))
	})
}
