package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("correct-pw", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "correct-pw", hash)
	assert.NotContains(t, hash, "correct-pw")

	again, err := HashPassword("correct-pw", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "hashes are salted")

	_, err = HashPassword("", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct-pw", bcrypt.MinCost)
	require.NoError(t, err)

	tests := []struct {
		name     string
		hash     string
		password string
		want     bool
	}{
		{"match", hash, "correct-pw", true},
		{"mismatch", hash, "wrong", false},
		{"empty password", hash, "", false},
		{"empty hash", "", "correct-pw", false},
		{"not a hash", "correct-pw", "correct-pw", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckPassword(tt.hash, tt.password))
		})
	}
}
