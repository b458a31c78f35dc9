package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRandomToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := generateRandomToken()
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.False(t, seen[token], "token repeated")
		seen[token] = true
	}
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := generateOTP()
		require.NoError(t, err)

		require.Len(t, code, otpDigits)
		for _, r := range code {
			require.True(t, r >= '0' && r <= '9', "code %q contains non-digit", code)
		}
	}
}
