package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

const otpDigits = 6

// generateRandomToken creates a cryptographically secure random token
// suitable for verification and reset links.
func generateRandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// generateOTP creates a uniformly random fixed-width numeric one-time code.
// rand.Int keeps the distribution unbiased; Sprintf keeps leading zeros.
func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", otpDigits, n), nil
}
