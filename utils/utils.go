package utils

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomAlphaNumeric returns a random string drawn from charset, the
// alphabet Firestore uses for its auto-generated document ids.
func GenerateRandomAlphaNumeric(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be greater than 0")
	}

	result := make([]byte, length)
	charsetLen := big.NewInt(int64(len(charset)))

	for i := 0; i < length; i++ {
		randomIndex, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			slog.Error("failed to generate random number", "error", err)
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = charset[randomIndex.Int64()]
	}

	return string(result), nil
}

// NormalizeEmail is the form invitation documents store addresses in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
