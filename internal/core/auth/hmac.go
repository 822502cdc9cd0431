package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"strings"
)

// ParseBearer extracts the token from an "authorization" metadata value.
// The scheme is case-insensitive.
func ParseBearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMalformedHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMalformedHeader
	}
	return token, nil
}

// ComputeHMAC computes the HMAC-SHA256 of token under key.
func ComputeHMAC(key []byte, token string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(token))
	return h.Sum(nil)
}

// VerifyHMAC compares two digests in constant time.
func VerifyHMAC(expected, computed []byte) bool {
	return hmac.Equal(expected, computed)
}
