package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// DigestAlgorithm names the digest written next to archived documents
const DigestAlgorithm = "sha256"

// Digest returns the lowercase hex SHA-256 of data
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyDigest reports whether data hashes to digest. Case is ignored.
func VerifyDigest(data []byte, digest string) bool {
	want := Digest(data)
	got := strings.ToLower(strings.TrimSpace(digest))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
