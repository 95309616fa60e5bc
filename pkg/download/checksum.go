package download

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

// Supported checksum algorithms
const (
	AlgorithmSHA256 = "sha256"
	AlgorithmSHA512 = "sha512"
)

// Checksum is an expected digest of an artifact under a named algorithm.
type Checksum struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// NewChecksum creates a checksum
func NewChecksum(algorithm, value string) Checksum {
	return Checksum{Algorithm: algorithm, Value: value}
}

// SHA256 is shorthand for NewChecksum(AlgorithmSHA256, value).
func SHA256(value string) Checksum {
	return NewChecksum(AlgorithmSHA256, value)
}

// Verify reports whether data hashes to the expected value. Unknown
// algorithms and empty expected values never verify.
func (c Checksum) Verify(data []byte) bool {
	var sum []byte
	switch strings.ToLower(c.Algorithm) {
	case AlgorithmSHA256:
		s := sha256.Sum256(data)
		sum = s[:]
	case AlgorithmSHA512:
		s := sha512.Sum512(data)
		sum = s[:]
	default:
		return false
	}

	expected := strings.TrimSpace(c.Value)
	if expected == "" {
		return false
	}
	return strings.EqualFold(hex.EncodeToString(sum), expected)
}

func (c Checksum) String() string {
	return c.Algorithm + ":" + c.Value
}
