package hostenv

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/loomworks/loom/pkg/ports"
)

// cryptoPort is the randomness/hashing binding: UUIDv4 identifiers,
// blake2b-256 hashing, and crypto/rand hex strings.
type cryptoPort struct{}

func newCrypto() ports.Crypto {
	return cryptoPort{}
}

func (cryptoPort) UUID() string {
	return uuid.NewString()
}

func (cryptoPort) Hash(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

func (cryptoPort) RandHex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("rand hex length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
