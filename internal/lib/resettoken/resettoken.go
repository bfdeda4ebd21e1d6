package resettoken

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Size is the number of random bytes in a token (256 bits).
const Size = 32

// Generate returns a hex-encoded random token and its SHA-256 hash.
func Generate() (plain string, hash string, err error) {
	const op = "resettoken.Generate"

	b := make([]byte, Size)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	plain = hex.EncodeToString(b)

	return plain, Hash(plain), nil
}

// Hash is deterministic and unsalted: tokens are looked up by exact hash.
func Hash(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
