package receipt

import (
	"crypto/rand"
	"crypto/sha256"
	"math/big"
)

// Receipt binds a practice challenge to its secret key before play starts.
// Digest = H(salt || secret)
type Receipt struct {
	Digest []byte // published when the challenge is issued
	Salt   []byte // withheld until the reveal
}

// New commits to a practice secret. The digest is shown to the player
// immediately; revealing the salt together with the secret later proves the
// secret was fixed before play started.
func New(secret []byte) (*Receipt, error) {
	// 1. Generate random salt (32 bytes)
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	// 2. Compute digest = SHA256(salt || secret)
	hash := sha256.New()
	hash.Write(salt)
	hash.Write(secret)

	return &Receipt{
		Digest: hash.Sum(nil),
		Salt:   salt,
	}, nil
}

// Verify checks that digest matches the revealed salt and secret.
func Verify(digest, salt, secret []byte) bool {
	if len(digest) != sha256.Size || len(salt) != 32 {
		return false
	}

	hash := sha256.New()
	hash.Write(salt)
	hash.Write(secret)
	computed := hash.Sum(nil)

	return string(computed) == string(digest)
}

// ScalarBytes encodes k as a fixed-width 32-byte big-endian value for
// hashing. Out-of-range scalars encode as all zeros.
func ScalarBytes(k *big.Int) []byte {
	var buf [32]byte
	if k == nil || k.Sign() < 0 || k.BitLen() > 256 {
		return buf[:]
	}
	return k.FillBytes(buf[:])
}
