// Package solution builds and checks ownership proofs for solved
// challenges. A proof is an ECDSA signature bound to one challenge id, so
// a solver shows they hold the private key without ever sending it.
package solution

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/google/uuid"

	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
)

var (
	ErrInvalidKey       = errors.New("solution: invalid private key")
	ErrInvalidSignature = errors.New("solution: malformed signature")
)

// Proof carries the compressed public key of the challenge point and a DER
// signature over the challenge binding, both hex encoded.
type Proof struct {
	PublicKey string
	Signature string
}

// message is the signed binding: SHA-256 over the compressed public key
// bytes followed by the raw challenge id. Including the id keeps a proof
// from being replayed against a different challenge.
func message(pub []byte, challengeID uuid.UUID) []byte {
	h := sha256.New()
	h.Write(pub)
	h.Write(challengeID[:])
	return h.Sum(nil)
}

// Sign proves knowledge of priv for one challenge. Signing is deterministic
// (RFC 6979), so equal inputs produce equal proofs.
func Sign(priv *big.Int, challengeID uuid.UUID) (*Proof, error) {
	if priv == nil {
		return nil, ErrInvalidKey
	}
	k := new(big.Int).Mod(priv, curve.N())
	if k.Sign() == 0 {
		return nil, ErrInvalidKey
	}

	var buf [32]byte
	k.FillBytes(buf[:])
	key := secp256k1.PrivKeyFromBytes(buf[:])
	pub := key.PubKey().SerializeCompressed()

	sig := ecdsa.Sign(key, message(pub, challengeID))
	return &Proof{
		PublicKey: hex.EncodeToString(pub),
		Signature: hex.EncodeToString(sig.Serialize()),
	}, nil
}

// Verify checks a proof against the claimed public key and challenge id.
// The key may be compressed or uncompressed hex; the binding is always
// hashed over its compressed form.
func Verify(publicKeyHex string, challengeID uuid.UUID, signatureHex string) (bool, error) {
	point, err := curve.PublicKeyHexToPoint(publicKeyHex)
	if err != nil {
		return false, err
	}
	pub, err := curve.PublicKeyBytes(point)
	if err != nil {
		return false, err
	}

	raw, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sig, err := ecdsa.ParseDERSignature(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	parsed, err := secp256k1.ParsePubKey(pub)
	if err != nil {
		return false, fmt.Errorf("%w: %v", curve.ErrInvalidPoint, err)
	}
	return sig.Verify(message(pub, challengeID), parsed), nil
}
