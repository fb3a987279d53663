package curve

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

const (
	// CompressedKeyLen is the byte length of a compressed public key.
	CompressedKeyLen = 33
	// UncompressedKeyLen is the byte length of an uncompressed public key.
	UncompressedKeyLen = 65
)

// PointToPublicKeyHex encodes p as a hex compressed public key (33 bytes,
// 02/03 prefix). The point at infinity and off-curve points are rejected.
func PointToPublicKeyHex(p Point) (string, error) {
	if p.IsInfinity() {
		return "", ErrPointAtInfinity
	}
	if !IsOnCurve(p) {
		return "", ErrInvalidPoint
	}
	var x, y secp256k1.FieldVal
	if overflow := x.SetByteSlice(p.X.Bytes()); overflow {
		return "", ErrInvalidPoint
	}
	if overflow := y.SetByteSlice(p.Y.Bytes()); overflow {
		return "", ErrInvalidPoint
	}
	pub := secp256k1.NewPublicKey(&x, &y)
	return hex.EncodeToString(pub.SerializeCompressed()), nil
}

// PublicKeyHexToPoint decodes a hex encoded compressed (33 byte) or
// uncompressed (65 byte) public key into a finite curve point.
func PublicKeyHexToPoint(s string) (Point, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	if len(raw) != CompressedKeyLen && len(raw) != UncompressedKeyLen {
		return Point{}, fmt.Errorf("%w: %d bytes, want %d or %d",
			ErrInvalidPoint, len(raw), CompressedKeyLen, UncompressedKeyLen)
	}
	pub, err := secp256k1.ParsePubKey(raw)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrInvalidPoint, err)
	}
	return Point{X: pub.X(), Y: pub.Y()}, nil
}

// PublicKeyBytes encodes p as a compressed public key.
func PublicKeyBytes(p Point) ([]byte, error) {
	h, err := PointToPublicKeyHex(p)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(h)
}

// ParseScalar parses a decimal or 0x-prefixed hex integer, with an
// optional leading minus sign. It rejects everything else.
func ParseScalar(s string) (*big.Int, error) {
	t := strings.TrimSpace(s)
	body, neg := strings.CutPrefix(t, "-")
	base := 10
	if h, ok := strings.CutPrefix(body, "0x"); ok {
		base, body = 16, h
	} else if h, ok := strings.CutPrefix(body, "0X"); ok {
		base, body = 16, h
	}
	if body == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScalar, s)
	}
	// big.Int.SetString accepts sign prefixes of its own; they were
	// consumed above, so any remaining sign is malformed input.
	if strings.HasPrefix(body, "-") || strings.HasPrefix(body, "+") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScalar, s)
	}
	n, ok := new(big.Int).SetString(body, base)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScalar, s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

// FormatScalar renders k in the canonical decimal form used for operation
// values.
func FormatScalar(k *big.Int) string {
	return k.Text(10)
}
