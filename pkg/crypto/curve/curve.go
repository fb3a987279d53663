// Package curve provides affine secp256k1 arithmetic, scalar parsing and
// public key encoding for the puzzle game. It wraps the decred secp256k1
// implementation and translates that API's (0,0) infinity convention into
// the explicit Point zero value at the package boundary.
package curve

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

var (
	// ErrInvalidPoint is returned when bytes do not decode to a point on
	// the curve.
	ErrInvalidPoint = errors.New("curve: invalid point encoding")

	// ErrInvalidScalar is returned when a string does not parse as a
	// decimal or 0x-prefixed hex integer.
	ErrInvalidScalar = errors.New("curve: invalid scalar")

	// ErrNotInvertible is returned when a value has no modular inverse.
	ErrNotInvertible = errors.New("curve: value is not invertible")

	// ErrPointAtInfinity is returned when the point at infinity shows up
	// where a finite point is required.
	ErrPointAtInfinity = errors.New("curve: point at infinity")
)

func s256() *secp256k1.KoblitzCurve {
	return secp256k1.S256()
}

// N returns the order of the secp256k1 group.
func N() *big.Int {
	return new(big.Int).Set(s256().Params().N)
}

// Generator returns the base point G.
func Generator() Point {
	params := s256().Params()
	return NewPoint(params.Gx, params.Gy)
}

// IsOnCurve reports whether p is a finite point on secp256k1.
func IsOnCurve(p Point) bool {
	if p.IsInfinity() {
		return false
	}
	return s256().IsOnCurve(p.X, p.Y)
}

// fromAffine converts a decred affine result to a Point. The library
// reports the point at infinity as (0,0).
func fromAffine(x, y *big.Int) Point {
	if x.Sign() == 0 && y.Sign() == 0 {
		return Point{}
	}
	return Point{X: x, Y: y}
}

// Add returns p + q.
func Add(p, q Point) Point {
	if p.IsInfinity() {
		return q.Clone()
	}
	if q.IsInfinity() {
		return p.Clone()
	}
	x, y := s256().Add(p.X, p.Y, q.X, q.Y)
	return fromAffine(x, y)
}

// Negate returns -p, the reflection of p over the x axis.
func Negate(p Point) Point {
	if p.IsInfinity() {
		return Point{}
	}
	fieldP := s256().Params().P
	y := new(big.Int).Sub(fieldP, p.Y)
	y.Mod(y, fieldP)
	return Point{X: new(big.Int).Set(p.X), Y: y}
}

// Multiply returns k*p. The scalar is reduced mod N first; a scalar that
// reduces to zero, or an infinite p, yields the point at infinity.
func Multiply(k *big.Int, p Point) Point {
	if p.IsInfinity() {
		return Point{}
	}
	kr := new(big.Int).Mod(k, s256().Params().N)
	if kr.Sign() == 0 {
		return Point{}
	}
	x, y := s256().ScalarMult(p.X, p.Y, kr.Bytes())
	return fromAffine(x, y)
}

// BaseMultiply returns k*G.
func BaseMultiply(k *big.Int) Point {
	kr := new(big.Int).Mod(k, s256().Params().N)
	if kr.Sign() == 0 {
		return Point{}
	}
	x, y := s256().ScalarBaseMult(kr.Bytes())
	return fromAffine(x, y)
}

// Divide returns k⁻¹*p. It fails when k has no inverse mod N, which for a
// prime order group means k ≡ 0.
func Divide(k *big.Int, p Point) (Point, error) {
	inv, err := ModInverse(k, s256().Params().N)
	if err != nil {
		return Point{}, fmt.Errorf("divide by %v: %w", k, err)
	}
	return Multiply(inv, p), nil
}

// ModInverse returns a⁻¹ mod m.
func ModInverse(a, m *big.Int) (*big.Int, error) {
	inv := new(big.Int).ModInverse(a, m)
	if inv == nil {
		return nil, ErrNotInvertible
	}
	return inv, nil
}

// NewScalar generates a random scalar in [1, N-1].
func NewScalar() (*big.Int, error) {
	max := new(big.Int).Sub(s256().Params().N, big.NewInt(1))
	k, err := rand.Int(rand.Reader, max)
	if err != nil {
		return nil, err
	}
	return k.Add(k, big.NewInt(1)), nil
}
