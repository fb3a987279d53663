package curve

import (
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Known multiples of G, cross-checked against multiple sources.
var (
	twoGx, _   = new(big.Int).SetString("C6047F9441ED7D6D3045406E95C07CD85C778E4B8CEF3CA7ABAC09B95C709EE5", 16)
	twoGy, _   = new(big.Int).SetString("1AE168FEA63DC339A3C58419466CEAEEF7F632653266D0E1236431A950CFE52A", 16)
	threeGx, _ = new(big.Int).SetString("F9308A019258C31049344F85F89D5229B531C845836F99B08601F113BCE036F9", 16)
	threeGy, _ = new(big.Int).SetString("388F7B0F632DE8140FE337E62A37F3566500A99934C2231B6CB9FD7584B8E672", 16)
)

func TestGenerator(t *testing.T) {
	g := Generator()
	assert.False(t, g.IsInfinity())
	assert.True(t, IsOnCurve(g))

	// Returned points are independent copies
	g2 := Generator()
	g.X.SetInt64(0)
	assert.True(t, g2.Equal(Generator()))
}

func TestAdd(t *testing.T) {
	g := Generator()

	// G + G = 2G
	twoG := Add(g, g)
	assert.Equal(t, 0, twoG.X.Cmp(twoGx))
	assert.Equal(t, 0, twoG.Y.Cmp(twoGy))

	// G + 2G = 3G
	threeG := Add(g, twoG)
	assert.Equal(t, 0, threeG.X.Cmp(threeGx))
	assert.Equal(t, 0, threeG.Y.Cmp(threeGy))

	// Identity
	assert.True(t, Add(Infinity(), g).Equal(g))
	assert.True(t, Add(g, Infinity()).Equal(g))
	assert.True(t, Add(Infinity(), Infinity()).IsInfinity())

	// P + (-P) = infinity
	assert.True(t, Add(g, Negate(g)).IsInfinity())
}

func TestNegate(t *testing.T) {
	g := Generator()

	neg := Negate(g)
	assert.True(t, IsOnCurve(neg))
	assert.Equal(t, 0, neg.X.Cmp(g.X))
	assert.NotEqual(t, 0, neg.Y.Cmp(g.Y))

	// Double negation round-trips
	assert.True(t, Negate(neg).Equal(g))

	// -infinity = infinity
	assert.True(t, Negate(Infinity()).IsInfinity())
}

func TestMultiply(t *testing.T) {
	g := Generator()

	// 2*G matches G+G
	assert.True(t, Multiply(big.NewInt(2), g).Equal(Add(g, g)))

	// 3*G matches the known vector
	threeG := Multiply(big.NewInt(3), g)
	assert.Equal(t, 0, threeG.X.Cmp(threeGx))
	assert.Equal(t, 0, threeG.Y.Cmp(threeGy))

	// Zero scalar and infinite point both give infinity
	assert.True(t, Multiply(big.NewInt(0), g).IsInfinity())
	assert.True(t, Multiply(big.NewInt(5), Infinity()).IsInfinity())

	// Scalars reduce mod N: (N+2)*G = 2*G
	nPlusTwo := new(big.Int).Add(N(), big.NewInt(2))
	assert.True(t, Multiply(nPlusTwo, g).Equal(Multiply(big.NewInt(2), g)))

	// Negative scalars: -1*G = -G, since -1 ≡ N-1 (mod N)
	assert.True(t, Multiply(big.NewInt(-1), g).Equal(Negate(g)))

	// N*G = infinity
	assert.True(t, Multiply(N(), g).IsInfinity())
}

func TestBaseMultiply(t *testing.T) {
	g := Generator()
	for _, k := range []int64{1, 2, 3, 17, 255} {
		assert.True(t, BaseMultiply(big.NewInt(k)).Equal(Multiply(big.NewInt(k), g)), "k=%d", k)
	}
	assert.True(t, BaseMultiply(big.NewInt(0)).IsInfinity())
}

// TestMultiplyAgainstBtcec cross-checks scalar multiplication against an
// independent secp256k1 implementation.
func TestMultiplyAgainstBtcec(t *testing.T) {
	nMinusOne := new(big.Int).Sub(N(), big.NewInt(1))
	scalars := []*big.Int{
		big.NewInt(1),
		big.NewInt(2),
		big.NewInt(3),
		big.NewInt(0xdeadbeef),
		nMinusOne,
	}
	for _, k := range scalars {
		got := BaseMultiply(k)
		wantX, wantY := btcec.S256().ScalarBaseMult(k.Bytes())
		require.Equal(t, 0, got.X.Cmp(wantX), "x mismatch for k=%v", k)
		require.Equal(t, 0, got.Y.Cmp(wantY), "y mismatch for k=%v", k)
	}
}

func TestDivide(t *testing.T) {
	g := Generator()
	twoG := Multiply(big.NewInt(2), g)

	// 2G / 2 = G
	half, err := Divide(big.NewInt(2), twoG)
	assert.NoError(t, err)
	assert.True(t, half.Equal(g))

	// Multiply then divide round-trips for a random scalar
	k, err := NewScalar()
	require.NoError(t, err)
	p := Multiply(k, g)
	back, err := Divide(k, p)
	assert.NoError(t, err)
	assert.True(t, back.Equal(g))

	// Division by zero fails
	_, err = Divide(big.NewInt(0), g)
	assert.ErrorIs(t, err, ErrNotInvertible)

	// Division by N fails the same way (N ≡ 0)
	_, err = Divide(N(), g)
	assert.ErrorIs(t, err, ErrNotInvertible)
}

func TestModInverse(t *testing.T) {
	inv, err := ModInverse(big.NewInt(3), N())
	assert.NoError(t, err)
	prod := new(big.Int).Mul(inv, big.NewInt(3))
	prod.Mod(prod, N())
	assert.Equal(t, 0, prod.Cmp(big.NewInt(1)))

	_, err = ModInverse(big.NewInt(0), N())
	assert.ErrorIs(t, err, ErrNotInvertible)
}

func TestNewScalar(t *testing.T) {
	k1, err := NewScalar()
	require.NoError(t, err)
	assert.True(t, k1.Sign() > 0)
	assert.True(t, k1.Cmp(N()) < 0)

	k2, err := NewScalar()
	require.NoError(t, err)
	assert.NotEqual(t, 0, k1.Cmp(k2))
}

func TestIsOnCurve(t *testing.T) {
	assert.True(t, IsOnCurve(Generator()))
	assert.False(t, IsOnCurve(Infinity()))
	assert.False(t, IsOnCurve(NewPoint(big.NewInt(1), big.NewInt(1))))
}

func TestPointEqual(t *testing.T) {
	g := Generator()
	assert.True(t, g.Equal(g.Clone()))
	assert.False(t, g.Equal(Infinity()))
	assert.False(t, Infinity().Equal(g))
	assert.True(t, Infinity().Equal(Infinity()))
	assert.False(t, g.Equal(Negate(g)))
}
