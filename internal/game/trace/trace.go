// Package trace expands scalar multiplications into the double-and-add
// steps the player can see on the board. Every step is an edge the graph
// can verify and re-apply: doubles are multiply-by-2, conditional adds are
// encoded as an exact scalar operation rather than a raw point addition.
package trace

import (
	"fmt"
	"math/big"

	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
	"github.com/keymaze/go-keymaze/pkg/keymaze"
)

const (
	descDouble = "double"
	descAdd    = "add start point"
	descNegate = "negate"
)

// Decompose expands k*start into visible double-and-add steps, walking the
// bits of |k| mod N from the MSB down. startKey is the private key of start
// when the caller knows it; pass nil otherwise and the steps carry no keys.
//
// A negative k is traced as |k| followed by one final negation step. k
// values that reduce to 0 or 1 mod N yield no steps.
func Decompose(k *big.Int, start curve.Point, startKey *big.Int) (*keymaze.Trace, error) {
	if start.IsInfinity() {
		return nil, curve.ErrPointAtInfinity
	}
	if !curve.IsOnCurve(start) {
		return nil, curve.ErrInvalidPoint
	}
	if k == nil {
		return nil, fmt.Errorf("decompose: %w: nil", curve.ErrInvalidScalar)
	}

	n := curve.N()
	negative := k.Sign() < 0
	m := new(big.Int).Abs(k)
	m.Mod(m, n)

	// |k| ≡ 0 collapses to the point at infinity; there is nothing to
	// trace and negation would not change it.
	if m.Sign() == 0 {
		return &keymaze.Trace{Result: curve.Infinity()}, nil
	}

	var key *big.Int
	if startKey != nil {
		key = new(big.Int).Mod(startKey, n)
	}

	tr := &keymaze.Trace{}
	cur := start.Clone()
	prefix := big.NewInt(1) // multiple of start reached so far

	for i := m.BitLen() - 2; i >= 0; i-- {
		// 1. Double
		cur = curve.Multiply(big.NewInt(2), cur)
		prefix.Lsh(prefix, 1)
		if key != nil {
			key.Lsh(key, 1)
			key.Mod(key, n)
		}
		tr.Steps = append(tr.Steps, step(cur, keymaze.Operation{
			Type:        keymaze.OpMultiply,
			Value:       "2",
			Description: descDouble,
		}, key))

		// 2. Conditional add of the start point
		if m.Bit(i) == 0 {
			continue
		}
		cur = curve.Add(cur, start)
		op, err := addStepOp(prefix, key != nil, startKey, n)
		if err != nil {
			return nil, err
		}
		prefix.Add(prefix, big.NewInt(1))
		if key != nil {
			key.Add(key, new(big.Int).Mod(startKey, n))
			key.Mod(key, n)
		}
		tr.Steps = append(tr.Steps, step(cur, op, key))
	}

	// 3. Negative scalars finish with one system negation
	if negative {
		cur = curve.Negate(cur)
		if key != nil {
			key.Neg(key)
			key.Mod(key, n)
		}
		tr.Steps = append(tr.Steps, step(cur, keymaze.Operation{
			Type:        keymaze.OpNegate,
			Description: descNegate,
		}, key))
	}

	tr.Result = cur
	return tr, nil
}

// addStepOp encodes "add the start point" as a scalar operation. With a
// known start key s the edge is add(s): P + s*G is exactly P + start. With
// an unknown key the edge becomes the multiply that maps prefix*start to
// (prefix+1)*start, which is point-exact without naming the key.
func addStepOp(prefix *big.Int, keyKnown bool, startKey, n *big.Int) (keymaze.Operation, error) {
	if keyKnown {
		v := new(big.Int).Mod(startKey, n)
		return keymaze.Operation{
			Type:        keymaze.OpAdd,
			Value:       curve.FormatScalar(v),
			Description: descAdd,
		}, nil
	}
	inv, err := curve.ModInverse(new(big.Int).Mod(prefix, n), n)
	if err != nil {
		return keymaze.Operation{}, fmt.Errorf("add step at prefix %v: %w", prefix, err)
	}
	ratio := new(big.Int).Add(prefix, big.NewInt(1))
	ratio.Mul(ratio, inv)
	ratio.Mod(ratio, n)
	return keymaze.Operation{
		Type:        keymaze.OpMultiply,
		Value:       curve.FormatScalar(ratio),
		Description: descAdd,
	}, nil
}

func step(p curve.Point, op keymaze.Operation, key *big.Int) keymaze.TraceStep {
	st := keymaze.TraceStep{Point: p.Clone(), Op: op}
	if key != nil {
		st.Key = new(big.Int).Set(key)
	}
	return st
}
