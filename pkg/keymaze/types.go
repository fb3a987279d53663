package keymaze

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
)

// Common errors returned by the game engine
var (
	ErrUnknownMode        = errors.New("unknown game mode")
	ErrNodeNotFound       = errors.New("node not found")
	ErrSavedPointNotFound = errors.New("saved point not found")
	ErrNoChallenge        = errors.New("no challenge set")
	ErrChallengeUnsolved  = errors.New("challenge not solved")
	ErrZeroScalar         = errors.New("zero scalar is not reversible")
)

// Mode selects which of the engine's isolated games an operation targets.
type Mode string

const (
	// ModeDaily is the shared daily-challenge game.
	ModeDaily Mode = "daily"
	// ModePractice is the self-serve practice game.
	ModePractice Mode = "practice"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	return m == ModeDaily || m == ModePractice
}

// OpType enumerates the reversible point operations.
type OpType string

const (
	OpMultiply OpType = "multiply"
	OpDivide   OpType = "divide"
	OpAdd      OpType = "add"
	OpSubtract OpType = "subtract"
	OpNegate   OpType = "negate"
)

// Operation is one directed edge action: apply Type with Value to a point.
// Value holds the scalar as decimal or 0x-prefixed hex text and stays empty
// for negate. Scalar operations act on the exponent: multiply and divide
// scale the point, add and subtract move it by Value*G, negate mirrors it.
type Operation struct {
	Type        OpType
	Value       string
	Description string

	// UserCreated marks an edge the player made deliberately, as opposed
	// to decomposition substeps, automatic negations and batch fill-ins.
	// Verified private keys travel only across user-created edges.
	UserCreated bool

	// Bundled marks an edge produced by the path-bundling optimizer.
	// BundleCount is the number of original edges it replaced.
	Bundled     bool
	BundleCount int
}

func (op Operation) String() string {
	if op.Type == OpNegate {
		return string(op.Type)
	}
	return fmt.Sprintf("%s(%s)", op.Type, op.Value)
}

// Scalar parses the operation value. Negate carries no scalar.
func (op Operation) Scalar() (*big.Int, error) {
	if op.Type == OpNegate {
		return nil, fmt.Errorf("%s carries no scalar", op.Type)
	}
	return curve.ParseScalar(op.Value)
}

// Validate checks the operation shape: a known type, a parseable value, and
// a non-zero scalar for multiply and divide (zero would not be reversible).
func (op Operation) Validate() error {
	switch op.Type {
	case OpNegate:
		if op.Value != "" {
			return NewOperationError(op, "negate takes no value", nil)
		}
		return nil
	case OpMultiply, OpDivide, OpAdd, OpSubtract:
		v, err := curve.ParseScalar(op.Value)
		if err != nil {
			return NewOperationError(op, "malformed scalar", err)
		}
		if op.Type == OpMultiply || op.Type == OpDivide {
			if new(big.Int).Mod(v, curve.N()).Sign() == 0 {
				return NewOperationError(op, "scalar is zero mod N", ErrZeroScalar)
			}
		}
		return nil
	default:
		return NewOperationError(op, "unknown operation type", nil)
	}
}

// Inverse returns the operation that undoes op, used as the reciprocal
// edge of every inserted edge. UserCreated and bundle markers carry over.
func (op Operation) Inverse() Operation {
	inv := op
	switch op.Type {
	case OpMultiply:
		inv.Type = OpDivide
	case OpDivide:
		inv.Type = OpMultiply
	case OpAdd:
		inv.Type = OpSubtract
	case OpSubtract:
		inv.Type = OpAdd
	case OpNegate:
		// negate is its own inverse
	}
	return inv
}

// ApplyToPoint computes the point op maps p to.
func (op Operation) ApplyToPoint(p curve.Point) (curve.Point, error) {
	switch op.Type {
	case OpNegate:
		return curve.Negate(p), nil
	case OpMultiply:
		v, err := op.Scalar()
		if err != nil {
			return curve.Point{}, err
		}
		return curve.Multiply(v, p), nil
	case OpDivide:
		v, err := op.Scalar()
		if err != nil {
			return curve.Point{}, err
		}
		return curve.Divide(v, p)
	case OpAdd:
		v, err := op.Scalar()
		if err != nil {
			return curve.Point{}, err
		}
		return curve.Add(p, curve.BaseMultiply(v)), nil
	case OpSubtract:
		v, err := op.Scalar()
		if err != nil {
			return curve.Point{}, err
		}
		return curve.Add(p, curve.Negate(curve.BaseMultiply(v))), nil
	default:
		return curve.Point{}, NewOperationError(op, "unknown operation type", nil)
	}
}

// ApplyToKey computes the private key op maps k to, mod N. The result obeys
// ApplyToPoint: if p = k*G then op(p) = ApplyToKey(k)*G.
func (op Operation) ApplyToKey(k *big.Int) (*big.Int, error) {
	n := curve.N()
	out := new(big.Int)
	switch op.Type {
	case OpNegate:
		out.Neg(k)
	case OpMultiply:
		v, err := op.Scalar()
		if err != nil {
			return nil, err
		}
		out.Mul(k, v)
	case OpDivide:
		v, err := op.Scalar()
		if err != nil {
			return nil, err
		}
		inv, err := curve.ModInverse(new(big.Int).Mod(v, n), n)
		if err != nil {
			return nil, NewOperationError(op, "divisor not invertible", err)
		}
		out.Mul(k, inv)
	case OpAdd:
		v, err := op.Scalar()
		if err != nil {
			return nil, err
		}
		out.Add(k, v)
	case OpSubtract:
		v, err := op.Scalar()
		if err != nil {
			return nil, err
		}
		out.Sub(k, v)
	default:
		return nil, NewOperationError(op, "unknown operation type", nil)
	}
	return out.Mod(out, n), nil
}

// NodeInfo is a read-only view of one graph node.
type NodeInfo struct {
	ID           string
	Point        curve.Point
	PublicKey    string // compressed hex
	Label        string
	PrivateKey   *big.Int // nil until resolved
	ConnectedToG bool
	IsGenerator  bool
	IsChallenge  bool
}

// BatchStep is one precomputed edge of a system-generated chain. ToKey
// optionally carries the already-computed private key of the To point.
type BatchStep struct {
	From  curve.Point
	To    curve.Point
	Op    Operation
	ToKey *big.Int
}

// TraceStep is one double-and-add move of a scalar decomposition. Key is
// the private key after the step when the start key was known, nil
// otherwise.
type TraceStep struct {
	Point curve.Point
	Op    Operation
	Key   *big.Int
}

// Trace is the visible decomposition of one scalar multiplication.
type Trace struct {
	Result curve.Point
	Steps  []TraceStep
}

// BatchSteps converts the trace into batch-insertable edges anchored at
// start.
func (tr *Trace) BatchSteps(start curve.Point) []BatchStep {
	steps := make([]BatchStep, 0, len(tr.Steps))
	from := start
	for _, st := range tr.Steps {
		steps = append(steps, BatchStep{
			From:  from,
			To:    st.Point,
			Op:    st.Op,
			ToKey: st.Key,
		})
		from = st.Point
	}
	return steps
}

// SavedPoint is a player-pinned point. Its lifecycle is independent of the
// graph: pruning a node never drops the pin or its cached key.
type SavedPoint struct {
	ID         string
	PublicKey  string
	Point      curve.Point
	Label      string
	PrivateKey *big.Int
	SavedAt    time.Time
}
