package keymaze

import (
	"math/big"

	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
)

// Engine is the game surface. Implementations keep one fully isolated game
// per Mode: separate graphs, saved points and challenges.
type Engine interface {
	// ApplyOperation applies one player operation starting from a point,
	// records the system decomposition for multiply/divide plus the single
	// user-created edge, propagates, and returns the resulting node.
	ApplyOperation(mode Mode, from curve.Point, op Operation) (*NodeInfo, error)

	// ApplyBatch inserts a precomputed chain without per-step propagation,
	// then propagates once from every chain node that came out connected.
	ApplyBatch(mode Mode, steps []BatchStep) error

	// GetNode returns the node view for a point, or ErrNodeNotFound.
	GetNode(mode Mode, point curve.Point) (*NodeInfo, error)

	// Decompose expands k*start into visible double-and-add steps.
	// startKey may be nil when the private key of start is unknown.
	Decompose(k *big.Int, start curve.Point, startKey *big.Int) (*Trace, error)

	// SetChallenge installs point as the mode's challenge node.
	SetChallenge(mode Mode, point curve.Point, label string) error

	// Solved reports whether the mode's challenge key has been resolved
	// and returns the key when it has.
	Solved(mode Mode) (bool, *big.Int, error)

	// SavePoint pins a point and runs the path-bundling optimizer toward
	// the nearest other saved point or the generator.
	SavePoint(mode Mode, point curve.Point, label string) (*SavedPoint, error)

	// UnsavePoint removes a pinned point by id.
	UnsavePoint(mode Mode, id string) error

	// SavedPoints lists the mode's pinned points in save order.
	SavedPoints(mode Mode) ([]*SavedPoint, error)

	// Reset discards the mode's graph, saved points and challenge, and
	// reseeds the generator node.
	Reset(mode Mode) error
}
