package graph

import (
	"fmt"
	"math/big"

	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
	"github.com/keymaze/go-keymaze/pkg/keymaze"
)

// Node is one point the player has visited. Nodes are deduplicated by
// compressed public key, so every point appears in the graph exactly once.
type Node struct {
	ID        string
	Point     curve.Point
	PublicKey string // compressed hex, the dedup key
	Label     string

	// PrivateKey is nil until a verified key reaches the node. A stored
	// key always satisfies PrivateKey*G == Point.
	PrivateKey *big.Int

	// ConnectedToG is monotonic: once a path to the generator exists it
	// never goes away, because edges are never removed singly.
	ConnectedToG bool

	IsGenerator bool
	IsChallenge bool
}

// Edge is one direction of a reciprocal pair. Its identity is the tuple
// (from, to, operation type, operation value); re-inserting the same tuple
// merges flags instead of duplicating the edge.
type Edge struct {
	ID         string
	FromNodeID string
	ToNodeID   string
	Op         keymaze.Operation
}

func edgeKey(fromID, toID string, op keymaze.Operation) string {
	return fmt.Sprintf("%s|%s|%s|%s", fromID, toID, op.Type, op.Value)
}

// NodeOptions carries the optional attributes of a node insert. Merging
// into an existing node is additive: flags turn on and stay on, a label
// fills an empty slot, and a private key is adopted only after it verifies
// against the node's point.
type NodeOptions struct {
	Label        string
	PrivateKey   *big.Int
	ConnectedToG bool
	IsChallenge  bool
}
