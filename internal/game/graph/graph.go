// Package graph holds the point-connectivity graph at the heart of the
// game. Points are nodes, operations are reciprocal edge pairs, and two
// facts spread through the structure as it grows: connectivity to the
// generator, and verified private keys.
package graph

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
	"github.com/keymaze/go-keymaze/pkg/keymaze"
)

// Graph is a single game board. It is not safe for concurrent use; the
// session serializes access.
type Graph struct {
	log *zap.SugaredLogger

	nodes   map[string]*Node   // by node id
	byPoint map[string]*Node   // by compressed public key hex
	edges   map[string]*Edge   // by edge identity
	adj     map[string][]*Edge // outgoing edges by node id

	generatorID string
}

// New creates a graph seeded with the generator node: label "G", private
// key 1, connected to itself by definition.
func New(log *zap.SugaredLogger) *Graph {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	g := &Graph{
		log:     log,
		nodes:   make(map[string]*Node),
		byPoint: make(map[string]*Node),
		edges:   make(map[string]*Edge),
		adj:     make(map[string][]*Edge),
	}

	gen := curve.Generator()
	hexKey, _ := curve.PointToPublicKeyHex(gen) // the generator always encodes
	seed := &Node{
		ID:           uuid.NewString(),
		Point:        gen,
		PublicKey:    hexKey,
		Label:        "G",
		PrivateKey:   big.NewInt(1),
		ConnectedToG: true,
		IsGenerator:  true,
	}
	g.nodes[seed.ID] = seed
	g.byPoint[seed.PublicKey] = seed
	g.generatorID = seed.ID
	return g
}

// Generator returns the seeded generator node.
func (g *Graph) Generator() *Node {
	return g.nodes[g.generatorID]
}

// NodeByPoint looks a node up by its point.
func (g *Graph) NodeByPoint(p curve.Point) (*Node, bool) {
	hexKey, err := curve.PointToPublicKeyHex(p)
	if err != nil {
		return nil, false
	}
	n, ok := g.byPoint[hexKey]
	return n, ok
}

// NodeByID looks a node up by id.
func (g *Graph) NodeByID(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes. The slice is fresh, the pointers are live.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// EdgesFrom returns the outgoing edges of a node.
func (g *Graph) EdgesFrom(nodeID string) []*Edge {
	edges := g.adj[nodeID]
	out := make([]*Edge, len(edges))
	copy(out, edges)
	return out
}

// Size reports the node and directed-edge counts.
func (g *Graph) Size() (nodes, edges int) {
	return len(g.nodes), len(g.edges)
}

// AddNode inserts a point or merges options into its existing node. If the
// merge changed what the node knows (connectivity or a key), the change is
// propagated to its neighbors.
func (g *Graph) AddNode(p curve.Point, opts NodeOptions) (*Node, error) {
	n, changed, err := g.addNode(p, opts)
	if err != nil {
		return nil, err
	}
	if changed {
		g.propagateFrom(n)
	}
	return n, nil
}

// addNode is AddNode without the propagation, for batch inserts. changed
// reports whether an existing node gained connectivity or a key.
func (g *Graph) addNode(p curve.Point, opts NodeOptions) (*Node, bool, error) {
	if p.IsInfinity() {
		return nil, false, curve.ErrPointAtInfinity
	}
	if !curve.IsOnCurve(p) {
		return nil, false, curve.ErrInvalidPoint
	}
	hexKey, err := curve.PointToPublicKeyHex(p)
	if err != nil {
		return nil, false, err
	}

	if n, ok := g.byPoint[hexKey]; ok {
		return n, g.mergeNode(n, opts), nil
	}

	n := &Node{
		ID:           uuid.NewString(),
		Point:        p.Clone(),
		PublicKey:    hexKey,
		Label:        opts.Label,
		ConnectedToG: opts.ConnectedToG,
		IsChallenge:  opts.IsChallenge,
	}
	if opts.PrivateKey != nil {
		if key, ok := g.verifiedKey(opts.PrivateKey, n); ok {
			n.PrivateKey = key
		}
	}
	g.nodes[n.ID] = n
	g.byPoint[hexKey] = n
	return n, false, nil
}

// mergeNode folds opts into an existing node. Flags are sticky, the label
// fills an empty slot, and a key is adopted only when the node has none
// and the candidate verifies.
func (g *Graph) mergeNode(n *Node, opts NodeOptions) bool {
	changed := false
	if opts.ConnectedToG && !n.ConnectedToG {
		n.ConnectedToG = true
		changed = true
	}
	if opts.IsChallenge {
		n.IsChallenge = true
	}
	if n.Label == "" && opts.Label != "" {
		n.Label = opts.Label
	}
	if opts.PrivateKey != nil {
		if n.PrivateKey == nil {
			if key, ok := g.verifiedKey(opts.PrivateKey, n); ok {
				n.PrivateKey = key
				changed = true
			}
		} else if key, ok := g.verifiedKey(opts.PrivateKey, n); ok && n.PrivateKey.Cmp(key) != 0 {
			// Both keys verify only if they are equal mod N, so a
			// differing verified candidate means the caller is confused.
			g.log.Warnw("conflicting verified keys for node, keeping existing",
				"node", n.ID, "publicKey", n.PublicKey)
		}
	}
	return changed
}

// verifiedKey normalizes a candidate key mod N and checks key*G against
// the node's point. Failures are logged and discarded, never fatal.
func (g *Graph) verifiedKey(candidate *big.Int, n *Node) (*big.Int, bool) {
	key := new(big.Int).Mod(candidate, curve.N())
	if !curve.BaseMultiply(key).Equal(n.Point) {
		g.log.Warnw("discarding private key that fails verification",
			"node", n.ID, "publicKey", n.PublicKey)
		return nil, false
	}
	return key, true
}

// Apply records one operation between two points: both nodes are inserted
// or merged, the edge and its reciprocal are inserted, and the result is
// propagated from whichever endpoints are connected. The claimed to-point
// is re-derived from the operation; a mismatch is rejected so the graph
// never holds an edge it cannot replay.
func (g *Graph) Apply(from, to curve.Point, op keymaze.Operation) (*Node, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	expected, err := op.ApplyToPoint(from)
	if err != nil {
		return nil, err
	}
	if !expected.Equal(to) {
		return nil, keymaze.NewOperationError(op, "operation does not map from-point to to-point", nil)
	}
	if to.IsInfinity() {
		return nil, keymaze.NewOperationError(op, "operation lands on the point at infinity", curve.ErrPointAtInfinity)
	}

	fromNode, _, err := g.addNode(from, NodeOptions{})
	if err != nil {
		return nil, fmt.Errorf("from point: %w", err)
	}
	toNode, _, err := g.addNode(to, NodeOptions{})
	if err != nil {
		return nil, fmt.Errorf("to point: %w", err)
	}

	g.insertEdgePair(fromNode, toNode, op)

	seeds := make([]*Node, 0, 2)
	if fromNode.ConnectedToG {
		seeds = append(seeds, fromNode)
	}
	if toNode.ConnectedToG {
		seeds = append(seeds, toNode)
	}
	if len(seeds) > 0 {
		g.propagateFrom(seeds...)
	}
	return toNode, nil
}

// insertEdgePair inserts op from a to b and its inverse from b to a.
// Either direction may already exist; then flags merge instead.
func (g *Graph) insertEdgePair(a, b *Node, op keymaze.Operation) {
	g.insertEdge(a, b, op)
	g.insertEdge(b, a, op.Inverse())
}

func (g *Graph) insertEdge(from, to *Node, op keymaze.Operation) {
	key := edgeKey(from.ID, to.ID, op)
	if e, ok := g.edges[key]; ok {
		mergeEdgeFlags(e, op)
		return
	}
	e := &Edge{
		ID:         key,
		FromNodeID: from.ID,
		ToNodeID:   to.ID,
		Op:         op,
	}
	g.edges[key] = e
	g.adj[from.ID] = append(g.adj[from.ID], e)
}

// mergeEdgeFlags merges a re-inserted operation into an existing edge.
// UserCreated is sticky: once a player has made an edge deliberately it
// stays user-created no matter how often the system re-derives it.
func mergeEdgeFlags(e *Edge, op keymaze.Operation) {
	if op.UserCreated {
		e.Op.UserCreated = true
	}
	if e.Op.Description == "" && op.Description != "" {
		e.Op.Description = op.Description
	}
}

// propagateFrom spreads connectivity and keys outward from the seeds.
// Connectivity crosses every edge; keys cross only user-created edges and
// only after verification. The queue re-admits a node whenever its state
// changes, which bounds total work because both facts are monotonic.
func (g *Graph) propagateFrom(seeds ...*Node) {
	queue := make([]*Node, 0, len(seeds))
	queued := make(map[string]bool, len(seeds))
	push := func(n *Node) {
		if !queued[n.ID] {
			queued[n.ID] = true
			queue = append(queue, n)
		}
	}
	for _, s := range seeds {
		push(s)
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		queued[u.ID] = false

		for _, e := range g.adj[u.ID] {
			v, ok := g.nodes[e.ToNodeID]
			if !ok {
				continue
			}
			changed := false

			if u.ConnectedToG && !v.ConnectedToG {
				v.ConnectedToG = true
				changed = true
			}

			if u.PrivateKey != nil && v.PrivateKey == nil && e.Op.UserCreated {
				candidate, err := e.Op.ApplyToKey(u.PrivateKey)
				if err != nil {
					g.log.Warnw("key composition failed across edge",
						"edge", e.ID, "error", err)
				} else if key, ok := g.verifiedKey(candidate, v); ok {
					v.PrivateKey = key
					changed = true
				}
			}

			if changed {
				push(v)
			}
		}
	}
}

// removeNode deletes a node and every edge touching it.
func (g *Graph) removeNode(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	for _, e := range g.adj[id] {
		neighbor := e.ToNodeID
		delete(g.edges, e.ID)
		if neighbor == id {
			// self edge, cleaned up with the adjacency list below
			continue
		}
		kept := g.adj[neighbor][:0]
		for _, back := range g.adj[neighbor] {
			if back.ToNodeID == id {
				delete(g.edges, back.ID)
				continue
			}
			kept = append(kept, back)
		}
		g.adj[neighbor] = kept
	}
	delete(g.adj, id)
	delete(g.byPoint, n.PublicKey)
	delete(g.nodes, id)
}
