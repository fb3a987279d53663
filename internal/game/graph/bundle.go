package graph

import (
	"fmt"
	"math/big"

	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
	"github.com/keymaze/go-keymaze/pkg/keymaze"
)

// BundleResult reports what the bundling optimizer did for one save.
type BundleResult struct {
	Bundled bool
	Reason  string // set when Bundled is false

	From   *Node // the anchor the path was folded toward
	To     *Node // the saved target
	Op     keymaze.Operation
	Folded int // edges replaced by the bundle edge
	Pruned int // interior nodes removed
}

// Bundle collapses the shortest path between a just-saved point and the
// nearest other saved point or the generator into one equivalent edge,
// then prunes the interior nodes that served no other purpose. saved is
// the set of all saved public keys, including the target's.
//
// The replacement edge must be exact. Composing the path gives an affine
// map k -> m*k + a (mod N); it collapses to add(kB-kA) when both endpoint
// keys are known, multiply(m) when a = 0, add(a) when m = 1, and is
// otherwise skipped because no single scalar operation expresses it.
func (g *Graph) Bundle(target curve.Point, saved map[string]bool) (*BundleResult, error) {
	tNode, ok := g.NodeByPoint(target)
	if !ok {
		return nil, fmt.Errorf("bundle target: %w", keymaze.ErrNodeNotFound)
	}

	pathEdges, anchor := g.nearestAnchor(tNode, saved)
	if anchor == nil {
		return &BundleResult{Reason: "no saved point or generator reachable"}, nil
	}
	if len(pathEdges) < 2 {
		return &BundleResult{Reason: "path is already a single edge"}, nil
	}

	// pathEdges run target -> anchor; the bundle edge runs anchor ->
	// target, so compose the inverses in reverse order.
	m := big.NewInt(1)
	a := big.NewInt(0)
	n := curve.N()
	for i := len(pathEdges) - 1; i >= 0; i-- {
		if err := composeAffine(m, a, pathEdges[i].Op.Inverse(), n); err != nil {
			return nil, fmt.Errorf("bundle composition: %w", err)
		}
	}

	folded := len(pathEdges)
	op, ok := bundleOp(anchor, tNode, m, a, n)
	if !ok {
		g.log.Infow("bundle skipped, path not expressible as one operation",
			"from", anchor.PublicKey, "to", tNode.PublicKey, "folded", folded)
		return &BundleResult{Reason: "path needs both endpoint keys"}, nil
	}
	op.Description = fmt.Sprintf("bundled %d operations", folded)
	op.UserCreated = true
	op.Bundled = true
	op.BundleCount = folded

	if _, err := g.Apply(anchor.Point, tNode.Point, op); err != nil {
		return nil, fmt.Errorf("bundle edge: %w", err)
	}

	pruned := g.prunePath(pathEdges, tNode, anchor, saved)

	g.log.Infow("bundled path",
		"from", anchor.PublicKey, "to", tNode.PublicKey,
		"op", op.String(), "folded", folded, "pruned", pruned)
	return &BundleResult{
		Bundled: true,
		From:    anchor,
		To:      tNode,
		Op:      op,
		Folded:  folded,
		Pruned:  pruned,
	}, nil
}

// nearestAnchor finds the closest node by hop count that is the generator
// or another saved point. It returns the traversed edges in target-to-
// anchor order.
func (g *Graph) nearestAnchor(target *Node, saved map[string]bool) ([]*Edge, *Node) {
	isAnchor := func(n *Node) bool {
		if n.ID == target.ID {
			return false
		}
		return n.IsGenerator || saved[n.PublicKey]
	}

	parent := make(map[string]*Edge)
	visited := map[string]bool{target.ID: true}
	queue := []*Node{target}
	var anchor *Node

	for len(queue) > 0 && anchor == nil {
		u := queue[0]
		queue = queue[1:]
		for _, e := range g.adj[u.ID] {
			v, ok := g.nodes[e.ToNodeID]
			if !ok || visited[v.ID] {
				continue
			}
			visited[v.ID] = true
			parent[v.ID] = e
			if isAnchor(v) {
				anchor = v
				break
			}
			queue = append(queue, v)
		}
	}
	if anchor == nil {
		return nil, nil
	}

	// Walk parents back from the anchor to order edges target -> anchor
	var rev []*Edge
	for id := anchor.ID; id != target.ID; {
		e := parent[id]
		rev = append(rev, e)
		id = e.FromNodeID
	}
	path := make([]*Edge, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path, anchor
}

// composeAffine folds one operation into the running map k -> m*k + a.
func composeAffine(m, a *big.Int, op keymaze.Operation, n *big.Int) error {
	switch op.Type {
	case keymaze.OpNegate:
		m.Neg(m)
		a.Neg(a)
	case keymaze.OpMultiply:
		v, err := op.Scalar()
		if err != nil {
			return err
		}
		m.Mul(m, v)
		a.Mul(a, v)
	case keymaze.OpDivide:
		v, err := op.Scalar()
		if err != nil {
			return err
		}
		inv, err := curve.ModInverse(new(big.Int).Mod(v, n), n)
		if err != nil {
			return err
		}
		m.Mul(m, inv)
		a.Mul(a, inv)
	case keymaze.OpAdd:
		v, err := op.Scalar()
		if err != nil {
			return err
		}
		a.Add(a, v)
	case keymaze.OpSubtract:
		v, err := op.Scalar()
		if err != nil {
			return err
		}
		a.Sub(a, v)
	default:
		return keymaze.NewOperationError(op, "unknown operation type", nil)
	}
	m.Mod(m, n)
	a.Mod(a, n)
	return nil
}

// bundleOp picks the single operation equivalent to the composed map.
func bundleOp(anchor, target *Node, m, a, n *big.Int) (keymaze.Operation, bool) {
	if anchor.PrivateKey != nil && target.PrivateKey != nil {
		delta := new(big.Int).Sub(target.PrivateKey, anchor.PrivateKey)
		delta.Mod(delta, n)
		return keymaze.Operation{Type: keymaze.OpAdd, Value: curve.FormatScalar(delta)}, true
	}
	one := big.NewInt(1)
	switch {
	case a.Sign() == 0 && m.Cmp(one) == 0:
		// identity map between distinct nodes cannot happen with exact
		// edges, but refuse rather than insert a self-contradiction
		return keymaze.Operation{}, false
	case a.Sign() == 0:
		return keymaze.Operation{Type: keymaze.OpMultiply, Value: curve.FormatScalar(m)}, true
	case m.Cmp(one) == 0:
		return keymaze.Operation{Type: keymaze.OpAdd, Value: curve.FormatScalar(a)}, true
	default:
		return keymaze.Operation{}, false
	}
}

// prunePath removes the interior nodes of a bundled path. Saved points,
// the generator, challenge nodes and junctions (nodes with a neighbor off
// the path) survive.
func (g *Graph) prunePath(pathEdges []*Edge, target, anchor *Node, saved map[string]bool) int {
	pathSet := map[string]bool{target.ID: true, anchor.ID: true}
	var interior []*Node
	for _, e := range pathEdges[:len(pathEdges)-1] {
		if n, ok := g.nodes[e.ToNodeID]; ok {
			pathSet[n.ID] = true
			interior = append(interior, n)
		}
	}

	// Classify first so one removal cannot affect another's junction test
	var doomed []*Node
	for _, n := range interior {
		if n.IsGenerator || n.IsChallenge || saved[n.PublicKey] {
			continue
		}
		junction := false
		for _, e := range g.adj[n.ID] {
			if !pathSet[e.ToNodeID] {
				junction = true
				break
			}
		}
		if !junction {
			doomed = append(doomed, n)
		}
	}
	for _, n := range doomed {
		g.removeNode(n.ID)
	}
	return len(doomed)
}
