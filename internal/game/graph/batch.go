package graph

import (
	"fmt"

	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
	"github.com/keymaze/go-keymaze/pkg/keymaze"
)

// BatchLabel is stamped on the final node of a batch chain.
const BatchLabel = "Batch Operation Result"

// ApplyBatch inserts a precomputed chain of steps in one pass. No
// propagation runs between steps: connectivity is pre-anchored from the
// chain endpoints, precomputed keys are assigned directly (still subject
// to verification), and a single propagation at the end is seeded from
// every chain node that came out connected. The whole chain is validated
// before the graph is touched.
func (g *Graph) ApplyBatch(steps []keymaze.BatchStep) error {
	if len(steps) == 0 {
		return nil
	}

	// 1. Validate the whole chain up front
	for i, st := range steps {
		if err := st.Op.Validate(); err != nil {
			return fmt.Errorf("batch step %d: %w", i, err)
		}
		if st.From.IsInfinity() || !curve.IsOnCurve(st.From) {
			return fmt.Errorf("batch step %d: from point: %w", i, curve.ErrInvalidPoint)
		}
		if st.To.IsInfinity() || !curve.IsOnCurve(st.To) {
			return fmt.Errorf("batch step %d: to point: %w", i, curve.ErrInvalidPoint)
		}
		expected, err := st.Op.ApplyToPoint(st.From)
		if err != nil {
			return fmt.Errorf("batch step %d: %w", i, err)
		}
		if !expected.Equal(st.To) {
			return fmt.Errorf("batch step %d: operation does not map from-point to to-point", i)
		}
		if i > 0 && !st.From.Equal(steps[i-1].To) {
			return fmt.Errorf("batch step %d: chain is broken", i)
		}
	}

	// 2. Anchoring: a chain touching a connected endpoint is connected
	// everywhere, so the nodes can be pre-set instead of BFS-discovered.
	anchored := false
	if n, ok := g.NodeByPoint(steps[0].From); ok && n.ConnectedToG {
		anchored = true
	}
	if !anchored {
		if n, ok := g.NodeByPoint(steps[len(steps)-1].To); ok && n.ConnectedToG {
			anchored = true
		}
	}

	// 3. Insert nodes and edges without propagating
	first, _, err := g.addNode(steps[0].From, NodeOptions{ConnectedToG: anchored})
	if err != nil {
		return fmt.Errorf("batch chain start: %w", err)
	}
	chain := make([]*Node, 0, len(steps)+1)
	chain = append(chain, first)
	for i, st := range steps {
		toNode, _, err := g.addNode(st.To, NodeOptions{
			ConnectedToG: anchored,
			PrivateKey:   st.ToKey,
		})
		if err != nil {
			return fmt.Errorf("batch step %d: %w", i, err)
		}
		g.insertEdgePair(chain[len(chain)-1], toNode, st.Op)
		chain = append(chain, toNode)
	}

	// 4. Label the final node
	last := chain[len(chain)-1]
	if last.Label == "" {
		last.Label = BatchLabel
	}

	// 5. One propagation pass, seeded from the connected chain nodes.
	// This also covers a chain that met a connected node mid-way.
	seeds := make([]*Node, 0, len(chain))
	for _, n := range chain {
		if n.ConnectedToG {
			seeds = append(seeds, n)
		}
	}
	if len(seeds) > 0 {
		g.propagateFrom(seeds...)
	}

	g.log.Debugw("batch applied",
		"steps", len(steps), "anchored", anchored, "seeds", len(seeds))
	return nil
}
