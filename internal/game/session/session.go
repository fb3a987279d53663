// Package session owns the live game state. A Session keeps one fully
// isolated game per mode (graph, saved points, challenge) and implements
// the engine surface the transports expose.
package session

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keymaze/go-keymaze/internal/crypto/receipt"
	"github.com/keymaze/go-keymaze/internal/game/graph"
	"github.com/keymaze/go-keymaze/internal/game/trace"
	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
	"github.com/keymaze/go-keymaze/pkg/keymaze"
)

// game is the state of one isolated mode.
type game struct {
	graph     *graph.Graph
	saved     map[string]*keymaze.SavedPoint // by saved-point id
	saveOrder []string

	challengeID  string // node id of the current challenge, "" when unset
	challengeKey string // compressed hex of the challenge point

	// practice bookkeeping: the generated secret and its receipt stay
	// sealed until the challenge is solved.
	secret *big.Int
	rec    *receipt.Receipt
}

func newGame(log *zap.SugaredLogger) *game {
	return &game{
		graph: graph.New(log),
		saved: make(map[string]*keymaze.SavedPoint),
	}
}

// Session implements keymaze.Engine.
type Session struct {
	log *zap.SugaredLogger

	mu    sync.Mutex
	games map[keymaze.Mode]*game
}

var _ keymaze.Engine = (*Session)(nil)

// New creates a session with fresh daily and practice games.
func New(log *zap.SugaredLogger) *Session {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Session{
		log: log,
		games: map[keymaze.Mode]*game{
			keymaze.ModeDaily:    newGame(log),
			keymaze.ModePractice: newGame(log),
		},
	}
}

// game must be called with s.mu held.
func (s *Session) game(mode keymaze.Mode) (*game, error) {
	gm, ok := s.games[mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", keymaze.ErrUnknownMode, mode)
	}
	return gm, nil
}

// ApplyOperation applies one player-created operation to the point from.
// Multiply and divide first leave their double-and-add trail in the graph
// as system edges; the player's own edge is inserted last.
func (s *Session) ApplyOperation(mode keymaze.Mode, from curve.Point, op keymaze.Operation) (*keymaze.NodeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gm, err := s.game(mode)
	if err != nil {
		return nil, err
	}

	// 1. Validate the operation and the starting point.
	if err := op.Validate(); err != nil {
		return nil, err
	}
	if !curve.IsOnCurve(from) {
		return nil, fmt.Errorf("%w: origin %s", curve.ErrInvalidPoint, from)
	}
	op.UserCreated = true

	// 2. Compute the destination up front so impossible moves fail before
	// anything is inserted.
	to, err := op.ApplyToPoint(from)
	if err != nil {
		return nil, err
	}
	if to.IsInfinity() {
		return nil, keymaze.NewOperationError(op, "result is the point at infinity", curve.ErrPointAtInfinity)
	}

	wasSolved := gm.solved()

	// 3. Multiply and divide expose their decomposition trail first.
	if op.Type == keymaze.OpMultiply || op.Type == keymaze.OpDivide {
		if err := insertTrail(gm, from, op); err != nil {
			return nil, err
		}
	}

	// 4. Insert the player's edge and its reciprocal, then propagate.
	node, err := gm.graph.Apply(from, to, op)
	if err != nil {
		return nil, err
	}

	s.log.Infow("operation applied",
		"mode", mode,
		"op", op.String(),
		"result", node.PublicKey,
		"connected", node.ConnectedToG,
		"keyKnown", node.PrivateKey != nil,
	)
	if !wasSolved && gm.solved() {
		s.log.Infow("challenge solved", "mode", mode, "challenge", gm.challengeKey)
	}

	return toInfo(node), nil
}

// insertTrail batch-inserts the double-and-add decomposition of a multiply
// or divide edge. Divide decomposes the modular inverse of its scalar.
func insertTrail(gm *game, from curve.Point, op keymaze.Operation) error {
	v, err := op.Scalar()
	if err != nil {
		return err
	}
	k := v
	if op.Type == keymaze.OpDivide {
		n := curve.N()
		k, err = curve.ModInverse(new(big.Int).Mod(v, n), n)
		if err != nil {
			return keymaze.NewOperationError(op, "divisor not invertible", err)
		}
	}

	var startKey *big.Int
	if node, ok := gm.graph.NodeByPoint(from); ok {
		startKey = node.PrivateKey
	}

	tr, err := trace.Decompose(k, from, startKey)
	if err != nil {
		return err
	}
	steps := tr.BatchSteps(from)
	if len(steps) == 0 {
		return nil
	}
	return gm.graph.ApplyBatch(steps)
}

// ApplyBatch inserts a precomputed chain of edges into the mode's graph.
func (s *Session) ApplyBatch(mode keymaze.Mode, steps []keymaze.BatchStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gm, err := s.game(mode)
	if err != nil {
		return err
	}
	return gm.graph.ApplyBatch(steps)
}

// GetNode returns the node view for a point.
func (s *Session) GetNode(mode keymaze.Mode, p curve.Point) (*keymaze.NodeInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gm, err := s.game(mode)
	if err != nil {
		return nil, err
	}
	node, ok := gm.graph.NodeByPoint(p)
	if !ok {
		return nil, keymaze.ErrNodeNotFound
	}
	return toInfo(node), nil
}

// Decompose previews the double-and-add trail of k*start without touching
// any game state.
func (s *Session) Decompose(k *big.Int, start curve.Point, startKey *big.Int) (*keymaze.Trace, error) {
	return trace.Decompose(k, start, startKey)
}

// SetChallenge installs point as the mode's challenge node.
func (s *Session) SetChallenge(mode keymaze.Mode, p curve.Point, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gm, err := s.game(mode)
	if err != nil {
		return err
	}
	if err := gm.setChallenge(p, label); err != nil {
		return err
	}
	s.log.Infow("challenge set", "mode", mode, "challenge", gm.challengeKey, "label", label)
	return nil
}

func (gm *game) setChallenge(p curve.Point, label string) error {
	if label == "" {
		label = "Challenge"
	}
	node, err := gm.graph.AddNode(p, graph.NodeOptions{Label: label, IsChallenge: true})
	if err != nil {
		return err
	}
	gm.challengeID = node.ID
	gm.challengeKey = node.PublicKey
	return nil
}

func (gm *game) challengeNode() *graph.Node {
	if gm.challengeID == "" {
		return nil
	}
	node, ok := gm.graph.NodeByID(gm.challengeID)
	if !ok {
		return nil
	}
	return node
}

func (gm *game) solved() bool {
	node := gm.challengeNode()
	return node != nil && node.PrivateKey != nil
}

// Solved reports whether the mode's challenge key has been resolved, and
// returns the key when it has.
func (s *Session) Solved(mode keymaze.Mode) (bool, *big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gm, err := s.game(mode)
	if err != nil {
		return false, nil, err
	}
	if gm.challengeID == "" {
		return false, nil, keymaze.ErrNoChallenge
	}
	node := gm.challengeNode()
	if node == nil || node.PrivateKey == nil {
		return false, nil, nil
	}
	return true, new(big.Int).Set(node.PrivateKey), nil
}

// SavePoint pins a point. Saving inserts the node if the player has not
// visited it yet, then runs the bundling optimizer from the pin toward the
// nearest other anchor.
func (s *Session) SavePoint(mode keymaze.Mode, p curve.Point, label string) (*keymaze.SavedPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gm, err := s.game(mode)
	if err != nil {
		return nil, err
	}

	// 1. Make sure the point exists as a node.
	node, err := gm.graph.AddNode(p, graph.NodeOptions{Label: label})
	if err != nil {
		return nil, err
	}

	// 2. One pin per point: re-saving returns the existing pin.
	for _, id := range gm.saveOrder {
		if sp := gm.saved[id]; sp.PublicKey == node.PublicKey {
			return copyPin(sp), nil
		}
	}

	sp := &keymaze.SavedPoint{
		ID:        uuid.NewString(),
		PublicKey: node.PublicKey,
		Point:     node.Point.Clone(),
		Label:     node.Label,
		SavedAt:   time.Now(),
	}
	if node.PrivateKey != nil {
		sp.PrivateKey = new(big.Int).Set(node.PrivateKey)
	}
	gm.saved[sp.ID] = sp
	gm.saveOrder = append(gm.saveOrder, sp.ID)

	// 3. Bundling pass: collapse the path back to the nearest anchor.
	res, err := gm.graph.Bundle(p, gm.savedSet())
	if err != nil {
		return nil, err
	}
	if res.Bundled {
		s.log.Infow("path bundled",
			"mode", mode,
			"point", sp.PublicKey,
			"op", res.Op.String(),
			"folded", res.Folded,
			"pruned", res.Pruned,
		)
	} else {
		s.log.Debugw("bundling skipped", "mode", mode, "point", sp.PublicKey, "reason", res.Reason)
	}

	return copyPin(sp), nil
}

// savedSet lists the pinned public keys for bundling anchor checks.
func (gm *game) savedSet() map[string]bool {
	set := make(map[string]bool, len(gm.saved))
	for _, sp := range gm.saved {
		set[sp.PublicKey] = true
	}
	return set
}

// UnsavePoint drops a pin. The node itself stays in the graph until a later
// bundling pass prunes it.
func (s *Session) UnsavePoint(mode keymaze.Mode, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gm, err := s.game(mode)
	if err != nil {
		return err
	}
	if _, ok := gm.saved[id]; !ok {
		return keymaze.ErrSavedPointNotFound
	}
	delete(gm.saved, id)
	for i, sid := range gm.saveOrder {
		if sid == id {
			gm.saveOrder = append(gm.saveOrder[:i], gm.saveOrder[i+1:]...)
			break
		}
	}
	return nil
}

// SavedPoints lists the pins in save order. Keys that propagation resolved
// after a point was pinned are filled in on the way out.
func (s *Session) SavedPoints(mode keymaze.Mode) ([]*keymaze.SavedPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gm, err := s.game(mode)
	if err != nil {
		return nil, err
	}
	out := make([]*keymaze.SavedPoint, 0, len(gm.saveOrder))
	for _, id := range gm.saveOrder {
		sp := gm.saved[id]
		if sp.PrivateKey == nil {
			if node, ok := gm.graph.NodeByPoint(sp.Point); ok && node.PrivateKey != nil {
				sp.PrivateKey = new(big.Int).Set(node.PrivateKey)
			}
		}
		out = append(out, copyPin(sp))
	}
	return out, nil
}

// Reset discards the mode's game and starts a fresh one.
func (s *Session) Reset(mode keymaze.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.game(mode); err != nil {
		return err
	}
	s.games[mode] = newGame(s.log)
	s.log.Infow("game reset", "mode", mode)
	return nil
}

// toInfo snapshots a graph node into the read-only engine view.
func toInfo(n *graph.Node) *keymaze.NodeInfo {
	info := &keymaze.NodeInfo{
		ID:           n.ID,
		Point:        n.Point.Clone(),
		PublicKey:    n.PublicKey,
		Label:        n.Label,
		ConnectedToG: n.ConnectedToG,
		IsGenerator:  n.IsGenerator,
		IsChallenge:  n.IsChallenge,
	}
	if n.PrivateKey != nil {
		info.PrivateKey = new(big.Int).Set(n.PrivateKey)
	}
	return info
}

func copyPin(sp *keymaze.SavedPoint) *keymaze.SavedPoint {
	out := *sp
	out.Point = sp.Point.Clone()
	if sp.PrivateKey != nil {
		out.PrivateKey = new(big.Int).Set(sp.PrivateKey)
	}
	return &out
}
