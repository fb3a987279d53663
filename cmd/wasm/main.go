//go:build js && wasm

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"syscall/js"
	"time"

	"github.com/google/uuid"

	"github.com/keymaze/go-keymaze/internal/game/session"
	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
	"github.com/keymaze/go-keymaze/pkg/keymaze"
)

// Active engines by session handle. NewGame creates one and hands the
// handle back to JS; every other call starts with the handle.
var sessions = make(map[string]*session.Session)

func main() {
	c := make(chan struct{}, 0)

	fmt.Println("KeyMaze WASM Initialized")

	// Expose Go functions to JS
	js.Global().Set("KeyMaze", map[string]interface{}{
		"NewGame":              js.FuncOf(NewGame),
		"ApplyOperation":       js.FuncOf(ApplyOperation),
		"ApplyBatch":           js.FuncOf(ApplyBatch),
		"GetNode":              js.FuncOf(GetNode),
		"Decompose":            js.FuncOf(Decompose),
		"SetChallenge":         js.FuncOf(SetChallenge),
		"NewPracticeChallenge": js.FuncOf(NewPracticeChallenge),
		"Solved":               js.FuncOf(Solved),
		"RevealPractice":       js.FuncOf(RevealPractice),
		"SavePoint":            js.FuncOf(SavePoint),
		"UnsavePoint":          js.FuncOf(UnsavePoint),
		"SavedPoints":          js.FuncOf(SavedPoints),
		"Reset":                js.FuncOf(Reset),
	})

	<-c
}

// NewGame creates a fresh engine with empty daily and practice boards.
// Returns:
// {"sessionID": "..."}
func NewGame(this js.Value, args []js.Value) interface{} {
	handle := uuid.NewString()
	sessions[handle] = session.New(nil)
	return marshal(map[string]interface{}{"sessionID": handle})
}

// ApplyOperation applies one player operation.
// Arguments:
// 0: session handle
// 1: mode ("daily" | "practice")
// 2: public key hex of the starting point
// 3: JSON operation, e.g. {"type":"multiply","value":"42"}
// Returns:
// JSON node or "error: ..."
func ApplyOperation(this js.Value, args []js.Value) interface{} {
	if len(args) != 4 {
		return "error: expected 4 arguments (sessionID, mode, publicKey, jsonOp)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	from, err := curve.PublicKeyHexToPoint(args[2].String())
	if err != nil {
		return fmt.Sprintf("error: invalid public key: %v", err)
	}

	var dto operationDTO
	if err := json.Unmarshal([]byte(args[3].String()), &dto); err != nil {
		return fmt.Sprintf("error: invalid operation json: %v", err)
	}

	node, err := sess.ApplyOperation(keymaze.Mode(args[1].String()), from, dto.op())
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return marshal(encodeNode(node))
}

// ApplyBatch inserts a precomputed chain of edges in one shot.
// Arguments:
// 0: session handle
// 1: mode
// 2: JSON array of steps: [{"from":hex,"to":hex,"op":{...},"toKey":"123"}]
// Returns:
// "ok" or "error: ..."
func ApplyBatch(this js.Value, args []js.Value) interface{} {
	if len(args) != 3 {
		return "error: expected 3 arguments (sessionID, mode, jsonSteps)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	var dtos []batchStepDTO
	if err := json.Unmarshal([]byte(args[2].String()), &dtos); err != nil {
		return fmt.Sprintf("error: invalid steps json: %v", err)
	}

	steps := make([]keymaze.BatchStep, 0, len(dtos))
	for i, d := range dtos {
		step, err := d.step()
		if err != nil {
			return fmt.Sprintf("error: step %d: %v", i, err)
		}
		steps = append(steps, step)
	}

	if err := sess.ApplyBatch(keymaze.Mode(args[1].String()), steps); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return "ok"
}

// GetNode looks up the node view for a point.
// Arguments:
// 0: session handle
// 1: mode
// 2: public key hex
func GetNode(this js.Value, args []js.Value) interface{} {
	if len(args) != 3 {
		return "error: expected 3 arguments (sessionID, mode, publicKey)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	p, err := curve.PublicKeyHexToPoint(args[2].String())
	if err != nil {
		return fmt.Sprintf("error: invalid public key: %v", err)
	}
	node, err := sess.GetNode(keymaze.Mode(args[1].String()), p)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return marshal(encodeNode(node))
}

// Decompose expands k*start into visible double-and-add steps without
// touching any board.
// Arguments:
// 0: session handle
// 1: scalar k (decimal or 0x hex string)
// 2: public key hex of the start point
// 3: private key of the start point (decimal or 0x hex string, "" if unknown)
// Returns:
// JSON trace or "error: ..."
func Decompose(this js.Value, args []js.Value) interface{} {
	if len(args) != 4 {
		return "error: expected 4 arguments (sessionID, k, start, startKey)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	k, err := curve.ParseScalar(args[1].String())
	if err != nil {
		return fmt.Sprintf("error: invalid scalar: %v", err)
	}
	start, err := curve.PublicKeyHexToPoint(args[2].String())
	if err != nil {
		return fmt.Sprintf("error: invalid start point: %v", err)
	}
	var startKey *big.Int
	if s := args[3].String(); s != "" {
		if startKey, err = curve.ParseScalar(s); err != nil {
			return fmt.Sprintf("error: invalid start key: %v", err)
		}
	}

	tr, err := sess.Decompose(k, start, startKey)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return encodeTrace(tr)
}

// SetChallenge installs a point as the mode's challenge node.
// Arguments:
// 0: session handle
// 1: mode
// 2: public key hex
// 3: label
func SetChallenge(this js.Value, args []js.Value) interface{} {
	if len(args) != 4 {
		return "error: expected 4 arguments (sessionID, mode, publicKey, label)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	p, err := curve.PublicKeyHexToPoint(args[2].String())
	if err != nil {
		return fmt.Sprintf("error: invalid public key: %v", err)
	}
	if err := sess.SetChallenge(keymaze.Mode(args[1].String()), p, args[3].String()); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return "ok"
}

// NewPracticeChallenge starts a fresh practice board around a sealed
// random secret.
// Arguments:
// 0: session handle
// Returns:
// {"node": {...}, "receiptDigest": hex} or "error: ..."
func NewPracticeChallenge(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 {
		return "error: expected 1 argument (sessionID)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	node, digest, err := sess.NewPracticeChallenge()
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return marshal(map[string]interface{}{
		"node":          encodeNode(node),
		"receiptDigest": hex.EncodeToString(digest),
	})
}

// Solved reports whether the mode's challenge key has been resolved.
// Arguments:
// 0: session handle
// 1: mode
// Returns:
// {"solved": bool, "privateKey": "..."} (key only when solved)
func Solved(this js.Value, args []js.Value) interface{} {
	if len(args) != 2 {
		return "error: expected 2 arguments (sessionID, mode)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	solved, key, err := sess.Solved(keymaze.Mode(args[1].String()))
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	resp := map[string]interface{}{"solved": solved}
	if key != nil {
		resp["privateKey"] = key.String()
	}
	return marshal(resp)
}

// RevealPractice discloses the practice secret and receipt salt once the
// challenge is solved.
// Arguments:
// 0: session handle
// Returns:
// {"secret": "...", "receiptSalt": hex} or "error: ..."
func RevealPractice(this js.Value, args []js.Value) interface{} {
	if len(args) != 1 {
		return "error: expected 1 argument (sessionID)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	secret, salt, err := sess.RevealPractice()
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return marshal(map[string]interface{}{
		"secret":      secret.String(),
		"receiptSalt": hex.EncodeToString(salt),
	})
}

// SavePoint pins a point and bundles the path back to the nearest anchor.
// Arguments:
// 0: session handle
// 1: mode
// 2: public key hex
// 3: label
func SavePoint(this js.Value, args []js.Value) interface{} {
	if len(args) != 4 {
		return "error: expected 4 arguments (sessionID, mode, publicKey, label)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	p, err := curve.PublicKeyHexToPoint(args[2].String())
	if err != nil {
		return fmt.Sprintf("error: invalid public key: %v", err)
	}
	sp, err := sess.SavePoint(keymaze.Mode(args[1].String()), p, args[3].String())
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return marshal(encodeSavedPoint(sp))
}

// UnsavePoint removes a pinned point by id.
// Arguments:
// 0: session handle
// 1: mode
// 2: saved point id
func UnsavePoint(this js.Value, args []js.Value) interface{} {
	if len(args) != 3 {
		return "error: expected 3 arguments (sessionID, mode, id)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	if err := sess.UnsavePoint(keymaze.Mode(args[1].String()), args[2].String()); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return "ok"
}

// SavedPoints lists the mode's pinned points in save order.
// Arguments:
// 0: session handle
// 1: mode
func SavedPoints(this js.Value, args []js.Value) interface{} {
	if len(args) != 2 {
		return "error: expected 2 arguments (sessionID, mode)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	pins, err := sess.SavedPoints(keymaze.Mode(args[1].String()))
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	out := make([]interface{}, 0, len(pins))
	for _, sp := range pins {
		out = append(out, encodeSavedPoint(sp))
	}
	return marshal(out)
}

// Reset discards one mode's board and reseeds its generator.
// Arguments:
// 0: session handle
// 1: mode
func Reset(this js.Value, args []js.Value) interface{} {
	if len(args) != 2 {
		return "error: expected 2 arguments (sessionID, mode)"
	}
	sess, ok := sessions[args[0].String()]
	if !ok {
		return "error: session not found"
	}

	if err := sess.Reset(keymaze.Mode(args[1].String())); err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return "ok"
}

// DTOs

// operationDTO mirrors keymaze.Operation for JSON input. Scalars travel
// as strings so JS never rounds them.
type operationDTO struct {
	Type        string `json:"type"`
	Value       string `json:"value"`
	Description string `json:"description"`
}

func (d operationDTO) op() keymaze.Operation {
	return keymaze.Operation{
		Type:        keymaze.OpType(d.Type),
		Value:       d.Value,
		Description: d.Description,
	}
}

type batchStepDTO struct {
	From  string       `json:"from"`
	To    string       `json:"to"`
	Op    operationDTO `json:"op"`
	ToKey string       `json:"toKey"`
}

func (d batchStepDTO) step() (keymaze.BatchStep, error) {
	from, err := curve.PublicKeyHexToPoint(d.From)
	if err != nil {
		return keymaze.BatchStep{}, fmt.Errorf("invalid from point: %w", err)
	}
	to, err := curve.PublicKeyHexToPoint(d.To)
	if err != nil {
		return keymaze.BatchStep{}, fmt.Errorf("invalid to point: %w", err)
	}
	var toKey *big.Int
	if d.ToKey != "" {
		if toKey, err = curve.ParseScalar(d.ToKey); err != nil {
			return keymaze.BatchStep{}, fmt.Errorf("invalid toKey: %w", err)
		}
	}
	return keymaze.BatchStep{From: from, To: to, Op: d.Op.op(), ToKey: toKey}, nil
}

// Encoding helpers

func encodeNode(n *keymaze.NodeInfo) map[string]interface{} {
	out := map[string]interface{}{
		"id":           n.ID,
		"publicKey":    n.PublicKey,
		"label":        n.Label,
		"connectedToG": n.ConnectedToG,
		"isGenerator":  n.IsGenerator,
		"isChallenge":  n.IsChallenge,
	}
	if n.PrivateKey != nil {
		out["privateKey"] = n.PrivateKey.String()
	}
	return out
}

func encodeOp(op keymaze.Operation) map[string]interface{} {
	return map[string]interface{}{
		"type":        string(op.Type),
		"value":       op.Value,
		"description": op.Description,
		"userCreated": op.UserCreated,
		"bundled":     op.Bundled,
	}
}

func encodeTrace(tr *keymaze.Trace) interface{} {
	result, err := curve.PointToPublicKeyHex(tr.Result)
	if err != nil {
		return fmt.Sprintf("error: encode result point: %v", err)
	}
	steps := make([]interface{}, 0, len(tr.Steps))
	for _, st := range tr.Steps {
		pub, err := curve.PointToPublicKeyHex(st.Point)
		if err != nil {
			return fmt.Sprintf("error: encode step point: %v", err)
		}
		enc := map[string]interface{}{
			"publicKey": pub,
			"op":        encodeOp(st.Op),
		}
		if st.Key != nil {
			enc["privateKey"] = st.Key.String()
		}
		steps = append(steps, enc)
	}
	return marshal(map[string]interface{}{
		"result": result,
		"steps":  steps,
	})
}

func encodeSavedPoint(sp *keymaze.SavedPoint) map[string]interface{} {
	out := map[string]interface{}{
		"id":        sp.ID,
		"publicKey": sp.PublicKey,
		"label":     sp.Label,
		"savedAt":   sp.SavedAt.Format(time.RFC3339),
	}
	if sp.PrivateKey != nil {
		out["privateKey"] = sp.PrivateKey.String()
	}
	return out
}

func marshal(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
