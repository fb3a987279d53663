package session

import (
	"errors"
	"math/big"
	"testing"

	"github.com/keymaze/go-keymaze/internal/crypto/receipt"
	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
	"github.com/keymaze/go-keymaze/pkg/keymaze"
)

func kG(k int64) curve.Point {
	return curve.BaseMultiply(big.NewInt(k))
}

func op(typ keymaze.OpType, value string) keymaze.Operation {
	return keymaze.Operation{Type: typ, Value: value}
}

func mustApply(t *testing.T, s *Session, mode keymaze.Mode, from curve.Point, o keymaze.Operation) *keymaze.NodeInfo {
	t.Helper()
	info, err := s.ApplyOperation(mode, from, o)
	if err != nil {
		t.Fatalf("ApplyOperation(%s) failed: %v", o, err)
	}
	return info
}

func TestUnknownMode(t *testing.T) {
	s := New(nil)

	_, err := s.ApplyOperation(keymaze.Mode("bogus"), curve.Generator(), op(keymaze.OpAdd, "1"))
	if !errors.Is(err, keymaze.ErrUnknownMode) {
		t.Fatalf("Expected ErrUnknownMode, got %v", err)
	}
	if _, err := s.GetNode(keymaze.Mode(""), curve.Generator()); !errors.Is(err, keymaze.ErrUnknownMode) {
		t.Fatalf("Expected ErrUnknownMode, got %v", err)
	}
	if err := s.Reset(keymaze.Mode("weekly")); !errors.Is(err, keymaze.ErrUnknownMode) {
		t.Fatalf("Expected ErrUnknownMode, got %v", err)
	}
}

func TestApplyOperationAdd(t *testing.T) {
	s := New(nil)

	info := mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpAdd, "4"))
	if !info.Point.Equal(kG(5)) {
		t.Fatal("G add(4) should land on 5G")
	}
	if !info.ConnectedToG {
		t.Error("Result of a user edge from G should be connected")
	}
	if info.PrivateKey == nil || info.PrivateKey.Int64() != 5 {
		t.Errorf("Expected private key 5, got %v", info.PrivateKey)
	}

	// GetNode sees the same node.
	got, err := s.GetNode(keymaze.ModeDaily, kG(5))
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if got.ID != info.ID {
		t.Error("GetNode returned a different node than ApplyOperation")
	}
}

func TestApplyOperationMultiplyLeavesTrail(t *testing.T) {
	s := New(nil)

	info := mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpMultiply, "5"))
	if !info.Point.Equal(kG(5)) {
		t.Fatal("G multiply(5) should land on 5G")
	}
	if info.PrivateKey == nil || info.PrivateKey.Int64() != 5 {
		t.Errorf("Expected private key 5, got %v", info.PrivateKey)
	}

	// The double-and-add trail of 5 = 101b leaves 2G and 4G behind,
	// keyed and connected.
	for _, k := range []int64{2, 4} {
		node, err := s.GetNode(keymaze.ModeDaily, kG(k))
		if err != nil {
			t.Fatalf("Trail node %dG missing: %v", k, err)
		}
		if !node.ConnectedToG {
			t.Errorf("Trail node %dG should be connected", k)
		}
		if node.PrivateKey == nil || node.PrivateKey.Int64() != k {
			t.Errorf("Trail node %dG should carry key %d, got %v", k, k, node.PrivateKey)
		}
	}
}

func TestApplyOperationDivide(t *testing.T) {
	s := New(nil)

	mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpMultiply, "6"))
	info := mustApply(t, s, keymaze.ModeDaily, kG(6), op(keymaze.OpDivide, "3"))
	if !info.Point.Equal(kG(2)) {
		t.Fatal("6G divide(3) should land on 2G")
	}
	if info.PrivateKey == nil || info.PrivateKey.Int64() != 2 {
		t.Errorf("Expected private key 2, got %v", info.PrivateKey)
	}
}

func TestApplyOperationNegate(t *testing.T) {
	s := New(nil)

	info := mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpNegate, ""))
	if !info.Point.Equal(curve.Negate(curve.Generator())) {
		t.Fatal("negate should mirror G")
	}
	want := new(big.Int).Sub(curve.N(), big.NewInt(1))
	if info.PrivateKey == nil || info.PrivateKey.Cmp(want) != 0 {
		t.Errorf("Expected private key N-1, got %v", info.PrivateKey)
	}
}

func TestApplyOperationNegativeMultiply(t *testing.T) {
	s := New(nil)

	info := mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpMultiply, "-3"))
	if !info.Point.Equal(curve.Negate(kG(3))) {
		t.Fatal("G multiply(-3) should land on -3G")
	}
	want := new(big.Int).Sub(curve.N(), big.NewInt(3))
	if info.PrivateKey == nil || info.PrivateKey.Cmp(want) != 0 {
		t.Errorf("Expected private key N-3, got %v", info.PrivateKey)
	}
}

func TestApplyOperationRejectsBadInput(t *testing.T) {
	s := New(nil)
	g := curve.Generator()

	if _, err := s.ApplyOperation(keymaze.ModeDaily, g, op(keymaze.OpMultiply, "0")); !errors.Is(err, keymaze.ErrZeroScalar) {
		t.Errorf("multiply(0): expected ErrZeroScalar, got %v", err)
	}
	if _, err := s.ApplyOperation(keymaze.ModeDaily, g, op(keymaze.OpAdd, "xyz")); err == nil {
		t.Error("add(xyz) should fail")
	}
	if _, err := s.ApplyOperation(keymaze.ModeDaily, g, op(keymaze.OpNegate, "2")); err == nil {
		t.Error("negate with a value should fail")
	}

	offCurve := curve.NewPoint(big.NewInt(1), big.NewInt(1))
	if _, err := s.ApplyOperation(keymaze.ModeDaily, offCurve, op(keymaze.OpAdd, "1")); !errors.Is(err, curve.ErrInvalidPoint) {
		t.Errorf("off-curve origin: expected ErrInvalidPoint, got %v", err)
	}

	// G subtract(1) lands on infinity and must be refused.
	if _, err := s.ApplyOperation(keymaze.ModeDaily, g, op(keymaze.OpSubtract, "1")); !errors.Is(err, curve.ErrPointAtInfinity) {
		t.Errorf("subtract to infinity: expected ErrPointAtInfinity, got %v", err)
	}
}

func TestModesAreIsolated(t *testing.T) {
	s := New(nil)

	mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpMultiply, "2"))

	if _, err := s.GetNode(keymaze.ModePractice, kG(2)); !errors.Is(err, keymaze.ErrNodeNotFound) {
		t.Fatal("Daily nodes must not leak into the practice game")
	}

	if err := s.SetChallenge(keymaze.ModeDaily, kG(9), "Daily"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Solved(keymaze.ModePractice); !errors.Is(err, keymaze.ErrNoChallenge) {
		t.Fatal("Daily challenge must not leak into the practice game")
	}
}

func TestSolvedFlow(t *testing.T) {
	s := New(nil)

	if _, _, err := s.Solved(keymaze.ModeDaily); !errors.Is(err, keymaze.ErrNoChallenge) {
		t.Fatalf("Expected ErrNoChallenge before SetChallenge, got %v", err)
	}

	if err := s.SetChallenge(keymaze.ModeDaily, kG(7), "Target"); err != nil {
		t.Fatal(err)
	}
	solved, key, err := s.Solved(keymaze.ModeDaily)
	if err != nil || solved || key != nil {
		t.Fatalf("Challenge should start unsolved, got solved=%v key=%v err=%v", solved, key, err)
	}

	node, err := s.GetNode(keymaze.ModeDaily, kG(7))
	if err != nil {
		t.Fatal(err)
	}
	if !node.IsChallenge {
		t.Error("Challenge node should be flagged")
	}

	mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpMultiply, "7"))

	solved, key, err = s.Solved(keymaze.ModeDaily)
	if err != nil {
		t.Fatal(err)
	}
	if !solved {
		t.Fatal("Landing on the challenge point from G should solve it")
	}
	if key.Int64() != 7 {
		t.Errorf("Expected challenge key 7, got %v", key)
	}
}

func TestSetChallengeOnSolvedPoint(t *testing.T) {
	s := New(nil)

	// The point is already explored and keyed when it becomes the challenge.
	mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpMultiply, "3"))
	if err := s.SetChallenge(keymaze.ModeDaily, kG(3), "Target"); err != nil {
		t.Fatal(err)
	}

	solved, key, err := s.Solved(keymaze.ModeDaily)
	if err != nil || !solved {
		t.Fatalf("Challenge on a keyed node should be solved immediately, got solved=%v err=%v", solved, err)
	}
	if key.Int64() != 3 {
		t.Errorf("Expected challenge key 3, got %v", key)
	}
}

func TestSavePointBundlesPath(t *testing.T) {
	s := New(nil)
	g := curve.Generator()

	// Adds leave no decomposition trail, so the chain stays linear.
	mustApply(t, s, keymaze.ModeDaily, g, op(keymaze.OpAdd, "1"))
	mustApply(t, s, keymaze.ModeDaily, kG(2), op(keymaze.OpAdd, "5"))
	mustApply(t, s, keymaze.ModeDaily, kG(7), op(keymaze.OpAdd, "14"))

	sp, err := s.SavePoint(keymaze.ModeDaily, kG(21), "stash")
	if err != nil {
		t.Fatalf("SavePoint failed: %v", err)
	}
	if sp.PrivateKey == nil || sp.PrivateKey.Int64() != 21 {
		t.Errorf("Pin should cache key 21, got %v", sp.PrivateKey)
	}
	if sp.Label != "stash" {
		t.Errorf("Pin label = %q, want stash", sp.Label)
	}

	// Bundling collapses the walk into one edge and prunes the interior.
	for _, k := range []int64{2, 7} {
		if _, err := s.GetNode(keymaze.ModeDaily, kG(k)); !errors.Is(err, keymaze.ErrNodeNotFound) {
			t.Errorf("Interior node %dG should have been pruned", k)
		}
	}
	if _, err := s.GetNode(keymaze.ModeDaily, kG(21)); err != nil {
		t.Errorf("Saved node must survive pruning: %v", err)
	}
}

func TestSavePointTwice(t *testing.T) {
	s := New(nil)

	first, err := s.SavePoint(keymaze.ModeDaily, kG(11), "once")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.SavePoint(keymaze.ModeDaily, kG(11), "twice")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Error("Re-saving a point should return the existing pin")
	}

	pins, err := s.SavedPoints(keymaze.ModeDaily)
	if err != nil {
		t.Fatal(err)
	}
	if len(pins) != 1 {
		t.Fatalf("Expected 1 pin, got %d", len(pins))
	}
}

func TestUnsavePoint(t *testing.T) {
	s := New(nil)

	if err := s.UnsavePoint(keymaze.ModeDaily, "missing"); !errors.Is(err, keymaze.ErrSavedPointNotFound) {
		t.Fatalf("Expected ErrSavedPointNotFound, got %v", err)
	}

	sp, err := s.SavePoint(keymaze.ModeDaily, kG(13), "")
	if err != nil {
		t.Fatal(err)
	}
	if err := s.UnsavePoint(keymaze.ModeDaily, sp.ID); err != nil {
		t.Fatal(err)
	}

	pins, err := s.SavedPoints(keymaze.ModeDaily)
	if err != nil {
		t.Fatal(err)
	}
	if len(pins) != 0 {
		t.Fatalf("Expected no pins after unsave, got %d", len(pins))
	}

	// Unsaving does not remove the node.
	if _, err := s.GetNode(keymaze.ModeDaily, kG(13)); err != nil {
		t.Errorf("Node should outlive its pin: %v", err)
	}
}

func TestSavedPointsRefreshKeys(t *testing.T) {
	s := New(nil)

	// Pin a point before anything is known about it.
	sp, err := s.SavePoint(keymaze.ModeDaily, kG(777), "mystery")
	if err != nil {
		t.Fatal(err)
	}
	if sp.PrivateKey != nil {
		t.Fatal("Isolated pin should have no key yet")
	}

	// Later exploration resolves the key.
	mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpMultiply, "777"))

	pins, err := s.SavedPoints(keymaze.ModeDaily)
	if err != nil {
		t.Fatal(err)
	}
	if len(pins) != 1 || pins[0].PrivateKey == nil || pins[0].PrivateKey.Int64() != 777 {
		t.Fatalf("Pin key should refresh to 777, got %v", pins)
	}
}

func TestApplyBatch(t *testing.T) {
	s := New(nil)

	steps := []keymaze.BatchStep{
		{From: kG(3), To: kG(6), Op: op(keymaze.OpMultiply, "2")},
		{From: kG(6), To: kG(12), Op: op(keymaze.OpMultiply, "2")},
	}
	if err := s.ApplyBatch(keymaze.ModeDaily, steps); err != nil {
		t.Fatalf("ApplyBatch failed: %v", err)
	}

	node, err := s.GetNode(keymaze.ModeDaily, kG(12))
	if err != nil {
		t.Fatal(err)
	}
	if node.ConnectedToG {
		t.Error("Unanchored batch chain should not be connected")
	}
	if node.PrivateKey != nil {
		t.Error("Unanchored batch chain should not carry keys")
	}
}

func TestReset(t *testing.T) {
	s := New(nil)

	mustApply(t, s, keymaze.ModeDaily, curve.Generator(), op(keymaze.OpMultiply, "2"))
	if _, err := s.SavePoint(keymaze.ModeDaily, kG(2), ""); err != nil {
		t.Fatal(err)
	}
	if err := s.SetChallenge(keymaze.ModeDaily, kG(5), ""); err != nil {
		t.Fatal(err)
	}

	if err := s.Reset(keymaze.ModeDaily); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetNode(keymaze.ModeDaily, kG(2)); !errors.Is(err, keymaze.ErrNodeNotFound) {
		t.Error("Reset should drop explored nodes")
	}
	pins, err := s.SavedPoints(keymaze.ModeDaily)
	if err != nil || len(pins) != 0 {
		t.Errorf("Reset should drop pins, got %v (err %v)", pins, err)
	}
	if _, _, err := s.Solved(keymaze.ModeDaily); !errors.Is(err, keymaze.ErrNoChallenge) {
		t.Error("Reset should drop the challenge")
	}

	// The fresh game reseeds the generator.
	node, err := s.GetNode(keymaze.ModeDaily, curve.Generator())
	if err != nil {
		t.Fatal(err)
	}
	if !node.IsGenerator || node.PrivateKey == nil || node.PrivateKey.Int64() != 1 {
		t.Error("Fresh game should seed the generator node")
	}
}

func TestNewPracticeChallenge(t *testing.T) {
	s := New(nil)

	info, digest, err := s.NewPracticeChallenge()
	if err != nil {
		t.Fatalf("NewPracticeChallenge failed: %v", err)
	}
	if !curve.IsOnCurve(info.Point) {
		t.Fatal("Practice challenge point must be on the curve")
	}
	if !info.IsChallenge {
		t.Error("Practice challenge node should be flagged")
	}
	if info.PrivateKey != nil {
		t.Error("Practice challenge must not expose its key")
	}
	if len(digest) != 32 {
		t.Errorf("Expected 32-byte receipt digest, got %d", len(digest))
	}

	if _, _, err := s.RevealPractice(); !errors.Is(err, keymaze.ErrChallengeUnsolved) {
		t.Fatalf("Reveal before solving: expected ErrChallengeUnsolved, got %v", err)
	}
}

func TestPracticeSolveAndReveal(t *testing.T) {
	s := New(nil)

	if _, _, err := s.RevealPractice(); !errors.Is(err, keymaze.ErrNoChallenge) {
		t.Fatalf("Reveal without a challenge: expected ErrNoChallenge, got %v", err)
	}

	_, digest, err := s.NewPracticeChallenge()
	if err != nil {
		t.Fatal(err)
	}

	// Peek at the sealed secret and walk straight to the challenge point.
	secret := s.games[keymaze.ModePractice].secret
	mustApply(t, s, keymaze.ModePractice, curve.Generator(), op(keymaze.OpMultiply, secret.String()))

	solved, key, err := s.Solved(keymaze.ModePractice)
	if err != nil || !solved {
		t.Fatalf("Practice challenge should be solved, got solved=%v err=%v", solved, err)
	}
	if key.Cmp(secret) != 0 {
		t.Fatal("Resolved key should equal the generated secret")
	}

	revealed, salt, err := s.RevealPractice()
	if err != nil {
		t.Fatalf("RevealPractice failed: %v", err)
	}
	if revealed.Cmp(secret) != 0 {
		t.Fatal("Reveal returned a different secret")
	}
	if !receipt.Verify(digest, salt, receipt.ScalarBytes(revealed)) {
		t.Fatal("Receipt does not verify against the revealed secret")
	}
}

func TestPracticeChallengeResetsBoard(t *testing.T) {
	s := New(nil)

	mustApply(t, s, keymaze.ModePractice, curve.Generator(), op(keymaze.OpMultiply, "2"))
	if _, _, err := s.NewPracticeChallenge(); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetNode(keymaze.ModePractice, kG(2)); !errors.Is(err, keymaze.ErrNodeNotFound) {
		t.Error("A new practice challenge should start from a fresh board")
	}
}
