package session

import (
	"math/big"

	"github.com/keymaze/go-keymaze/internal/crypto/receipt"
	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
	"github.com/keymaze/go-keymaze/pkg/keymaze"
)

// PracticeLabel names locally generated challenge nodes.
const PracticeLabel = "Practice Challenge"

// NewPracticeChallenge starts a fresh practice game around a random secret.
// The secret stays sealed: the caller gets the challenge node and a hash
// receipt, and can check the receipt against the reveal after solving.
func (s *Session) NewPracticeChallenge() (*keymaze.NodeInfo, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Draw the secret and commit to it.
	k, err := curve.NewScalar()
	if err != nil {
		return nil, nil, err
	}
	rec, err := receipt.New(receipt.ScalarBytes(k))
	if err != nil {
		return nil, nil, err
	}

	// 2. Start a fresh board with k*G as its challenge.
	gm := newGame(s.log)
	gm.secret = k
	gm.rec = rec
	if err := gm.setChallenge(curve.BaseMultiply(k), PracticeLabel); err != nil {
		return nil, nil, err
	}
	s.games[keymaze.ModePractice] = gm

	node := gm.challengeNode()
	s.log.Infow("practice challenge issued", "challenge", node.PublicKey)
	return toInfo(node), append([]byte(nil), rec.Digest...), nil
}

// RevealPractice discloses the practice secret and the receipt salt. It
// refuses until the challenge is solved, so the reveal can never shortcut
// the game.
func (s *Session) RevealPractice() (*big.Int, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gm := s.games[keymaze.ModePractice]
	if gm.secret == nil {
		return nil, nil, keymaze.ErrNoChallenge
	}
	if !gm.solved() {
		return nil, nil, keymaze.ErrChallengeUnsolved
	}
	return new(big.Int).Set(gm.secret), append([]byte(nil), gm.rec.Salt...), nil
}
