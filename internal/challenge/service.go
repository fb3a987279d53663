package challenge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/keymaze/go-keymaze/internal/crypto/solution"
	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
)

// Service evaluates guesses and rotates the daily challenge. The clock is
// injected so rotation is testable.
type Service struct {
	log   *zap.SugaredLogger
	store Store
	now   func() time.Time
}

// NewService wires a Service. A nil now falls back to time.Now.
func NewService(store Store, now func() time.Time, log *zap.SugaredLogger) *Service {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{log: log, store: store, now: now}
}

// Daily returns today's challenge, rotating the pool when the day changed.
func (s *Service) Daily() (*Challenge, error) {
	ch, err := s.store.EnsureDaily(s.now())
	if err != nil {
		return nil, err
	}
	s.log.Debugw("daily challenge", "challenge", ch.UUID, "address", ch.Address)
	return ch, nil
}

// Get returns one challenge by id.
func (s *Service) Get(id uuid.UUID) (*Challenge, error) {
	return s.store.Challenge(id)
}

// SubmitSolution evaluates a signed guess against a challenge. Malformed
// keys and signatures are rejected before anything is recorded; every
// well-formed guess is recorded, correct or not.
func (s *Service) SubmitSolution(challengeID uuid.UUID, publicKeyHex, signatureHex string) (*Guess, error) {
	ch, err := s.store.Challenge(challengeID)
	if err != nil {
		return nil, err
	}
	if !ch.Active {
		return nil, ErrChallengeInactive
	}

	// 1. Validate the submitted key format.
	point, err := curve.PublicKeyHexToPoint(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	canonical, err := curve.PointToPublicKeyHex(point)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	// 2. Check the ownership signature. A malformed signature is a bad
	// request, a well-formed one that does not verify is a wrong guess.
	sigValid, err := solution.Verify(canonical, challengeID, signatureHex)
	if err != nil {
		return nil, err
	}

	// 3. Evaluate and record.
	keyValid := canonical == ch.PublicKey
	result := ResultIncorrect
	if keyValid && sigValid {
		result = ResultCorrect
	}
	guess := &Guess{
		UUID:             uuid.New(),
		ChallengeUUID:    ch.UUID,
		PublicKey:        canonical,
		Signature:        signatureHex,
		Result:           result,
		IsKeyValid:       keyValid,
		IsSignatureValid: sigValid,
		ValidatedAt:      s.now(),
	}
	if err := s.store.RecordGuess(guess); err != nil {
		return nil, err
	}

	s.log.Infow("guess evaluated",
		"challenge", ch.UUID,
		"guess", guess.UUID,
		"result", guess.Result,
		"keyValid", guess.IsKeyValid,
		"signatureValid", guess.IsSignatureValid,
	)
	return guess, nil
}

// GetGuess returns one guess by id.
func (s *Service) GetGuess(id uuid.UUID) (*Guess, error) {
	return s.store.Guess(id)
}

// Guesses lists all recorded guesses.
func (s *Service) Guesses() ([]*Guess, error) {
	return s.store.Guesses()
}

// RecordSave records a saved point against a challenge. Duplicates are
// allowed; the key format is still validated.
func (s *Service) RecordSave(challengeID uuid.UUID, publicKeyHex string) (*Save, error) {
	ch, err := s.store.Challenge(challengeID)
	if err != nil {
		return nil, err
	}

	point, err := curve.PublicKeyHexToPoint(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	canonical, err := curve.PointToPublicKeyHex(point)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	save := &Save{
		UUID:          uuid.New(),
		ChallengeUUID: ch.UUID,
		PublicKey:     canonical,
		CreatedAt:     s.now(),
	}
	if err := s.store.RecordSave(save); err != nil {
		return nil, err
	}
	s.log.Debugw("save recorded", "challenge", ch.UUID, "point", canonical)
	return save, nil
}

// Saves lists the saved points recorded against a challenge.
func (s *Service) Saves(challengeID uuid.UUID) ([]*Save, error) {
	return s.store.Saves(challengeID)
}
