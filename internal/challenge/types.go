// Package challenge manages the daily challenge pool: rotation, guess
// evaluation and saved-point records. Challenges come from a YAML pool of
// real public keys; every entry is cross-checked against its Bitcoin
// address before it is accepted.
package challenge

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrChallengeInactive  = errors.New("challenge is not active")
	ErrGuessNotFound      = errors.New("guess not found")
	ErrPoolExhausted      = errors.New("challenge pool exhausted")
	ErrDuplicateChallenge = errors.New("duplicate challenge")
	ErrInvalidPublicKey   = errors.New("invalid public key")
)

// Guess results.
const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"
)

// Challenge is one puzzle from the pool. PublicKey holds the canonical
// compressed hex form; Address is the P2PKH address the key was listed
// under.
type Challenge struct {
	UUID         uuid.UUID  `json:"uuid"`
	PublicKey    string     `json:"publicKey"`
	Address      string     `json:"address"`
	ExplorerLink string     `json:"explorerLink,omitempty"`
	Metadata     []string   `json:"metadata,omitempty"`
	Active       bool       `json:"active"`
	ActiveDate   *time.Time `json:"activeDate,omitempty"`
}

// Guess is one evaluated solution attempt. IsKeyValid records whether the
// submitted key matched the challenge key, IsSignatureValid whether the
// ownership signature checked out; Result is correct only when both hold.
type Guess struct {
	UUID             uuid.UUID `json:"uuid"`
	ChallengeUUID    uuid.UUID `json:"challengeUuid"`
	PublicKey        string    `json:"publicKey"`
	Signature        string    `json:"signature"`
	Result           string    `json:"result"`
	IsKeyValid       bool      `json:"isKeyValid"`
	IsSignatureValid bool      `json:"isSignatureValid"`
	ValidatedAt      time.Time `json:"validatedAt"`
}

// Save is one reported saved point against a challenge. Duplicates are
// allowed: saving the same point twice is two records.
type Save struct {
	UUID          uuid.UUID `json:"uuid"`
	ChallengeUUID uuid.UUID `json:"challengeUuid"`
	PublicKey     string    `json:"publicKey"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Store is the persistence surface of the challenge service.
type Store interface {
	// AddChallenges loads pool entries. Duplicate UUIDs are rejected.
	AddChallenges(chs ...*Challenge) error

	// Challenge returns one challenge by id, or ErrChallengeNotFound.
	Challenge(id uuid.UUID) (*Challenge, error)

	// EnsureDaily returns the challenge active on the given day, rotating
	// the pool atomically when the day has changed: the stale challenge is
	// deactivated and the first never-activated one takes its place.
	// Returns ErrPoolExhausted when no unused challenge remains.
	EnsureDaily(day time.Time) (*Challenge, error)

	// RecordGuess appends an evaluated guess.
	RecordGuess(g *Guess) error

	// Guess returns one guess by id, or ErrGuessNotFound.
	Guess(id uuid.UUID) (*Guess, error)

	// Guesses lists all guesses in record order.
	Guesses() ([]*Guess, error)

	// RecordSave appends a saved-point record.
	RecordSave(sv *Save) error

	// Saves lists the saved points recorded against a challenge.
	Saves(challengeID uuid.UUID) ([]*Save, error)
}
