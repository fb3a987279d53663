package challenge

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store with in-memory maps. The service has no
// persistence requirement: a restart rebuilds from the pool file and an
// empty guess log.
type MemoryStore struct {
	mu         sync.RWMutex
	challenges map[uuid.UUID]*Challenge
	order      []uuid.UUID
	guesses    map[uuid.UUID]*Guess
	guessOrder []uuid.UUID
	saves      map[uuid.UUID][]*Save // keyed by challenge
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[uuid.UUID]*Challenge),
		guesses:    make(map[uuid.UUID]*Guess),
		saves:      make(map[uuid.UUID][]*Save),
	}
}

// AddChallenges loads pool entries in order.
func (m *MemoryStore) AddChallenges(chs ...*Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[uuid.UUID]bool, len(chs))
	for _, ch := range chs {
		if seen[ch.UUID] || m.challenges[ch.UUID] != nil {
			return ErrDuplicateChallenge
		}
		seen[ch.UUID] = true
	}
	for _, ch := range chs {
		m.challenges[ch.UUID] = copyChallenge(ch)
		m.order = append(m.order, ch.UUID)
	}
	return nil
}

// Challenge returns one challenge by id.
func (m *MemoryStore) Challenge(id uuid.UUID) (*Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, exists := m.challenges[id]
	if !exists {
		return nil, ErrChallengeNotFound
	}
	return copyChallenge(ch), nil
}

// EnsureDaily returns the challenge for the given day, rotating if needed.
// The check-and-rotate runs under one write lock, so concurrent callers on
// a day boundary all see the same winner.
func (m *MemoryStore) EnsureDaily(day time.Time) (*Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	today := truncateToDay(day)

	// 1. Already rotated today.
	for _, id := range m.order {
		ch := m.challenges[id]
		if ch.Active && ch.ActiveDate != nil && ch.ActiveDate.Equal(today) {
			return copyChallenge(ch), nil
		}
	}

	// 2. Deactivate whatever was active on a previous day.
	for _, id := range m.order {
		m.challenges[id].Active = false
	}

	// 3. Activate the first challenge that has never run.
	for _, id := range m.order {
		ch := m.challenges[id]
		if ch.ActiveDate == nil {
			ch.Active = true
			d := today
			ch.ActiveDate = &d
			return copyChallenge(ch), nil
		}
	}
	return nil, ErrPoolExhausted
}

// RecordGuess appends an evaluated guess.
func (m *MemoryStore) RecordGuess(g *Guess) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *g
	m.guesses[g.UUID] = &cp
	m.guessOrder = append(m.guessOrder, g.UUID)
	return nil
}

// Guess returns one guess by id.
func (m *MemoryStore) Guess(id uuid.UUID) (*Guess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, exists := m.guesses[id]
	if !exists {
		return nil, ErrGuessNotFound
	}
	cp := *g
	return &cp, nil
}

// Guesses lists all guesses in record order.
func (m *MemoryStore) Guesses() ([]*Guess, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Guess, 0, len(m.guessOrder))
	for _, id := range m.guessOrder {
		cp := *m.guesses[id]
		out = append(out, &cp)
	}
	return out, nil
}

// RecordSave appends a saved-point record. Duplicates are allowed.
func (m *MemoryStore) RecordSave(sv *Save) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *sv
	m.saves[sv.ChallengeUUID] = append(m.saves[sv.ChallengeUUID], &cp)
	return nil
}

// Saves lists the saved points recorded against a challenge.
func (m *MemoryStore) Saves(challengeID uuid.UUID) ([]*Save, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	saves := m.saves[challengeID]
	out := make([]*Save, 0, len(saves))
	for _, sv := range saves {
		cp := *sv
		out = append(out, &cp)
	}
	return out, nil
}

// copyChallenge returns a copy so callers cannot race on store state.
func copyChallenge(ch *Challenge) *Challenge {
	cp := *ch
	if ch.ActiveDate != nil {
		d := *ch.ActiveDate
		cp.ActiveDate = &d
	}
	if ch.Metadata != nil {
		cp.Metadata = append([]string(nil), ch.Metadata...)
	}
	return &cp
}

func truncateToDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
