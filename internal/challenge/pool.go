package challenge

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/keymaze/go-keymaze/pkg/crypto/curve"
)

// poolEntry is one challenge in the YAML pool file.
type poolEntry struct {
	UUID         string   `yaml:"uuid"`
	PublicKey    string   `yaml:"publicKey"`
	Address      string   `yaml:"address"`
	ExplorerLink string   `yaml:"explorerLink"`
	Metadata     []string `yaml:"metadata"`
}

type poolFile struct {
	Challenges []poolEntry `yaml:"challenges"`
}

// LoadPool reads and validates a YAML challenge pool file.
func LoadPool(path string) ([]*Challenge, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("challenge pool: %w", err)
	}
	return ParsePool(raw)
}

// ParsePool parses a YAML challenge pool and validates every entry: the
// public key must parse to a curve point and the listed address must match
// the address derived from the key bytes. A single bad entry fails the
// whole pool.
func ParsePool(raw []byte) ([]*Challenge, error) {
	var pf poolFile
	if err := yaml.Unmarshal(raw, &pf); err != nil {
		return nil, fmt.Errorf("challenge pool: %w", err)
	}
	if len(pf.Challenges) == 0 {
		return nil, errors.New("challenge pool: no challenges")
	}

	out := make([]*Challenge, 0, len(pf.Challenges))
	seen := make(map[uuid.UUID]bool, len(pf.Challenges))
	for i, e := range pf.Challenges {
		id, err := uuid.Parse(e.UUID)
		if err != nil {
			return nil, fmt.Errorf("challenge pool: entry %d: bad uuid: %w", i, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("challenge pool: entry %d: %w: %s", i, ErrDuplicateChallenge, id)
		}
		seen[id] = true

		point, err := curve.PublicKeyHexToPoint(e.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("challenge pool: entry %s: %w", id, err)
		}
		canonical, err := curve.PointToPublicKeyHex(point)
		if err != nil {
			return nil, fmt.Errorf("challenge pool: entry %s: %w", id, err)
		}

		// The address is derived from the key bytes exactly as listed.
		pubBytes, err := hex.DecodeString(strings.TrimSpace(e.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("challenge pool: entry %s: %w", id, err)
		}
		if derived := DeriveP2PKH(pubBytes); derived != e.Address {
			return nil, fmt.Errorf("challenge pool: entry %s: address %s does not match its public key (derived %s)",
				id, e.Address, derived)
		}

		out = append(out, &Challenge{
			UUID:         id,
			PublicKey:    canonical,
			Address:      e.Address,
			ExplorerLink: e.ExplorerLink,
			Metadata:     e.Metadata,
		})
	}
	return out, nil
}
