// Package genesis describes how a network starts: its rules and the
// authority set of the first epoch, together with the authorities' public
// keys. Fake genesis builds a deterministic network for tests and local runs.
package genesis

import (
	"errors"
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"

	"github.com/rony4d/go-aura-asset/aura"
	"github.com/rony4d/go-aura-asset/inter/iauth"
	"github.com/rony4d/go-aura-asset/inter/validatorpk"
)

var ErrNoAuthorities = errors.New("genesis has no authorities")

// Authority is one genesis block producer.
type Authority struct {
	ID     idx.ValidatorID
	PubKey validatorpk.PubKey
}

// Genesis is the complete starting point of a network.
type Genesis struct {
	Rules aura.Rules
	Epoch idx.Epoch
	// Authorities in rotation order.
	Authorities []Authority
}

// Validate checks the rules and the authority list.
func (g Genesis) Validate() error {
	if err := g.Rules.Validate(); err != nil {
		return err
	}
	if len(g.Authorities) == 0 {
		return ErrNoAuthorities
	}
	_, err := g.Snapshot()
	return err
}

// IDs returns the authority ids in rotation order.
func (g Genesis) IDs() []idx.ValidatorID {
	ids := make([]idx.ValidatorID, len(g.Authorities))
	for i, a := range g.Authorities {
		ids[i] = a.ID
	}
	return ids
}

// Snapshot is the authority snapshot of the genesis epoch.
func (g Genesis) Snapshot() (*iauth.Snapshot, error) {
	return iauth.NewSnapshot(g.Epoch, g.IDs())
}

// Verifier returns a signature verifier loaded with the genesis keys.
// Authorities without a key are skipped.
func (g Genesis) Verifier() (*validatorpk.Secp256k1Verifier, error) {
	v := validatorpk.NewSecp256k1Verifier()
	for _, a := range g.Authorities {
		if a.PubKey.Empty() {
			continue
		}
		if err := v.Register(a.ID, a.PubKey); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// FakeGenesis returns n authorities with ids 1..n and keys FakeKey(1..n).
func FakeGenesis(rules aura.Rules, n int) Genesis {
	if n <= 0 {
		panic(fmt.Sprintf("fake genesis needs authorities, got %d", n))
	}
	g := Genesis{
		Rules:       rules,
		Epoch:       1,
		Authorities: make([]Authority, n),
	}
	for i := range g.Authorities {
		key := validatorpk.FakeKey(i + 1)
		g.Authorities[i] = Authority{
			ID:     idx.ValidatorID(i + 1),
			PubKey: validatorpk.FromECDSA(&key.PublicKey),
		}
	}
	return g
}
